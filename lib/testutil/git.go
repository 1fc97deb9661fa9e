// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// IsolatedGitEnvironment returns the process environment with user and
// system git configuration disabled, so the host's git setup cannot
// change test behavior. Code under test that configures its own commit
// identity runs with this.
func IsolatedGitEnvironment() []string {
	return append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_TERMINAL_PROMPT=0",
	)
}

// GitEnvironment is IsolatedGitEnvironment plus a fixed fixture
// identity. Every fixture git command runs with it.
func GitEnvironment() []string {
	return append(IsolatedGitEnvironment(),
		"GIT_AUTHOR_NAME=Fixture",
		"GIT_AUTHOR_EMAIL=fixture@test.local",
		"GIT_COMMITTER_NAME=Fixture",
		"GIT_COMMITTER_EMAIL=fixture@test.local",
	)
}

// RunGit runs git with args in dir using GitEnvironment and returns
// trimmed stdout. Fails the test on error.
func RunGit(t testing.TB, dir string, args ...string) string {
	t.Helper()
	command := exec.Command("git", args...)
	command.Dir = dir
	command.Env = GitEnvironment()
	output, err := command.Output()
	if err != nil {
		stderr := ""
		if exitError, ok := err.(*exec.ExitError); ok {
			stderr = string(exitError.Stderr)
		}
		t.Fatalf("git %s in %s: %v\n%s", strings.Join(args, " "), dir, err, stderr)
	}
	return strings.TrimSpace(string(output))
}

// Remote is a bare repository standing in for the hosted remote.
type Remote struct {
	t testing.TB

	// Dir is the bare repository path.
	Dir string

	// URL is a file:// URL for Dir. The file transport (unlike a
	// plain path) honors --depth, so clones are genuinely shallow.
	URL string

	// Branch is the branch seeded with the initial commit.
	Branch string
}

// NewRemote creates a bare repository whose branch holds a single
// commit containing README.md.
func NewRemote(t testing.TB, branch string) *Remote {
	t.Helper()

	root := t.TempDir()
	bareDir := filepath.Join(root, "remote.git")
	RunGit(t, root, "init", "--bare", "--initial-branch="+branch, bareDir)

	remote := &Remote{
		t:      t,
		Dir:    bareDir,
		URL:    "file://" + bareDir,
		Branch: branch,
	}
	remote.PushFromClone("README.md", "# fixture\n", "initial commit")
	return remote
}

// PushFromClone commits path with content on the remote branch from an
// independent clone, as a concurrent writer would. Returns the new
// commit SHA.
func (remote *Remote) PushFromClone(path, content, message string) string {
	remote.t.Helper()

	cloneDir := filepath.Join(remote.t.TempDir(), "writer")
	RunGit(remote.t, filepath.Dir(cloneDir), "clone", remote.URL, cloneDir)

	// The very first push targets an empty repository, where the
	// clone has no branch checked out yet.
	RunGit(remote.t, cloneDir, "checkout", "-B", remote.Branch)

	fullPath := filepath.Join(cloneDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		remote.t.Fatalf("creating %s: %v", filepath.Dir(fullPath), err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		remote.t.Fatalf("writing %s: %v", fullPath, err)
	}
	RunGit(remote.t, cloneDir, "add", path)
	RunGit(remote.t, cloneDir, "commit", "-m", message)
	RunGit(remote.t, cloneDir, "push", "origin", "HEAD:refs/heads/"+remote.Branch)
	return RunGit(remote.t, cloneDir, "rev-parse", "HEAD")
}

// Head returns the SHA the remote branch points at.
func (remote *Remote) Head() string {
	remote.t.Helper()
	return RunGit(remote.t, remote.Dir, "rev-parse", "refs/heads/"+remote.Branch)
}

// LastAuthor returns "Name <email>" of the remote branch tip.
func (remote *Remote) LastAuthor() string {
	remote.t.Helper()
	return RunGit(remote.t, remote.Dir, "log", "-1", "--format=%an <%ae>", "refs/heads/"+remote.Branch)
}

// CommitSubjects returns the subjects of the remote branch's commits,
// newest first.
func (remote *Remote) CommitSubjects() []string {
	remote.t.Helper()
	output := RunGit(remote.t, remote.Dir, "log", "--format=%s", "refs/heads/"+remote.Branch)
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// ReadFile returns the content of path at the tip of the remote branch
// and whether it exists.
func (remote *Remote) ReadFile(path string) (string, bool) {
	remote.t.Helper()
	command := exec.Command("git", "show", "refs/heads/"+remote.Branch+":"+path)
	command.Dir = remote.Dir
	command.Env = GitEnvironment()
	output, err := command.Output()
	if err != nil {
		return "", false
	}
	return string(output), true
}

// InstallHook writes an executable shell hook into the bare repository
// (e.g. "pre-receive"). The shebang line is added.
func (remote *Remote) InstallHook(name, body string) {
	remote.t.Helper()
	path := filepath.Join(remote.Dir, "hooks", name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		remote.t.Fatalf("writing hook %s: %v", name, err)
	}
}
