// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/bureau-foundation/sessionrunner/lib/session"
	"github.com/bureau-foundation/sessionrunner/lib/testutil"
)

var shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

func testConfig(remote *testutil.Remote) *session.Config {
	return &session.Config{
		RunID:     "run-7",
		ProjectID: "proj-1",
		AgentRole: session.RoleEngineer,
		RepoURL:   remote.URL,
		Branch:    remote.Branch,
		Task:      "do the work",
	}
}

// clonedManager returns a Manager with the remote already cloned.
func clonedManager(t *testing.T, remote *testutil.Remote, token string) (*Manager, *session.Config) {
	t.Helper()
	manager := NewManager(Options{
		Directory: filepath.Join(t.TempDir(), "workspace"),
		GitEnv:    testutil.IsolatedGitEnvironment(),
	})
	config := testConfig(remote)
	if err := manager.Clone(context.Background(), config, token); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	return manager, config
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestClone_ConfiguresIdentity(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, _ := clonedManager(t, remote, "")

	if got := testutil.RunGit(t, manager.Directory(), "config", "user.name"); got != "Bureau engineer" {
		t.Errorf("user.name = %q", got)
	}
	if got := testutil.RunGit(t, manager.Directory(), "config", "user.email"); got != "engineer@agents.bureau.local" {
		t.Errorf("user.email = %q", got)
	}
	if got := testutil.RunGit(t, manager.Directory(), "rev-parse", "--is-shallow-repository"); got != "true" {
		t.Errorf("is-shallow-repository = %q, want true", got)
	}
	if _, err := os.Stat(filepath.Join(manager.Directory(), "README.md")); err != nil {
		t.Errorf("README.md not checked out: %v", err)
	}
}

func TestClone_TokenNeverWrittenToDisk(t *testing.T) {
	t.Parallel()

	const token = "ghs_supersecrettoken"
	remote := testutil.NewRemote(t, "main")
	manager, _ := clonedManager(t, remote, token)

	configData, err := os.ReadFile(filepath.Join(manager.Directory(), ".git", "config"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(configData), token) {
		t.Fatal(".git/config contains the token")
	}

	helpers := testutil.RunGit(t, manager.Directory(), "config", "--get-all", "credential.helper")
	if !strings.Contains(helpers, "x-access-token") || !strings.Contains(helpers, session.EnvGitToken) {
		t.Errorf("credential helper not persisted: %q", helpers)
	}
}

func TestClone_Failure(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	config := testConfig(remote)
	config.Branch = "no-such-branch"
	manager := NewManager(Options{
		Directory: filepath.Join(t.TempDir(), "workspace"),
		GitEnv:    testutil.IsolatedGitEnvironment(),
	})
	if err := manager.Clone(context.Background(), config, ""); err == nil {
		t.Fatal("Clone of a missing branch should fail")
	}
}

func TestCommitAndPush_CleanTreeIsNoOp(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")
	before := remote.Head()

	for attempt := 1; attempt <= 2; attempt++ {
		sha, err := manager.CommitAndPush(context.Background(), config, "nothing", "")
		if err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
		if sha != "" {
			t.Fatalf("attempt %d: sha = %q, want empty", attempt, sha)
		}
	}
	if remote.Head() != before {
		t.Error("remote branch moved without changes")
	}
	if count := testutil.RunGit(t, manager.Directory(), "rev-list", "--count", "HEAD"); count != "1" {
		t.Errorf("local history has %s commits, want 1", count)
	}
}

func TestCommitAndPush(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")
	writeFile(t, manager.Directory(), "src/widget.go", "package widget\n")

	sha, err := manager.CommitAndPush(context.Background(), config, "Added widget\n\nMore detail here.", "")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if !shaPattern.MatchString(sha) {
		t.Fatalf("sha = %q, want 40 hex characters", sha)
	}
	if remote.Head() != sha {
		t.Errorf("remote head = %s, want %s", remote.Head(), sha)
	}
	if subject := remote.CommitSubjects()[0]; subject != "agent(engineer): Added widget [run-7]" {
		t.Errorf("subject = %q", subject)
	}
	if author := remote.LastAuthor(); author != "Bureau engineer <engineer@agents.bureau.local>" {
		t.Errorf("author = %q", author)
	}
	if content, ok := remote.ReadFile("src/widget.go"); !ok || content != "package widget\n" {
		t.Errorf("pushed file = %q (exists %v)", content, ok)
	}
}

func TestCommitAndPush_RebasesOnce(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")

	concurrent := remote.PushFromClone("other.txt", "from another agent\n", "concurrent change")
	writeFile(t, manager.Directory(), "mine.txt", "mine\n")

	sha, err := manager.CommitAndPush(context.Background(), config, "my change", "")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if remote.Head() != sha {
		t.Errorf("remote head = %s, want %s", remote.Head(), sha)
	}
	subjects := remote.CommitSubjects()
	if len(subjects) != 3 || subjects[0] != "agent(engineer): my change [run-7]" || subjects[1] != "concurrent change" {
		t.Errorf("history = %v", subjects)
	}
	parent := testutil.RunGit(t, remote.Dir, "rev-parse", sha+"^")
	if parent != concurrent {
		t.Errorf("rebased commit parent = %s, want %s", parent, concurrent)
	}
	for _, path := range []string{"mine.txt", "other.txt"} {
		if _, ok := remote.ReadFile(path); !ok {
			t.Errorf("%s missing from remote", path)
		}
	}
}

func TestCommitAndPush_SecondRejectionPropagates(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")

	counter := filepath.Join(t.TempDir(), "attempts")
	remote.InstallHook("pre-receive", "echo attempt >> "+counter+"\necho 'branch is frozen' >&2\nexit 1\n")
	writeFile(t, manager.Directory(), "blocked.txt", "blocked\n")

	_, err := manager.CommitAndPush(context.Background(), config, "blocked", "")
	if err == nil {
		t.Fatal("expected push error")
	}
	if !strings.Contains(err.Error(), "after rebase") {
		t.Errorf("error = %v, want the retry failure", err)
	}

	data, readError := os.ReadFile(counter)
	if readError != nil {
		t.Fatalf("reading attempt counter: %v", readError)
	}
	if attempts := strings.Count(string(data), "attempt"); attempts != 2 {
		t.Errorf("push attempts = %d, want exactly 2 (one retry)", attempts)
	}
}

func TestCommitPartialWork(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")
	writeFile(t, manager.Directory(), "half-done.txt", "wip\n")

	sha := manager.CommitPartialWork(context.Background(), config,
		errors.New("agent exited with code 1\nstack trace follows"), "")
	if !shaPattern.MatchString(sha) {
		t.Fatalf("sha = %q", sha)
	}
	subject := remote.CommitSubjects()[0]
	if !strings.HasPrefix(subject, "agent(engineer): FAILED -") {
		t.Errorf("subject = %q, want FAILED prefix", subject)
	}
	if subject != "agent(engineer): FAILED - agent exited with code 1 [run-7]" {
		t.Errorf("subject = %q", subject)
	}
}

func TestCommitPartialWork_SwallowsErrors(t *testing.T) {
	t.Parallel()

	remote := testutil.NewRemote(t, "main")
	manager, config := clonedManager(t, remote, "")
	remote.InstallHook("pre-receive", "exit 1\n")
	writeFile(t, manager.Directory(), "x.txt", "x\n")

	if sha := manager.CommitPartialWork(context.Background(), config, errors.New("boom"), ""); sha != "" {
		t.Errorf("sha = %q, want empty on push failure", sha)
	}
}

func TestCommitPartialWork_NotCloned(t *testing.T) {
	t.Parallel()

	manager := NewManager(Options{Directory: filepath.Join(t.TempDir(), "never-cloned")})
	config := &session.Config{RunID: "r", AgentRole: session.RoleQA, Branch: "main"}
	if sha := manager.CommitPartialWork(context.Background(), config, errors.New("clone failed"), ""); sha != "" {
		t.Errorf("sha = %q, want empty", sha)
	}
}

func TestCommitSubject(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 250)
	tests := map[string]string{
		"":              "no summary",
		"  one line  ":  "one line",
		"first\nsecond": "first",
		long:            strings.Repeat("é", maxSubjectLength) + "...",
	}
	for input, want := range tests {
		if got := commitSubject(input); got != want {
			t.Errorf("commitSubject(%.20q) = %.30q, want %.30q", input, got, want)
		}
	}
}
