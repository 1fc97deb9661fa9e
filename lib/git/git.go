// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for the session
// workspace. All repository commands target a specific directory via
// the -C flag, which Repository methods inject automatically, and run
// with GIT_TERMINAL_PROMPT=0 so a missing credential fails instead of
// blocking on a prompt nobody will answer.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// CommandError is returned when a git command exits unsuccessfully. It
// keeps stderr separately so callers can classify failures (see
// IsPushRejected).
type CommandError struct {
	Args     []string
	Dir      string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	location := ""
	if e.Dir != "" {
		location = " in " + e.Dir
	}
	return fmt.Sprintf("git %s%s: %v (stderr: %s)",
		strings.Join(e.Args, " "), location, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// pushRejectionMarkers are the phrases git prints when the remote
// refuses a push because the branch has moved on, or a hook declined
// it.
var pushRejectionMarkers = []string{
	"[rejected]",
	"[remote rejected]",
	"non-fast-forward",
	"fetch first",
	"failed to push some refs",
}

// IsPushRejected reports whether err is a git push the remote refused,
// as opposed to a transport or authentication failure.
func IsPushRejected(err error) bool {
	var commandError *CommandError
	if !errors.As(err, &commandError) {
		return false
	}
	if len(commandError.Args) == 0 || commandError.Args[0] != "push" {
		return false
	}
	for _, marker := range pushRejectionMarkers {
		if strings.Contains(commandError.Stderr, marker) {
			return true
		}
	}
	return false
}

// Repository represents a git working tree at a specific directory.
type Repository struct {
	dir string
	env []string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// WithEnv returns a copy of r whose commands additionally run with
// env ("KEY=VALUE" entries). Used to hand a credential to the
// configured credential helper without writing it to disk.
func (r *Repository) WithEnv(env ...string) *Repository {
	combined := make([]string, 0, len(r.env)+len(env))
	combined = append(combined, r.env...)
	combined = append(combined, env...)
	return &Repository{dir: r.dir, env: combined}
}

// Run executes a git command targeting this repository and returns
// stdout. On failure it returns a *CommandError.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return run(ctx, r.dir, args, fullArgs, r.env)
}

// RunTrimmed is Run with surrounding whitespace removed from stdout.
func (r *Repository) RunTrimmed(ctx context.Context, args ...string) (string, error) {
	output, err := r.Run(ctx, args...)
	return strings.TrimSpace(output), err
}

// CloneOptions configures Clone.
type CloneOptions struct {
	// Branch is checked out and, with SingleBranch, the only branch
	// fetched.
	Branch string

	// Depth creates a shallow clone when positive.
	Depth int

	SingleBranch bool

	// Config entries ("key=value") are passed as -c options, applying
	// to the clone command only.
	Config []string

	// Env entries are added to the clone command's environment.
	Env []string
}

// Clone clones url into dir and returns the resulting Repository.
func Clone(ctx context.Context, url, dir string, options CloneOptions) (*Repository, error) {
	var fullArgs []string
	for _, entry := range options.Config {
		fullArgs = append(fullArgs, "-c", entry)
	}
	args := []string{"clone"}
	if options.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(options.Depth))
	}
	if options.Branch != "" {
		args = append(args, "--branch", options.Branch)
	}
	if options.SingleBranch {
		args = append(args, "--single-branch")
	}
	args = append(args, "--", url, dir)
	fullArgs = append(fullArgs, args...)

	if _, err := run(ctx, "", args, fullArgs, options.Env); err != nil {
		return nil, err
	}
	return NewRepository(dir), nil
}

func run(ctx context.Context, dir string, args, fullArgs, env []string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.Env = append(append(os.Environ(), "GIT_TERMINAL_PROMPT=0"), env...)

	if err := command.Run(); err != nil {
		exitCode := -1
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		}
		return "", &CommandError{
			Args:     args,
			Dir:      dir,
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exitCode,
			Err:      err,
		}
	}
	return stdout.String(), nil
}
