// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace manages the git working copy a session runs in:
// the shallow clone at the start of a run, and the commit and push at
// the end, including the single rebase-and-retry when the remote
// branch moved while the agent was working.
//
// A Manager is bound to one directory and one run. Git commands run
// strictly one after another and never overlap the agent process.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/sessionrunner/lib/git"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// DefaultProduct prefixes the commit author name ("Bureau engineer").
const DefaultProduct = "Bureau"

// DefaultEmailDomain is the domain of the synthetic commit email
// ("engineer@agents.bureau.local").
const DefaultEmailDomain = "agents.bureau.local"

// credentialUsername is the username token-authenticated HTTPS git
// hosts expect alongside an access token.
const credentialUsername = "x-access-token"

// credentialHelper answers git's "get" request from the environment
// variable holding the token. Only the variable name is stored in the
// clone's config; the token itself is handed to each git command
// through its environment.
var credentialHelper = fmt.Sprintf(
	`!f() { test "$1" = get || exit 0; echo username=%s; echo "password=$%s"; }; f`,
	credentialUsername, session.EnvGitToken)

// maxSubjectLength bounds the summary or error text embedded in a
// commit subject.
const maxSubjectLength = 200

var commitSHAPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Options configures a Manager.
type Options struct {
	// Directory is where the repository is cloned. Its parent is
	// created if needed; the directory itself must not exist or be
	// empty.
	Directory string

	Product     string
	EmailDomain string

	// GitEnv is added to every git command's environment.
	GitEnv []string

	Logger *slog.Logger
}

// Manager performs all git interactions for one session workspace.
type Manager struct {
	directory   string
	product     string
	emailDomain string
	gitEnv      []string
	logger      *slog.Logger
}

// NewManager returns a Manager for options.Directory.
func NewManager(options Options) *Manager {
	manager := &Manager{
		directory:   options.Directory,
		product:     options.Product,
		emailDomain: options.EmailDomain,
		gitEnv:      options.GitEnv,
		logger:      options.Logger,
	}
	if manager.product == "" {
		manager.product = DefaultProduct
	}
	if manager.emailDomain == "" {
		manager.emailDomain = DefaultEmailDomain
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	return manager
}

// Directory returns the workspace path.
func (manager *Manager) Directory() string {
	return manager.directory
}

// repository returns a git handle carrying the manager's environment
// plus the token, if any.
func (manager *Manager) repository(token string) *git.Repository {
	return git.NewRepository(manager.directory).WithEnv(manager.environment(token)...)
}

func (manager *Manager) environment(token string) []string {
	env := append([]string(nil), manager.gitEnv...)
	if token != "" {
		env = append(env, session.EnvGitToken+"="+token)
	}
	return env
}

// Clone shallow-clones config.Branch of config.RepoURL into the
// workspace and configures the commit identity for config.AgentRole.
// With a token, the clone authenticates through the credential helper
// and the helper is persisted in the clone for later pushes; without
// one, git's ambient credentials apply. Every error is fatal to the
// run and is returned.
func (manager *Manager) Clone(ctx context.Context, config *session.Config, token string) error {
	if err := os.MkdirAll(filepath.Dir(manager.directory), 0755); err != nil {
		return fmt.Errorf("creating workspace parent: %w", err)
	}

	options := git.CloneOptions{
		Branch:       config.Branch,
		Depth:        1,
		SingleBranch: true,
		Env:          manager.environment(token),
	}
	if token != "" {
		// The empty entry clears helpers inherited from user or
		// system config so only ours answers.
		options.Config = []string{"credential.helper=", "credential.helper=" + credentialHelper}
	}

	manager.logger.Info("cloning repository",
		"branch", config.Branch,
		"directory", manager.directory,
		"token_auth", token != "",
	)
	if _, err := git.Clone(ctx, config.RepoURL, manager.directory, options); err != nil {
		return fmt.Errorf("cloning %s: %w", config.Branch, err)
	}

	repository := manager.repository(token)
	settings := [][]string{
		{"config", "user.name", manager.product + " " + string(config.AgentRole)},
		{"config", "user.email", string(config.AgentRole) + "@" + manager.emailDomain},
	}
	if token != "" {
		settings = append(settings,
			[]string{"config", "--add", "credential.helper", ""},
			[]string{"config", "--add", "credential.helper", credentialHelper},
		)
	}
	for _, args := range settings {
		if _, err := repository.Run(ctx, args...); err != nil {
			return fmt.Errorf("configuring workspace: %w", err)
		}
	}
	return nil
}

// CommitAndPush stages every change, commits with
// "agent(<role>): <summary> [<runId>]", and pushes to the session
// branch. A clean working tree is not an error: it returns "" without
// committing. If the remote rejects the push, the clone is unshallowed,
// the branch fetched, local commits rebased onto it, and the push
// retried exactly once; a second failure is returned.
func (manager *Manager) CommitAndPush(ctx context.Context, config *session.Config, summary, token string) (string, error) {
	return manager.commitAndPush(ctx, config, commitSubject(summary), token)
}

// CommitPartialWork preserves whatever the agent left in the workspace
// after a pipeline failure, committing with
// "agent(<role>): FAILED - <cause> [<runId>]". It never returns an
// error: this runs on top of a failure that is already being reported,
// and must not replace it. Returns the commit SHA or "".
func (manager *Manager) CommitPartialWork(ctx context.Context, config *session.Config, cause error, token string) string {
	if _, err := os.Stat(filepath.Join(manager.directory, ".git")); err != nil {
		manager.logger.Info("skipping partial-work commit: workspace was never cloned",
			"directory", manager.directory)
		return ""
	}

	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	sha, err := manager.commitAndPush(ctx, config, "FAILED - "+commitSubject(message), token)
	if err != nil {
		manager.logger.Error("partial-work commit failed", "error", err)
		return ""
	}
	if sha != "" {
		manager.logger.Info("partial work committed", "commit", sha)
	}
	return sha
}

func (manager *Manager) commitAndPush(ctx context.Context, config *session.Config, subject, token string) (string, error) {
	repository := manager.repository(token)

	if _, err := repository.Run(ctx, "add", "-A"); err != nil {
		return "", fmt.Errorf("staging changes: %w", err)
	}
	status, err := repository.RunTrimmed(ctx, "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("checking working tree: %w", err)
	}
	if status == "" {
		manager.logger.Info("working tree clean, nothing to commit")
		return "", nil
	}

	message := fmt.Sprintf("agent(%s): %s [%s]", config.AgentRole, subject, config.RunID)
	if _, err := repository.Run(ctx, "commit", "--no-verify", "-m", message); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	if err := manager.push(ctx, repository, config.Branch); err != nil {
		return "", err
	}

	sha, err := repository.RunTrimmed(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving commit: %w", err)
	}
	if !commitSHAPattern.MatchString(sha) {
		return "", fmt.Errorf("unexpected commit id %q", sha)
	}
	manager.logger.Info("pushed commit", "commit", sha, "branch", config.Branch)
	return sha, nil
}

// push pushes HEAD to branch, with one rebase-and-retry on rejection.
func (manager *Manager) push(ctx context.Context, repository *git.Repository, branch string) error {
	refspec := "HEAD:refs/heads/" + branch
	err := pushOnce(ctx, repository, refspec)
	if err == nil {
		return nil
	}
	if !git.IsPushRejected(err) {
		return fmt.Errorf("pushing: %w", err)
	}

	manager.logger.Warn("push rejected, rebasing onto remote branch", "branch", branch)

	// Errors are expected when the clone is already complete.
	if _, unshallowError := repository.Run(ctx, "fetch", "--unshallow", "origin", branch); unshallowError != nil {
		manager.logger.Debug("unshallow skipped", "error", unshallowError)
	}
	if _, err := repository.Run(ctx, "fetch", "origin", branch); err != nil {
		return fmt.Errorf("fetching %s after rejected push: %w", branch, err)
	}
	if _, err := repository.Run(ctx, "rebase", "FETCH_HEAD"); err != nil {
		if _, abortError := repository.Run(ctx, "rebase", "--abort"); abortError != nil {
			manager.logger.Warn("aborting rebase", "error", abortError)
		}
		return fmt.Errorf("rebasing onto %s: %w", branch, err)
	}

	if err := pushOnce(ctx, repository, refspec); err != nil {
		return fmt.Errorf("pushing after rebase: %w", err)
	}
	return nil
}

func pushOnce(ctx context.Context, repository *git.Repository, refspec string) error {
	_, err := repository.Run(ctx, "push", "origin", refspec)
	return err
}

// commitSubject reduces text to a single bounded line for a commit
// subject.
func commitSubject(text string) string {
	line := strings.TrimSpace(text)
	if index := strings.IndexByte(line, '\n'); index >= 0 {
		line = strings.TrimSpace(line[:index])
	}
	if line == "" {
		line = "no summary"
	}
	if utf8.RuneCountInString(line) > maxSubjectLength {
		runes := []rune(line)
		line = string(runes[:maxSubjectLength]) + "..."
	}
	return line
}
