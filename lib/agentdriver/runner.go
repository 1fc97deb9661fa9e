// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentdriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/progress"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// DefaultTimeout bounds an agent run when the request sets none.
const DefaultTimeout = 30 * time.Minute

// DefaultProgressInterval is how often rolling progress is reported
// while the agent runs.
const DefaultProgressInterval = 5 * time.Second

// MaxRollingPercent caps rolling progress; the stages after execution
// own the rest of the range.
const MaxRollingPercent = 75

// maxErrorDetail bounds the stderr tail quoted in Result.Error.
const maxErrorDetail = 4000

// Identity is the session identity exported to the agent's
// environment. Empty fields are exported as empty variables.
type Identity struct {
	ServerURL string
	ProjectID string
	RunID     string
	SessionID string
	Role      session.AgentRole
}

// Request describes one agent run.
type Request struct {
	// Binary is the agent executable, a path or a name looked up on
	// PATH.
	Binary string

	Prompt           string
	SystemPromptFile string
	Model            string

	// Directory is the working directory: the repository root.
	Directory string

	// Home replaces HOME for the agent.
	Home string

	// APIKey is exported as ANTHROPIC_API_KEY only when non-empty.
	APIKey string

	Identity Identity

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// BasePercent is the overall progress when the agent starts.
	// Rolling progress climbs from here toward MaxRollingPercent.
	BasePercent int
}

// Arguments returns the agent's argument vector.
func Arguments(request Request) []string {
	return []string{
		"-p", request.Prompt,
		"--append-system-prompt-file", request.SystemPromptFile,
		"--output-format", "json",
		"--dangerously-skip-permissions",
		"--model", request.Model,
		"--verbose",
	}
}

// Environment returns base with HOME, the identity variables, and the
// API key (when set) overriding any existing entries of the same name.
func Environment(base []string, request Request) []string {
	overrides := []string{
		"HOME=" + request.Home,
		session.EnvAgentServerURL + "=" + request.Identity.ServerURL,
		session.EnvAgentProjectID + "=" + request.Identity.ProjectID,
		session.EnvAgentRunID + "=" + request.Identity.RunID,
		session.EnvAgentSessionID + "=" + request.Identity.SessionID,
		session.EnvAgentRole + "=" + string(request.Identity.Role),
	}
	if request.APIKey != "" {
		overrides = append(overrides, session.EnvAPIKey+"="+request.APIKey)
	}
	return mergeEnvironment(base, overrides)
}

func mergeEnvironment(base, overrides []string) []string {
	replaced := make(map[string]bool, len(overrides))
	for _, entry := range overrides {
		name, _, _ := strings.Cut(entry, "=")
		replaced[name] = true
	}
	merged := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		if !replaced[name] {
			merged = append(merged, entry)
		}
	}
	return append(merged, overrides...)
}

// Options configures a Runner.
type Options struct {
	// Executor defaults to ExecExecutor{}.
	Executor Executor

	Clock    clock.Clock
	Reporter progress.Reporter

	// Stdout and Stderr receive the agent's streams verbatim.
	// Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// BaseEnv is the ambient environment. Defaults to os.Environ().
	BaseEnv []string

	// ProgressInterval defaults to DefaultProgressInterval.
	ProgressInterval time.Duration

	Logger *slog.Logger
}

// Runner runs agent processes.
type Runner struct {
	executor         Executor
	clock            clock.Clock
	reporter         progress.Reporter
	stdout           io.Writer
	stderr           io.Writer
	baseEnv          []string
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewRunner returns a Runner with defaults applied.
func NewRunner(options Options) *Runner {
	runner := &Runner{
		executor:         options.Executor,
		clock:            options.Clock,
		reporter:         options.Reporter,
		stdout:           options.Stdout,
		stderr:           options.Stderr,
		baseEnv:          options.BaseEnv,
		progressInterval: options.ProgressInterval,
		logger:           options.Logger,
	}
	if runner.executor == nil {
		runner.executor = ExecExecutor{}
	}
	if runner.clock == nil {
		runner.clock = clock.Real()
	}
	if runner.reporter == nil {
		runner.reporter = progress.Nop()
	}
	if runner.stdout == nil {
		runner.stdout = os.Stdout
	}
	if runner.stderr == nil {
		runner.stderr = os.Stderr
	}
	if runner.baseEnv == nil {
		runner.baseEnv = os.Environ()
	}
	if runner.progressInterval <= 0 {
		runner.progressInterval = DefaultProgressInterval
	}
	if runner.logger == nil {
		runner.logger = slog.Default()
	}
	return runner
}

type exitStatus struct {
	code int
	err  error
}

// Run executes the agent described by request and returns its Result.
// Run never returns a nil Result. On timeout or cancellation of ctx
// the process group is terminated and Run returns without waiting for
// the process to exit.
func (runner *Runner) Run(ctx context.Context, request Request) *Result {
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var stdoutBuffer, stderrBuffer lockedBuffer
	lines := &lineForwarder{reporter: runner.reporter, stage: session.StageExecuting}

	invocation := Invocation{
		Binary: request.Binary,
		Args:   Arguments(request),
		Env:    Environment(runner.baseEnv, request),
		Dir:    request.Directory,
		Stdout: io.MultiWriter(runner.stdout, &stdoutBuffer),
		Stderr: io.MultiWriter(runner.stderr, &stderrBuffer, lines),
	}

	runner.logger.Info("starting agent",
		"binary", request.Binary,
		"model", request.Model,
		"directory", request.Directory,
		"timeout", timeout,
	)
	start := runner.clock.Now()
	process, err := runner.executor.Start(ctx, invocation)
	if err != nil {
		runner.logger.Error("agent failed to start", "error", err)
		return &Result{
			Outcome:  OutcomeSpawnError,
			Error:    err.Error(),
			ExitCode: -1,
		}
	}

	exited := make(chan exitStatus, 1)
	go func() {
		code, err := process.Wait()
		exited <- exitStatus{code: code, err: err}
	}()

	deadline := runner.clock.After(timeout)
	ticker := runner.clock.NewTicker(runner.progressInterval)
	defer ticker.Stop()
	lastPercent := request.BasePercent

	for {
		select {
		case status := <-exited:
			lines.Flush()
			result := classify(status, stdoutBuffer.Bytes(), stderrBuffer.String())
			runner.logger.Info("agent exited",
				"outcome", result.Outcome,
				"exit_code", result.ExitCode,
				"num_turns", result.NumTurns,
				"agent_session_id", result.AgentSessionID,
				"duration", clock.Since(runner.clock, start),
			)
			return result

		case <-deadline:
			runner.logger.Error("agent timed out, terminating", "timeout", timeout)
			runner.terminate(process)
			return &Result{Outcome: OutcomeTimedOut, Error: TimeoutError, ExitCode: -1}

		case <-ctx.Done():
			runner.logger.Warn("agent run cancelled, terminating", "error", ctx.Err())
			runner.terminate(process)
			return &Result{
				Outcome:  OutcomeFailure,
				Error:    fmt.Sprintf("agent run cancelled: %v", ctx.Err()),
				ExitCode: -1,
			}

		case <-ticker.C:
			percent := RollingPercent(request.BasePercent, clock.Since(runner.clock, start), timeout)
			if percent > lastPercent {
				lastPercent = percent
				runner.reporter.UpdateProgress(progress.Update{
					Stage:   session.StageExecuting,
					Percent: percent,
					Step:    "Agent running",
				})
			}
		}
	}
}

func (runner *Runner) terminate(process Process) {
	if err := process.Terminate(); err != nil {
		runner.logger.Warn("terminating agent", "error", err)
	}
}

// RollingPercent maps elapsed time onto base..MaxRollingPercent.
func RollingPercent(base int, elapsed, timeout time.Duration) int {
	if base >= MaxRollingPercent {
		return MaxRollingPercent
	}
	if timeout <= 0 || elapsed <= 0 {
		return base
	}
	fraction := float64(elapsed) / float64(timeout)
	if fraction > 1 {
		fraction = 1
	}
	percent := base + int(fraction*float64(MaxRollingPercent-base))
	if percent > MaxRollingPercent {
		percent = MaxRollingPercent
	}
	return percent
}

// classify reduces an exited process to a Result.
func classify(status exitStatus, stdout []byte, stderr string) *Result {
	result := &Result{ExitCode: status.code}

	object, parseError := parseResultObject(stdout)
	if parseError != nil {
		result.Output = strings.TrimSpace(string(stdout))
	} else {
		result.Output = object.Result
		result.TokenUsage = object.tokenUsage()
		result.NumTurns = object.NumTurns
		result.AgentSessionID = object.SessionID
	}

	if status.err == nil && status.code == 0 && parseError == nil && !object.IsError {
		result.Outcome = OutcomeSuccess
		result.Success = true
		return result
	}

	result.Outcome = OutcomeFailure
	if detail := tail(strings.TrimSpace(stderr), maxErrorDetail); detail != "" {
		result.Error = detail
		return result
	}
	switch {
	case status.err != nil:
		result.Error = fmt.Sprintf("waiting for agent: %v", status.err)
	case status.code != 0:
		result.Error = fmt.Sprintf("agent exited with code %d", status.code)
	case parseError != nil:
		result.Error = parseError.Error()
	default:
		result.Error = "agent reported an error"
		if object.Subtype != "" {
			result.Error += " (" + object.Subtype + ")"
		}
		if object.Result != "" {
			result.Error += ": " + object.Result
		}
	}
	return result
}

// tail keeps the last limit runes of text.
func tail(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return "..." + string(runes[len(runes)-limit:])
}

// lockedBuffer is a bytes.Buffer safe for a writer goroutine and a
// concurrent reader.
type lockedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]byte(nil), b.buffer.Bytes()...)
}

func (b *lockedBuffer) String() string {
	return string(b.Bytes())
}

// lineForwarder splits a stream into lines and reports each non-empty
// one as a log entry. Flush reports a trailing unterminated line.
type lineForwarder struct {
	reporter progress.Reporter
	stage    session.ProgressStage

	mutex   sync.Mutex
	partial []byte
}

func (forwarder *lineForwarder) Write(p []byte) (int, error) {
	forwarder.mutex.Lock()
	defer forwarder.mutex.Unlock()

	forwarder.partial = append(forwarder.partial, p...)
	for {
		index := bytes.IndexByte(forwarder.partial, '\n')
		if index < 0 {
			break
		}
		forwarder.emit(forwarder.partial[:index])
		forwarder.partial = forwarder.partial[index+1:]
	}
	return len(p), nil
}

// Flush reports any buffered partial line.
func (forwarder *lineForwarder) Flush() {
	forwarder.mutex.Lock()
	defer forwarder.mutex.Unlock()
	forwarder.emit(forwarder.partial)
	forwarder.partial = nil
}

func (forwarder *lineForwarder) emit(line []byte) {
	text := strings.TrimSpace(string(line))
	if text == "" {
		return
	}
	forwarder.reporter.AppendLog(progress.LogEntry{
		Level:   progress.LevelInfo,
		Message: text,
		Stage:   forwarder.stage,
	})
}
