// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/agentdriver"
	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/contextdoc"
	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
	"github.com/bureau-foundation/sessionrunner/lib/progress"
	"github.com/bureau-foundation/sessionrunner/lib/projectstate"
	"github.com/bureau-foundation/sessionrunner/lib/session"
	"github.com/bureau-foundation/sessionrunner/lib/transcript"
	"github.com/bureau-foundation/sessionrunner/lib/workspace"
)

// Coarse progress percentages at the start of each step.
const (
	percentLoadConfig      = 0
	percentClone           = 10
	percentAgentConfig     = 20
	percentAssembleContext = 25
	percentExecute         = 30
	percentCapture         = 80
	percentUpdateState     = 85
	percentCommit          = 90
	percentCompleted       = 100
)

// DefaultCloseTimeout bounds the final flush of queued progress
// reports.
const DefaultCloseTimeout = 10 * time.Second

// partialCommitTimeout bounds the partial-work commit, which runs even
// after the run's context is cancelled.
const partialCommitTimeout = 2 * time.Minute

// contextFileName is the default context document name inside the
// isolated home.
const contextFileName = "session-context.md"

// Options configures an Orchestrator. Only ConfigPath is required.
type Options struct {
	// ConfigPath is the session config file.
	ConfigPath string

	// Environment carries the runner's environment variables.
	Environment session.Environment

	// NewReporter builds the progress reporter once the server URL is
	// known. Defaults to progress.New with the environment's session
	// ID and API token.
	NewReporter func(serverURL string) progress.Reporter

	// Executor starts the agent. Defaults to agentdriver.ExecExecutor.
	Executor agentdriver.Executor

	// AgentStdout and AgentStderr receive the agent's streams.
	// Default to os.Stdout and os.Stderr.
	AgentStdout io.Writer
	AgentStderr io.Writer

	// GitEnv is added to every git command's environment.
	GitEnv []string

	// HomeParent is where isolated homes are created. Defaults to the
	// OS temp directory.
	HomeParent string

	TranscriptCompression transcript.Compression

	// MetricSource is sampled every MetricInterval while the run is
	// in progress. Defaults to hwinfo.NewSampler().
	MetricSource   progress.MetricSource
	MetricInterval time.Duration

	CloseTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Orchestrator runs sessions.
type Orchestrator struct {
	options Options
	clock   clock.Clock
	logger  *slog.Logger
}

// New returns an Orchestrator with defaults applied.
func New(options Options) *Orchestrator {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.NewReporter == nil {
		environment := options.Environment
		clk := options.Clock
		logger := options.Logger
		options.NewReporter = func(serverURL string) progress.Reporter {
			return progress.New(progress.Config{
				ServerURL: serverURL,
				SessionID: environment.SessionID,
				Token:     environment.APIToken,
				Clock:     clk,
				Logger:    logger,
			})
		}
	}
	if options.MetricSource == nil {
		options.MetricSource = hwinfo.NewSampler()
	}
	if options.CloseTimeout <= 0 {
		options.CloseTimeout = DefaultCloseTimeout
	}
	if options.Environment.AgentBinary == "" {
		options.Environment.AgentBinary = session.DefaultAgentBinary
	}
	return &Orchestrator{options: options, clock: options.Clock, logger: options.Logger}
}

// run is the state of one session. It lives for one call to Run.
type run struct {
	*Orchestrator

	logger   *slog.Logger
	reporter progress.Reporter
	timer    *stageTimer
	percent  int

	config    *session.Config
	workspace *workspace.Manager
	cloned    bool
	home      string

	// panicStack is the stack captured where a pipeline panic was
	// recovered.
	panicStack []byte
	result    *session.RunResult
}

// Run executes one session and returns its result. It never panics
// and never returns nil. result.Success decides the exit status.
func (orchestrator *Orchestrator) Run(ctx context.Context) *session.RunResult {
	started := orchestrator.clock.Now()
	r := &run{
		Orchestrator: orchestrator,
		logger:       orchestrator.logger,
		timer:        &stageTimer{clock: orchestrator.clock},
		result:       &session.RunResult{StartedAt: started.UTC()},
	}

	err := r.pipelineSafely(ctx)
	if err != nil {
		r.fail(ctx, err)
	} else if r.home != "" {
		if removeError := os.RemoveAll(r.home); removeError != nil {
			r.logger.Warn("removing isolated home", "home", r.home, "error", removeError)
		}
	}

	completed := orchestrator.clock.Now()
	r.result.CompletedAt = completed.UTC()
	r.result.DurationMS = completed.Sub(started).Milliseconds()

	if r.reporter != nil {
		closeContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), orchestrator.options.CloseTimeout)
		if closeError := r.reporter.Close(closeContext); closeError != nil {
			r.logger.Warn("progress reports not fully delivered", "error", closeError)
		}
		cancel()
	}
	return r.result
}

// pipelineSafely runs the pipeline, converting a panic into an error.
func (r *run) pipelineSafely(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.panicStack = debug.Stack()
			err = fmt.Errorf("internal error: %v", recovered)
		}
	}()
	return r.pipeline(ctx)
}

func (r *run) pipeline(ctx context.Context) error {
	options := r.options
	environment := options.Environment

	config, loadError := session.LoadConfig(options.ConfigPath)
	r.reporter = options.NewReporter(environment.ResolveServerURL(config))
	if loadError != nil {
		return fmt.Errorf("loading session config: %w", loadError)
	}
	r.config = config
	r.logger = r.logger.With("run_id", config.RunID, "role", config.AgentRole)
	r.result.RunID = config.RunID
	r.result.ProjectID = config.ProjectID
	r.result.AgentRole = config.AgentRole
	r.begin(session.StagePending, percentLoadConfig, "Loaded session configuration")

	metricsContext, stopMetrics := context.WithCancel(ctx)
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		progress.RunMetricSampler(metricsContext, r.reporter, options.MetricSource, r.clock, options.MetricInterval)
	}()
	defer func() {
		stopMetrics()
		<-samplerDone
	}()

	// Clone.
	workspaceDirectory := environment.WorkspacePath
	if workspaceDirectory == "" {
		workspaceDirectory = filepath.Join(os.TempDir(), "bureau-workspace-"+config.RunID)
	}
	r.workspace = workspace.NewManager(workspace.Options{
		Directory: workspaceDirectory,
		GitEnv:    options.GitEnv,
		Logger:    r.logger,
	})
	r.begin(session.StageCloning, percentClone, "Cloning "+config.Branch)
	if err := r.workspace.Clone(ctx, config, environment.GitToken); err != nil {
		return err
	}
	r.cloned = true

	// Agent configuration.
	r.begin(session.StageLoading, percentAgentConfig, "Loading agent configuration")
	agentConfig, err := LoadAgentConfig(workspaceDirectory, config.AgentRole)
	if err != nil {
		return err
	}
	tier := resolveTier(config, agentConfig)
	model, err := tier.ModelID()
	if err != nil {
		return err
	}

	// Context.
	r.begin(session.StageLoading, percentAssembleContext, "Assembling context")
	home, err := agentdriver.PrepareHome(options.HomeParent, config.RunID)
	if err != nil {
		return err
	}
	r.home = home
	serverURL := environment.ResolveServerURL(config)
	document := contextdoc.NewAssembler(contextdoc.Options{Clock: r.clock, Logger: r.logger}).
		Assemble(workspaceDirectory, contextdoc.Request{
			Config:    config,
			ServerURL: serverURL,
			SessionID: environment.SessionID,
		})
	contextFile := environment.ContextFilePath
	if contextFile == "" {
		contextFile = filepath.Join(home, contextFileName)
	}
	if err := document.WriteFile(contextFile); err != nil {
		return err
	}
	r.result.ContextFiles = document.Sources
	r.log(progress.LevelInfo, fmt.Sprintf("Context assembled from %d files: %s",
		len(document.Sources), strings.Join(document.Sources, ", ")))

	// Agent.
	r.begin(session.StageExecuting, percentExecute, "Running "+string(config.AgentRole)+" agent ("+string(tier)+")")
	runner := agentdriver.NewRunner(agentdriver.Options{
		Executor: options.Executor,
		Clock:    r.clock,
		Reporter: r.reporter,
		Stdout:   options.AgentStdout,
		Stderr:   options.AgentStderr,
		Logger:   r.logger,
	})
	agentResult := runner.Run(ctx, agentdriver.Request{
		Binary:           environment.AgentBinary,
		Prompt:           config.Task,
		SystemPromptFile: contextFile,
		Model:            model,
		Directory:        workspaceDirectory,
		Home:             home,
		APIKey:           environment.APIKey,
		Identity: agentdriver.Identity{
			ServerURL: serverURL,
			ProjectID: config.ProjectID,
			RunID:     config.RunID,
			SessionID: environment.SessionID,
			Role:      config.AgentRole,
		},
		Timeout:     resolveTimeout(environment, agentConfig),
		BasePercent: percentExecute,
	})
	r.result.TokenUsage = agentResult.TokenUsage
	r.result.NumTurns = agentResult.NumTurns
	r.result.AgentSessionID = agentResult.AgentSessionID
	if !agentResult.Success {
		return fmt.Errorf("agent run failed (%s): %s", agentResult.Outcome, agentResult.Error)
	}

	// Transcript. Best-effort: a copy failure is logged, not fatal.
	r.begin(session.StageCapturing, percentCapture, "Capturing transcript")
	transcriptRoot := environment.TranscriptRoot
	if transcriptRoot == "" {
		transcriptRoot = transcript.DefaultRoot(home)
	}
	capture, err := transcript.NewCapturer(transcript.Options{
		Root:        transcriptRoot,
		Compression: options.TranscriptCompression,
		Logger:      r.logger,
	}).Capture(workspaceDirectory, config.AgentRole, config.RunID)
	switch {
	case err != nil:
		r.logger.Warn("transcript capture failed", "error", err)
		r.log(progress.LevelWarn, "Transcript capture failed: "+err.Error())
	case capture.Captured:
		r.result.TranscriptPath = capture.Path
		r.result.TranscriptDigest = capture.Digest
	default:
		r.log(progress.LevelWarn, "No agent transcript found")
	}

	// Project state.
	summary := ExtractSummary(agentResult.Output)
	r.result.Summary = summary
	r.begin(session.StageCommitting, percentUpdateState, "Updating project state")
	r.recordRun(workspaceDirectory, summary)

	// Commit.
	r.begin(session.StageCommitting, percentCommit, "Committing and pushing")
	sha, err := r.workspace.CommitAndPush(ctx, config, summary, environment.GitToken)
	if err != nil {
		return err
	}
	r.result.CommitSHA = sha

	r.finishStage()
	r.percent = percentCompleted
	r.reporter.UpdateProgress(progress.Update{
		Stage:      session.StageCompleted,
		Percent:    percentCompleted,
		Step:       "Completed",
		Summary:    summary,
		CommitSHA:  sha,
		TokenUsage: r.result.TokenUsage,
	})
	r.result.Success = true
	r.logger.Info("session completed", "commit", sha, "summary", firstLine(summary))
	return nil
}

// recordRun notes the run in state/progress.yaml. The file is
// advisory: failures are logged and the run continues.
func (r *run) recordRun(workspaceDirectory, summary string) {
	path := filepath.Join(workspaceDirectory, filepath.FromSlash(projectstate.RelativePath))
	state, err := projectstate.Load(path)
	if err != nil {
		r.logger.Warn("not updating unreadable project state", "error", err)
		r.log(progress.LevelWarn, "Project state not updated: "+err.Error())
		return
	}
	state.RecordRun(projectstate.RunRecord{
		RunID:   r.config.RunID,
		Role:    string(r.config.AgentRole),
		Status:  "success",
		Time:    r.clock.Now().UTC(),
		Summary: firstLine(summary),
	})
	if err := state.Save(path); err != nil {
		r.logger.Warn("saving project state", "error", err)
		r.log(progress.LevelWarn, "Project state not updated: "+err.Error())
	}
}

// begin reports the start of a step, completing the previous stage
// when the step moves to a new one.
func (r *run) begin(stage session.ProgressStage, percent int, step string) {
	if previous, duration, ended := r.timer.enter(stage); ended {
		r.reporter.CompleteStage(previous, duration)
	}
	r.percent = percent
	r.logger.Info(step, "stage", stage, "percent", percent)
	r.reporter.UpdateProgress(progress.Update{Stage: stage, Percent: percent, Step: step})
}

func (r *run) finishStage() {
	if stage, duration, ended := r.timer.stop(); ended {
		r.reporter.CompleteStage(stage, duration)
	}
}

func (r *run) log(level, message string) {
	r.reporter.AppendLog(progress.LogEntry{Level: level, Message: message, Stage: r.timer.stage})
}

// fail is the failure branch: report, then preserve partial work.
func (r *run) fail(ctx context.Context, cause error) {
	stack := r.panicStack
	if stack == nil {
		stack = debug.Stack()
	}
	r.logger.Error("session failed", "error", cause, "stack", string(stack))
	r.result.Success = false
	r.result.Error = cause.Error()
	r.result.Summary = ""

	if r.reporter == nil {
		r.reporter = r.options.NewReporter(r.options.Environment.ResolveServerURL(r.config))
	}
	r.timer.stop()
	r.reporter.AppendLog(progress.LogEntry{Level: progress.LevelError, Message: cause.Error(), Stage: session.StageFailed})
	r.reporter.UpdateProgress(progress.Update{
		Stage:      session.StageFailed,
		Percent:    r.percent,
		Step:       "Failed",
		Error:      cause.Error(),
		TokenUsage: r.result.TokenUsage,
	})

	// Without this run's clone there is no work of this run to keep: a
	// directory left at the workspace path belongs to someone else.
	if !r.cloned {
		return
	}
	r.reporter.AppendLog(progress.LogEntry{
		Level:   progress.LevelInfo,
		Message: "Committing partial work",
		Stage:   session.StageCommitting,
	})
	commitContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), partialCommitTimeout)
	defer cancel()
	r.result.CommitSHA = r.workspace.CommitPartialWork(commitContext, r.config, cause, r.options.Environment.GitToken)

	if r.home != "" {
		r.logger.Info("isolated home kept for inspection", "home", r.home)
	}
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
