// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-session runs one agent session: it clones the target
// repository, assembles the agent's context, runs the agent CLI in an
// isolated home, captures its transcript, and commits and pushes the
// result, reporting progress to the control plane throughout.
//
// The session config path comes from --config, the first positional
// argument, or BUREAU_SESSION_CONFIG, in that order. Everything else is
// read from BUREAU_* environment variables (see lib/session).
//
// The agent's own stdout is copied to stdout as it runs, and the
// RunResult is printed after it as the final JSON object. The agent's
// stderr, logs, and a one-line status go to stderr. The exit status is 0 when the whole pipeline
// succeeded and 1 otherwise.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/sessionrunner/lib/orchestrator"
	"github.com/bureau-foundation/sessionrunner/lib/process"
	"github.com/bureau-foundation/sessionrunner/lib/session"
	"github.com/bureau-foundation/sessionrunner/lib/transcript"
	"github.com/bureau-foundation/sessionrunner/lib/version"
)

const binaryName = "bureau-session"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	process.Exit(err)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			fmt.Fprintf(stderr, "panic: %v\n%s", recovered, debug.Stack())
			err = fmt.Errorf("internal error: %v", recovered)
		}
	}()

	var configFlag string
	var showVersion bool
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configFlag, "config", "", "path to the session config (JSON with comments)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "%s %s\n", binaryName, version.Full())
		return nil
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	environment, err := session.EnvironmentFrom(lookup)
	if err != nil {
		return err
	}
	configPath := resolveConfigPath(configFlag, flagSet.Args(), environment)
	if configPath == "" {
		printHelp(stderr, flagSet)
		return fmt.Errorf("no session config: pass --config, a positional path, or set %s", session.EnvConfigPath)
	}
	compression, err := transcript.ParseCompression(environment.TranscriptCompression)
	if err != nil {
		return err
	}

	logger := newLogger(stderr).With("binary", binaryName)
	slog.SetDefault(logger)
	logger.Info("session runner starting", "version", version.Info(), "config", configPath)

	result := orchestrator.New(orchestratorOptions(configPath, environment, compression, stdout, stderr, logger)).Run(ctx)

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("writing run result: %w", err)
	}
	printStatus(stderr, result)

	if !result.Success {
		return &process.ExitError{Code: process.ExitFailure}
	}
	return nil
}

// orchestratorOptions routes the agent's streams to the binary's own:
// agent stdout to stdout, ahead of the RunResult, and agent stderr to
// stderr alongside the logs.
func orchestratorOptions(configPath string, environment session.Environment, compression transcript.Compression,
	stdout, stderr io.Writer, logger *slog.Logger) orchestrator.Options {
	return orchestrator.Options{
		ConfigPath:            configPath,
		Environment:           environment,
		AgentStdout:           stdout,
		AgentStderr:           stderr,
		TranscriptCompression: compression,
		Logger:                logger,
	}
}

// resolveConfigPath applies the precedence --config, then the first
// positional argument, then the environment.
func resolveConfigPath(flag string, positional []string, environment session.Environment) string {
	if flag != "" {
		return flag
	}
	if len(positional) > 0 {
		return positional[0]
	}
	return environment.ConfigPath
}

// newLogger picks a text handler for a terminal and JSON otherwise, so
// piped output stays machine-parseable.
func newLogger(stderr io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if file, ok := stderr.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}

// printStatus writes a one-line outcome. Color is used only when the
// writer is a terminal that supports it.
func printStatus(w io.Writer, result *session.RunResult) {
	output := termenv.NewOutput(w)
	if result.Success {
		line := fmt.Sprintf("session %s succeeded", result.RunID)
		if result.CommitSHA != "" {
			line += " at " + shortSHA(result.CommitSHA)
		}
		fmt.Fprintln(w, output.String(line).Foreground(output.Color("2")).Bold())
		return
	}
	line := "session failed"
	if result.RunID != "" {
		line = fmt.Sprintf("session %s failed", result.RunID)
	}
	fmt.Fprintln(w, output.String(line+": "+result.Error).Foreground(output.Color("1")).Bold())
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Run one agent session and print its RunResult as JSON.

Usage:
  %[1]s [flags] [config-path]

The config path may also be given in %[2]s.

Flags:
`, binaryName, session.EnvConfigPath)
	flagSet.PrintDefaults()
}
