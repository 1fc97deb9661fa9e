// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentdriver runs the external coding agent (Claude Code by
// default) as a subprocess and reduces its output to a Result.
//
// The agent is a black box reached through three streams. Its stdout,
// under --output-format json, is one JSON result object written at
// exit. Its stderr is free-form diagnostics, forwarded line by line to
// the progress reporter as the only live signal of what it is doing.
// Its exit code is the third.
//
//   - Executor / Process: the spawn boundary. ExecExecutor starts a real
//     process in its own process group; tests substitute a fake.
//
//   - Runner: enforces the wall-clock timeout, tees both streams to the
//     parent's own stdout and stderr, emits rolling progress, and
//     classifies the run into an Outcome.
//
//   - PrepareHome: creates the per-run home directory the agent runs
//     under, so no state leaks between runs.
//
// A run ends in exactly one Outcome: OutcomeSuccess, OutcomeFailure
// (non-zero exit, unparseable output, or an error result),
// OutcomeTimedOut, or OutcomeSpawnError (the executable could not be
// started at all, in which case nothing is parsed).
package agentdriver
