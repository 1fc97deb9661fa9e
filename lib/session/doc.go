// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session defines the data model of one agent session run:
// the immutable [Config] loaded from the session file, the [AgentRole]
// and [ModelTier] enumerations, the [ProgressStage] sequence reported
// to the control plane, [TokenUsage], and the terminal [RunResult].
//
// [LoadConfig] is the only way a run obtains its configuration. It
// parses JSONC (JSON with comments and trailing commas), rejects
// unknown fields, and validates every required field before returning,
// so a malformed session file fails before any clone or subprocess.
//
// [EnvironmentFrom] reads the environment once, through a lookup
// function (os.Getenv in the binary); nothing else in the runner reads
// environment variables.
package session
