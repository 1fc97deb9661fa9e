// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package projectstate reads and rewrites a project's structured
// progress file (state/progress.yaml in the target repository).
//
// The file is shared between agents and humans. The runner reads it to
// brief the agent on where the project stands, and after a successful
// run records the run so the next session sees it. Top-level keys this
// package does not model are carried through a rewrite untouched.
package projectstate
