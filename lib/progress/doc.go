// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package progress is the session runner's one-way side channel to the
// control plane: stage transitions, agent log lines, stage durations,
// and resource metrics.
//
// Reporting is best-effort. Every Reporter method returns immediately
// and never reports failure to the caller; a slow or broken control
// plane degrades observability and nothing else. The HTTP reporter
// queues requests in a bounded buffer drained by one goroutine and
// drops entries (with a warning) when the buffer is full.
//
// Without a session ID or server URL the runner is headless and New
// returns a reporter that discards everything.
package progress
