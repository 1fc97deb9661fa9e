// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the session runner
// binary: mapping a run outcome to a process exit status and reporting
// the error that caused it.
package process
