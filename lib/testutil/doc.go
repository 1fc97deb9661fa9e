// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the session runner
// packages.
//
// [NewRemote] creates a throwaway bare repository seeded with one
// commit on a branch, so workspace and orchestrator tests can clone,
// commit, and push against real git without any network.
// [Remote.PushFromClone] simulates a concurrent writer diverging the
// remote, which is how push-conflict handling is exercised.
//
// [WriteScript] writes an executable shell script used as a stand-in
// for the agent binary.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a wall-clock fallback) so individual tests do not need
// direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
