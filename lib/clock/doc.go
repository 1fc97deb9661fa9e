// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by the session runner.
//
// The agent runner's wall-clock timeout, its rolling progress ticker,
// the orchestrator's stage durations, and the resource metric sampler
// all read time through a [Clock]. Production wiring uses [Real]; tests
// use [Fake] and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go runner.Run(ctx, request)
//	fake.WaitForTimers(2)          // timeout timer + progress ticker
//	fake.Advance(30 * time.Minute) // fire the timeout deterministically
package clock
