// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo collects the host resource metrics the session runner
// reports to the control plane while an agent is working:
//
//   - CPU utilization from two /proc/stat readings ([ReadCPUStats],
//     [CPUPercent])
//   - Memory usage from /proc/meminfo ([ReadMemory])
//
// A [Sampler] keeps the previous CPU reading so each call to
// [Sampler.Sample] yields utilization over the interval since the
// last call. On platforms without /proc every reading is zero.
package hwinfo
