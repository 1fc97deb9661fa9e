// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hwinfo

// ReadCPUStats is unavailable without /proc.
func ReadCPUStats() *CPUReading { return nil }

// ReadMemory is unavailable without /proc.
func ReadMemory() MemoryReading { return MemoryReading{} }
