// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import "sync"

// CPUReading captures cumulative busy and idle jiffies from the
// aggregate "cpu" line of /proc/stat.
//
// busy = user + nice + system + irq + softirq + steal
// idle = idle + iowait
type CPUReading struct {
	Busy uint64
	Idle uint64
}

// CPUPercent computes utilization between two sequential readings.
// Returns 0 if either reading is nil, no time has passed, or the
// counters went backwards.
func CPUPercent(previous, current *CPUReading) float64 {
	if previous == nil || current == nil {
		return 0
	}
	if current.Busy < previous.Busy || current.Idle < previous.Idle {
		return 0
	}
	busyDelta := current.Busy - previous.Busy
	idleDelta := current.Idle - previous.Idle
	totalDelta := busyDelta + idleDelta
	if totalDelta == 0 {
		return 0
	}
	return float64(busyDelta) / float64(totalDelta) * 100
}

// MemoryReading is a point-in-time view of host memory.
type MemoryReading struct {
	TotalMB int
	UsedMB  int
}

// Percent returns UsedMB as a percentage of TotalMB, or 0 when the
// total is unknown.
func (reading MemoryReading) Percent() float64 {
	if reading.TotalMB <= 0 {
		return 0
	}
	return float64(reading.UsedMB) / float64(reading.TotalMB) * 100
}

// Metrics is one resource sample.
type Metrics struct {
	CPUPercent    float64
	MemoryMB      int
	MemoryPercent float64
}

// Sampler produces Metrics, remembering the previous CPU reading for
// delta computation. The first sample reports 0% CPU. Safe for
// concurrent use.
type Sampler struct {
	mutex    sync.Mutex
	previous *CPUReading

	readCPU    func() *CPUReading
	readMemory func() MemoryReading
}

// NewSampler returns a Sampler reading the live /proc files.
func NewSampler() *Sampler {
	return &Sampler{readCPU: ReadCPUStats, readMemory: ReadMemory}
}

// Sample takes one reading.
func (sampler *Sampler) Sample() Metrics {
	sampler.mutex.Lock()
	defer sampler.mutex.Unlock()

	current := sampler.readCPU()
	cpu := CPUPercent(sampler.previous, current)
	if current != nil {
		sampler.previous = current
	}

	memory := sampler.readMemory()
	return Metrics{
		CPUPercent:    cpu,
		MemoryMB:      memory.UsedMB,
		MemoryPercent: memory.Percent(),
	}
}
