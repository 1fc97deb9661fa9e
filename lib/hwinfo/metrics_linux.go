// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// ReadCPUStats parses the first line of /proc/stat. Returns nil on
// any parse failure; callers treat nil as "no reading".
func ReadCPUStats() *CPUReading {
	return readCPUStatsFrom("/proc/stat")
}

func readCPUStatsFrom(path string) *CPUReading {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil
	}

	// "cpu  user nice system idle iowait irq softirq steal [guest guest_nice]"
	fields := strings.Fields(scanner.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return nil
	}

	values := make([]uint64, 8)
	for i := range values {
		parsed, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return nil
		}
		values[i] = parsed
	}

	// 0=user 1=nice 2=system 3=idle 4=iowait 5=irq 6=softirq 7=steal
	return &CPUReading{
		Busy: values[0] + values[1] + values[2] + values[5] + values[6] + values[7],
		Idle: values[3] + values[4],
	}
}

// ReadMemory parses /proc/meminfo. Used memory is MemTotal minus
// MemAvailable. Returns a zero reading on failure.
func ReadMemory() MemoryReading {
	return readMemoryFrom("/proc/meminfo")
}

func readMemoryFrom(path string) MemoryReading {
	file, err := os.Open(path)
	if err != nil {
		return MemoryReading{}
	}
	defer file.Close()

	var totalKB, availableKB uint64
	var haveTotal, haveAvailable bool
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// "MemTotal:       16318480 kB"
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, haveTotal = value, true
		case "MemAvailable:":
			availableKB, haveAvailable = value, true
		}
		if haveTotal && haveAvailable {
			break
		}
	}
	if !haveTotal || !haveAvailable || availableKB > totalKB {
		return MemoryReading{}
	}
	return MemoryReading{
		TotalMB: int(totalKB / 1024),
		UsedMB:  int((totalKB - availableKB) / 1024),
	}
}
