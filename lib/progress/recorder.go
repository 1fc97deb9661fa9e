// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// Event is one report captured by a Recorder. Exactly one of the
// pointer fields is set.
type Event struct {
	Update   *Update
	Log      *LogEntry
	Complete *StageCompletion
	Metrics  *hwinfo.Metrics
}

// StageCompletion is a captured CompleteStage call.
type StageCompletion struct {
	Stage    session.ProgressStage
	Duration time.Duration
}

// Recorder is an in-memory Reporter that keeps every report in call
// order. Used by tests of packages that report progress.
type Recorder struct {
	mutex  sync.Mutex
	events []Event
	closed bool
}

func (recorder *Recorder) record(event Event) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *Recorder) UpdateProgress(update Update) {
	recorder.record(Event{Update: &update})
}

func (recorder *Recorder) AppendLog(entry LogEntry) {
	recorder.record(Event{Log: &entry})
}

func (recorder *Recorder) CompleteStage(stage session.ProgressStage, duration time.Duration) {
	recorder.record(Event{Complete: &StageCompletion{Stage: stage, Duration: duration}})
}

func (recorder *Recorder) ReportMetrics(metrics hwinfo.Metrics) {
	recorder.record(Event{Metrics: &metrics})
}

func (recorder *Recorder) Close(context.Context) error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.closed = true
	return nil
}

// Closed reports whether Close was called.
func (recorder *Recorder) Closed() bool {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.closed
}

// Events returns a copy of everything recorded so far.
func (recorder *Recorder) Events() []Event {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]Event(nil), recorder.events...)
}

// Updates returns the recorded progress updates in order.
func (recorder *Recorder) Updates() []Update {
	var updates []Update
	for _, event := range recorder.Events() {
		if event.Update != nil {
			updates = append(updates, *event.Update)
		}
	}
	return updates
}

// Logs returns the recorded log entries in order.
func (recorder *Recorder) Logs() []LogEntry {
	var entries []LogEntry
	for _, event := range recorder.Events() {
		if event.Log != nil {
			entries = append(entries, *event.Log)
		}
	}
	return entries
}

// Completions returns the recorded stage completions in order.
func (recorder *Recorder) Completions() []StageCompletion {
	var completions []StageCompletion
	for _, event := range recorder.Events() {
		if event.Complete != nil {
			completions = append(completions, *event.Complete)
		}
	}
	return completions
}
