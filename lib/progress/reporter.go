// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"context"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// Log levels used in LogEntry.Level.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Update is a progress report: the current stage and how far along
// the run is. The optional fields are set on terminal updates.
type Update struct {
	Stage   session.ProgressStage `json:"stage"`
	Percent int                   `json:"percent"`
	Step    string                `json:"step,omitempty"`

	Summary    string              `json:"summary,omitempty"`
	CommitSHA  string              `json:"commit_sha,omitempty"`
	Error      string              `json:"error,omitempty"`
	TokenUsage *session.TokenUsage `json:"token_usage,omitempty"`
}

// LogEntry is one log line attributed to a stage.
type LogEntry struct {
	Level   string                `json:"level"`
	Message string                `json:"message"`
	Stage   session.ProgressStage `json:"stage,omitempty"`
}

// Reporter sends progress to the control plane. Methods never block on
// the network and never fail; Close flushes what is queued.
type Reporter interface {
	UpdateProgress(update Update)
	AppendLog(entry LogEntry)
	CompleteStage(stage session.ProgressStage, duration time.Duration)
	ReportMetrics(metrics hwinfo.Metrics)

	// Close stops accepting reports and waits, until ctx is done, for
	// queued ones to be sent.
	Close(ctx context.Context) error
}

// Nop returns a Reporter that discards everything, used in headless
// mode.
func Nop() Reporter { return nopReporter{} }

type nopReporter struct{}

func (nopReporter) UpdateProgress(Update) {}
func (nopReporter) AppendLog(LogEntry) {}
func (nopReporter) CompleteStage(session.ProgressStage, time.Duration) {}
func (nopReporter) ReportMetrics(hwinfo.Metrics) {}
func (nopReporter) Close(context.Context) error { return nil }
