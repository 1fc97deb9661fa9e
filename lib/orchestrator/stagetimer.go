// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// stageTimer measures how long the current stage has run. It is owned
// by one run and passed explicitly; there is no shared stage state.
type stageTimer struct {
	clock   clock.Clock
	stage   session.ProgressStage
	started time.Time
	active  bool
}

// enter makes stage current. It returns the previous stage and its
// duration when entering a different stage ended one.
func (timer *stageTimer) enter(stage session.ProgressStage) (session.ProgressStage, time.Duration, bool) {
	if timer.active && timer.stage == stage {
		return "", 0, false
	}
	previous, duration, ended := timer.stop()
	timer.stage = stage
	timer.started = timer.clock.Now()
	timer.active = true
	return previous, duration, ended
}

// stop ends the current stage, if any, and returns it with its
// duration.
func (timer *stageTimer) stop() (session.ProgressStage, time.Duration, bool) {
	if !timer.active {
		return "", 0, false
	}
	timer.active = false
	return timer.stage, clock.Since(timer.clock, timer.started), true
}
