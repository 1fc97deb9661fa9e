// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"testing"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

func TestStageTimer(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	timer := &stageTimer{clock: fake}

	if _, _, ended := timer.enter(session.StageCloning); ended {
		t.Error("first enter ended a stage")
	}
	fake.Advance(3 * time.Second)

	if _, _, ended := timer.enter(session.StageCloning); ended {
		t.Error("re-entering the current stage ended it")
	}
	fake.Advance(2 * time.Second)

	previous, duration, ended := timer.enter(session.StageLoading)
	if !ended || previous != session.StageCloning || duration != 5*time.Second {
		t.Errorf("enter(loading) = %s, %s, %v", previous, duration, ended)
	}
	fake.Advance(time.Second)

	stage, duration, ended := timer.stop()
	if !ended || stage != session.StageLoading || duration != time.Second {
		t.Errorf("stop = %s, %s, %v", stage, duration, ended)
	}
	if _, _, ended := timer.stop(); ended {
		t.Error("second stop ended a stage")
	}
}
