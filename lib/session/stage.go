// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

// ProgressStage is the coarse pipeline phase reported to the control
// plane. Stages are ordered; everything before the current stage is
// implicitly complete. Completed and Failed are terminal and mutually
// exclusive.
type ProgressStage string

const (
	StagePending    ProgressStage = "pending"
	StageCloning    ProgressStage = "cloning"
	StageLoading    ProgressStage = "loading"
	StageExecuting  ProgressStage = "executing"
	StageCapturing  ProgressStage = "capturing"
	StageCommitting ProgressStage = "committing"
	StageCompleted  ProgressStage = "completed"
	StageFailed     ProgressStage = "failed"
)

var stageOrder = map[ProgressStage]int{
	StagePending:    0,
	StageCloning:    1,
	StageLoading:    2,
	StageExecuting:  3,
	StageCapturing:  4,
	StageCommitting: 5,
	StageCompleted:  6,
	StageFailed:     6,
}

// IsKnown reports whether s is one of the defined stages.
func (s ProgressStage) IsKnown() bool {
	_, ok := stageOrder[s]
	return ok
}

// Index returns the position of s in the stage sequence, or -1 for an
// unknown stage. The two terminal stages share the last position.
func (s ProgressStage) Index() int {
	index, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return index
}

// IsTerminal reports whether s ends the run.
func (s ProgressStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}
