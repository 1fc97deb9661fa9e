// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator sequences one agent session:
//
//	load config -> clone -> load agent config -> assemble context ->
//	run agent -> capture transcript -> update project state ->
//	commit and push -> completed
//
// Every step reports its start to the progress reporter, and each
// stage reports its duration when the pipeline moves past it. Any
// error, including a panic, ends the pipeline in the failure branch:
// the failure is reported, whatever the agent left in the workspace is
// committed as partial work (only when this run's clone succeeded), and the
// RunResult records success=false. A failing agent never reaches the
// good-path commit.
package orchestrator
