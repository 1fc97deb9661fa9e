// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript preserves the agent's own execution log in the
// session repository.
//
// The agent keeps its transcripts outside the workspace, under
// <home>/.claude/projects/<project>/<session>.jsonl. After a run the
// newest transcript is copied to sessions/<role>/<runId>/transcript.jsonl
// in the repository so it is committed with the agent's work. A missing
// transcript is reported, not treated as an error.
package transcript
