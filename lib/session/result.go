// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// RunResult is the final outcome of a run, printed as JSON on stdout.
// It is constructed once, at the end of the pipeline.
type RunResult struct {
	Success   bool      `json:"success"`
	RunID     string    `json:"run_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	AgentRole AgentRole `json:"agent_role,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`

	// Summary is set on success, Error on failure.
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`

	// CommitSHA is empty when there was nothing to commit or the run
	// failed before committing.
	CommitSHA string `json:"commit_sha,omitempty"`

	TokenUsage *TokenUsage `json:"token_usage,omitempty"`

	// NumTurns and AgentSessionID come from the agent's result object;
	// the session ID locates the agent's own transcript.
	NumTurns       int    `json:"num_turns,omitempty"`
	AgentSessionID string `json:"agent_session_id,omitempty"`

	// TranscriptPath is repository-relative; TranscriptDigest is the
	// BLAKE3 hex digest of the captured bytes.
	TranscriptPath   string `json:"transcript_path,omitempty"`
	TranscriptDigest string `json:"transcript_digest,omitempty"`

	// ContextFiles lists the repository files that contributed to the
	// agent's context document, in read order.
	ContextFiles []string `json:"context_files,omitempty"`
}
