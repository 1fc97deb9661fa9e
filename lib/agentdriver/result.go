// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentdriver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// Outcome classifies how an agent run ended.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeSpawnError Outcome = "spawn_error"
)

// TimeoutError is Result.Error for a run that hit the timeout.
const TimeoutError = "Process timed out"

// Result is the reduced outcome of one agent run.
type Result struct {
	Outcome Outcome
	Success bool

	// Output is the agent's free-text result, or the raw stdout when
	// stdout was not a result object. Empty on spawn error.
	Output string

	// Error describes the failure; empty on success.
	Error string

	// ExitCode is -1 when the process did not exit normally or was
	// never started.
	ExitCode int

	TokenUsage *session.TokenUsage

	// NumTurns and AgentSessionID are copied from the result object
	// when present.
	NumTurns       int
	AgentSessionID string
}

// resultObject is the JSON the agent writes to stdout under
// --output-format json.
type resultObject struct {
	Type         string       `json:"type"`
	Subtype      string       `json:"subtype"`
	IsError      bool         `json:"is_error"`
	Result       string       `json:"result"`
	Usage        *usageObject `json:"usage"`
	TotalCostUSD *float64     `json:"total_cost_usd"`
	NumTurns     int          `json:"num_turns"`
	SessionID    string       `json:"session_id"`
}

type usageObject struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// parseResultObject decodes stdout as exactly one JSON object.
func parseResultObject(stdout []byte) (*resultObject, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, errors.New("agent produced no output")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("agent output is not a JSON object")
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	var object resultObject
	if err := decoder.Decode(&object); err != nil {
		return nil, fmt.Errorf("decoding agent result: %w", err)
	}
	if decoder.More() {
		return nil, errors.New("agent output has data after the result object")
	}
	return &object, nil
}

// tokenUsage returns nil when the result carried no usage.
func (object *resultObject) tokenUsage() *session.TokenUsage {
	if object.Usage == nil {
		return nil
	}
	usage := session.NewTokenUsage(
		object.Usage.InputTokens,
		object.Usage.OutputTokens,
		object.Usage.CacheReadInputTokens,
		object.Usage.CacheCreationInputTokens,
		object.TotalCostUSD,
	)
	return &usage
}
