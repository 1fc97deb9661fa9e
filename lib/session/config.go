// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the sole configuration input to a run. It is loaded once
// by LoadConfig and never mutated afterwards.
type Config struct {
	// RunID identifies this run. It names the transcript directory and
	// the isolated home, so it must be a safe path segment.
	RunID string `json:"run_id"`

	ProjectID string    `json:"project_id"`
	AgentRole AgentRole `json:"agent_role"`

	// Phase is the project phase the run belongs to (free text, e.g.
	// "discovery", "build").
	Phase string `json:"phase,omitempty"`

	// RepoURL and Branch locate the repository to clone and push to.
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch"`

	// Task holds the free-text instructions for the agent.
	Task string `json:"task"`

	// AssignedTasks lists task identifiers from the control plane.
	AssignedTasks []string `json:"assigned_tasks,omitempty"`

	// ServerURL is the control-plane base URL. The BUREAU_SERVER_URL
	// environment variable takes precedence.
	ServerURL string `json:"server_url,omitempty"`

	// Model optionally overrides the role's default tier.
	Model ModelTier `json:"model,omitempty"`
}

// runIDPattern restricts run IDs to characters safe in a single path
// segment and in a commit message suffix.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidationError lists every problem found in a session config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid session config: " + strings.Join(e.Problems, "; ")
}

// Validate checks required fields and enumerations. It returns a
// *ValidationError describing all problems at once.
func (config *Config) Validate() error {
	var problems []string
	require := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, field+" is required")
		}
	}

	require(config.RunID, "run_id")
	require(config.ProjectID, "project_id")
	require(string(config.AgentRole), "agent_role")
	require(config.RepoURL, "repo_url")
	require(config.Branch, "branch")
	require(config.Task, "task")

	if config.RunID != "" && (!runIDPattern.MatchString(config.RunID) || config.RunID == "." || config.RunID == "..") {
		problems = append(problems, fmt.Sprintf("run_id %q must match %s", config.RunID, runIDPattern))
	}
	if config.AgentRole != "" && !config.AgentRole.IsKnown() {
		problems = append(problems, fmt.Sprintf("agent_role %q is not one of pm, engineer, qa, lead", config.AgentRole))
	}
	if config.Model != "" && !config.Model.IsKnown() {
		problems = append(problems, fmt.Sprintf("model %q is not one of opus, sonnet, haiku", config.Model))
	}
	if strings.HasPrefix(config.Branch, "-") {
		problems = append(problems, fmt.Sprintf("branch %q must not start with '-'", config.Branch))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ParseConfig strips JSONC comments and trailing commas from data,
// decodes it strictly (unknown fields are errors), and validates the
// result.
func ParseConfig(data []byte) (*Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing session config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parsing session config: trailing data after JSON object")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig reads and parses the session config file at path.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("no session config path given (use --config or BUREAU_SESSION_CONFIG)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session config: %w", err)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}
