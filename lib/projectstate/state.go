// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projectstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelativePath is where the progress file lives inside a repository.
const RelativePath = "state/progress.yaml"

// State is the parsed progress file.
type State struct {
	Phase       string     `yaml:"phase,omitempty"`
	Sprint      string     `yaml:"sprint,omitempty"`
	LastRun     *RunRecord `yaml:"last_run,omitempty"`
	NextActions []string   `yaml:"next_actions,omitempty"`

	// Extra holds every top-level key not listed above.
	Extra map[string]any `yaml:",inline"`
}

// RunRecord describes one completed session run.
type RunRecord struct {
	RunID     string    `yaml:"run_id"`
	Role      string    `yaml:"role"`
	Status    string    `yaml:"status"`
	Time      time.Time `yaml:"time"`
	Summary   string    `yaml:"summary,omitempty"`
	CommitSHA string    `yaml:"commit,omitempty"`
}

// Load parses the progress file at path. A missing file is not an
// error: it returns an empty State, which Save will create.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project state: %w", err)
	}
	return Parse(data)
}

// Parse decodes progress YAML. Empty input yields an empty State.
func Parse(data []byte) (*State, error) {
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing project state: %w", err)
	}
	return &state, nil
}

// IsEmpty reports whether the state carries nothing worth summarizing.
func (s *State) IsEmpty() bool {
	return s.Phase == "" && s.Sprint == "" && s.LastRun == nil && len(s.NextActions) == 0
}

// SummaryLines renders the state as short lines for the agent's
// context: phase, sprint, last run, and next actions, each only when
// present.
func (s *State) SummaryLines() []string {
	var lines []string
	if s.Phase != "" {
		lines = append(lines, "Phase: "+s.Phase)
	}
	if s.Sprint != "" {
		lines = append(lines, "Sprint: "+s.Sprint)
	}
	if run := s.LastRun; run != nil {
		line := fmt.Sprintf("Last run: %s (%s, %s)", run.RunID, run.Role, run.Status)
		if !run.Time.IsZero() {
			line += " at " + run.Time.UTC().Format(time.RFC3339)
		}
		if summary := firstLine(run.Summary); summary != "" {
			line += ": " + summary
		}
		lines = append(lines, line)
	}
	if len(s.NextActions) > 0 {
		lines = append(lines, "Next actions:")
		for _, action := range s.NextActions {
			lines = append(lines, "- "+action)
		}
	}
	return lines
}

// RecordRun replaces LastRun with record.
func (s *State) RecordRun(record RunRecord) {
	s.LastRun = &record
}

// Save writes the state to path atomically: the YAML is written to a
// temporary file in the same directory and renamed into place. The
// parent directory is created if needed.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling project state: %w", err)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}
	return nil
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		text = strings.TrimSpace(text[:index])
	}
	return text
}
