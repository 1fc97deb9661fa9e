// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentdriver

import (
	"fmt"
	"os"
	"path/filepath"
)

// onboardingMarker is the agent's own settings file. Its presence with
// hasCompletedOnboarding set skips the interactive first-run flow,
// which would otherwise block a non-interactive run.
const onboardingMarker = ".claude.json"

const onboardingContent = "{\"hasCompletedOnboarding\": true}\n"

// PrepareHome creates a fresh home directory for one run under parent
// (the OS temp directory when empty), named bureau-home-<runID>-<random>,
// and writes the onboarding marker into it. The caller owns the
// directory and decides when to remove it.
func PrepareHome(parent, runID string) (string, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	home, err := os.MkdirTemp(parent, "bureau-home-"+runID+"-")
	if err != nil {
		return "", fmt.Errorf("creating isolated home: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, onboardingMarker), []byte(onboardingContent), 0600); err != nil {
		os.RemoveAll(home)
		return "", fmt.Errorf("writing onboarding marker: %w", err)
	}
	return home, nil
}
