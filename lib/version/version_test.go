// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, Version+" (") {
		t.Errorf("Info() = %q, want version prefix", info)
	}
	if !strings.Contains(info, GitCommit) {
		t.Errorf("Info() = %q, want commit %q", info, GitCommit)
	}
	if GitDirty != "true" && strings.Contains(info, "-dirty") {
		t.Errorf("Info() = %q reports dirty for a clean build", info)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
}
