// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "testing"

func TestExtractSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"plain text", "Added the widget.", "Added the widget."},
		{"atx heading", "# Summary\nAdded file", "Added file"},
		{"lower level heading", "### summary\n\nFixed the bug.\n", "Fixed the bug."},
		{"trailing colon", "## Summary:\nRefactored parser", "Refactored parser"},
		{"setext heading", "Summary\n=======\n\nUpdated docs", "Updated docs"},
		{"leading whitespace", "\n\n  # SUMMARY\nDone  \n", "Done"},
		{"other heading kept", "# Changes\n- one", "# Changes\n- one"},
		{"summary not first", "Intro\n\n# Summary\nBody", "Intro\n\n# Summary\nBody"},
		{"heading only", "# Summary\n", DefaultSummary},
		{"empty", "", DefaultSummary},
		{"whitespace", "  \n\t\n", DefaultSummary},
		{"multiline body", "# Summary\nline one\nline two", "line one\nline two"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractSummary(test.output); got != test.want {
				t.Errorf("ExtractSummary(%q) = %q, want %q", test.output, got, test.want)
			}
		})
	}
}
