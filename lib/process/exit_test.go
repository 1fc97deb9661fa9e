// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	base := errors.New("clone failed")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", base, ExitFailure},
		{"exit error", &ExitError{Code: 3, Err: base}, 3},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: 2}), 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(test.err); got != test.want {
				t.Errorf("ExitCode(%v) = %d, want %d", test.err, got, test.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	t.Parallel()

	base := errors.New("agent exited")
	err := &ExitError{Code: ExitFailure, Err: base}
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if err.Error() != "agent exited" {
		t.Errorf("Error() = %q", err.Error())
	}
	if (&ExitError{Code: 4}).Error() != "exit status 4" {
		t.Errorf("Error() without cause = %q", (&ExitError{Code: 4}).Error())
	}
}
