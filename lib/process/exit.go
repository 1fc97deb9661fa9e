// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

const (
	// ExitSuccess is returned when the whole pipeline succeeded.
	ExitSuccess = 0

	// ExitFailure is returned for any failed run: configuration,
	// clone, agent execution, or an uncaught error.
	ExitFailure = 1
)

// ExitError carries an explicit exit status out of run(). It wraps the
// underlying error so callers can still inspect it.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the status for err: 0 for nil, the carried code
// for an *ExitError, and ExitFailure otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.Code
	}
	return ExitFailure
}

// Exit reports err (if any, and if it carries a message) on stderr
// and exits with ExitCode(err).
func Exit(err error) {
	code := ExitCode(err)
	var exitError *ExitError
	if err != nil && !(errors.As(err, &exitError) && exitError.Err == nil) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(code)
}
