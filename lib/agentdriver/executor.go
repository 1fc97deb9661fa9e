// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Invocation describes one agent process to start.
type Invocation struct {
	Binary string
	Args   []string

	// Env is the complete environment, in "KEY=VALUE" form.
	Env []string

	// Dir is the working directory.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started agent process.
type Process interface {
	// Wait blocks until the process exits. A process that ran and
	// exited (with any status) reports its exit code and a nil error;
	// the error is reserved for failures to observe the exit. A
	// process killed by a signal reports exit code -1.
	Wait() (exitCode int, err error)

	// Terminate asks the process and everything it spawned to exit.
	Terminate() error
}

// Executor starts agent processes.
type Executor interface {
	// Start spawns the process. An error means the process never ran
	// (executable missing, permission denied).
	Start(ctx context.Context, invocation Invocation) (Process, error)
}

// DefaultWaitDelay bounds how long Wait keeps reading output after
// the process exits, for when a grandchild holds the pipes open.
const DefaultWaitDelay = 5 * time.Second

// ExecExecutor starts processes with os/exec. Each process runs in its
// own process group with stdin connected to /dev/null, and Terminate
// signals the whole group, so tools the agent spawned are stopped
// along with it.
type ExecExecutor struct {
	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
}

// Start implements Executor. Cancelling ctx terminates the process
// group.
func (executor ExecExecutor) Start(ctx context.Context, invocation Invocation) (Process, error) {
	command := exec.CommandContext(ctx, invocation.Binary, invocation.Args...)
	command.Dir = invocation.Dir
	command.Env = invocation.Env
	command.Stdout = invocation.Stdout
	command.Stderr = invocation.Stderr
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	command.Cancel = func() error {
		return signalGroup(command.Process, unix.SIGTERM)
	}
	command.WaitDelay = executor.WaitDelay
	if command.WaitDelay <= 0 {
		command.WaitDelay = DefaultWaitDelay
	}

	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", invocation.Binary, err)
	}
	return &execProcess{command: command}, nil
}

type execProcess struct {
	command *exec.Cmd
}

func (process *execProcess) Wait() (int, error) {
	err := process.command.Wait()
	if err == nil {
		return 0, nil
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return exitError.ExitCode(), nil
	}
	return -1, err
}

func (process *execProcess) Terminate() error {
	return signalGroup(process.command.Process, unix.SIGTERM)
}

// signalGroup sends signal to the process group led by process. A
// group that has already exited is not an error.
func signalGroup(process *os.Process, signal syscall.Signal) error {
	if process == nil {
		return errors.New("process not started")
	}
	err := unix.Kill(-process.Pid, signal)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signalling process group %d: %w", process.Pid, err)
	}
	return nil
}
