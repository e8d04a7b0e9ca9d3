// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Child is a running child process started by [Runtime.Spawn].
//
// Its exit is observed as [ProcessExited] event with the same Pid. It must
// not be waited for by other means, since reaping is done by the [Runtime]'s
// [ChildReaper] for all children of the process.
type Child struct {
	Pid int

	process *os.Process
}

// NewChild returns a [Child] for the given process ID that is not backed by
// an [os.Process].
func NewChild(pid int) *Child {
	return &Child{Pid: pid}
}

// Matches returns true if the given process ID is the child's one.
func (c *Child) Matches(pid int) bool {
	return c != nil && c.Pid == pid
}

// Release releases the resources held for the process. Call it once the exit
// of the child has been observed.
func (c *Child) Release() {
	if c == nil || c.process == nil {
		return
	}

	_ = c.process.Release()
	c.process = nil
}

// SpawnFunc starts the given command and returns its [Child].
type SpawnFunc func(cmd *exec.Cmd) (*Child, error)

// spawn is the default [SpawnFunc].
//
// Stdout and stderr of the command must be nil or [os.File]s. Otherwise
// os/exec starts copy goroutines that only terminate in [exec.Cmd.Wait],
// which is never called.
func spawn(cmd *exec.Cmd) (*Child, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	return &Child{
		Pid:     cmd.Process.Pid,
		process: cmd.Process,
	}, nil
}

// Signal sends the given signal to the child.
func (c *Child) Signal(sig unix.Signal) error {
	if err := unix.Kill(c.Pid, sig); err != nil {
		return fmt.Errorf("signal %d: %w", c.Pid, err)
	}

	return nil
}
