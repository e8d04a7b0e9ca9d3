// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"strconv"

	"github.com/aibor/bootinit/internal/uevent"
	"golang.org/x/sys/unix"
)

// Event is an occurrence dispatched to all services. It is either
// [ProcessExited] or [DeviceEvent].
type Event interface {
	isEvent()
}

// ProcessExited is dispatched once a child process has been reaped.
type ProcessExited struct {
	Pid    int
	Status ExitStatus
}

func (ProcessExited) isEvent() {}

// DeviceEvent is dispatched for every kernel hotplug notification.
type DeviceEvent struct {
	Record uevent.Record
}

func (DeviceEvent) isEvent() {}

// ExitStatus is the status of a reaped child process as returned by wait4(2).
type ExitStatus unix.WaitStatus

// ExitCode returns the [ExitStatus] of a process that exited normally with the
// given exit code.
func ExitCode(code int) ExitStatus {
	return ExitStatus(uint32(code&0xff) << 8) //nolint:gosec
}

// Success returns true if the process exited normally with exit code 0.
func (s ExitStatus) Success() bool {
	ws := unix.WaitStatus(s)
	return ws.Exited() && ws.ExitStatus() == 0
}

// Code returns the exit code of the process. Processes terminated by a signal
// return 128 plus the signal number, like shells report them.
func (s ExitStatus) Code() int {
	ws := unix.WaitStatus(s)

	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return -1
	}
}

func (s ExitStatus) String() string {
	ws := unix.WaitStatus(s)

	if ws.Signaled() {
		return "signal: " + ws.Signal().String()
	}

	return "exit status " + strconv.Itoa(s.Code())
}
