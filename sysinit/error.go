// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPidOne is returned if the process is expected to be run as PID 1
	// but is not.
	ErrNotPidOne = errors.New("process does not have ID 1")
	// ErrServiceFailed is returned if a service waited for ended up in a
	// terminal state instead of becoming ready.
	ErrServiceFailed = errors.New("service failed")
)

// ServiceError is returned by [Runtime.PollServiceReady] if the service
// terminated without becoming ready. It matches [ErrServiceFailed].
type ServiceError struct {
	Instance Instance
	State    State
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%v: instance %d is %s", ErrServiceFailed, e.Instance, e.State)
}

func (*ServiceError) Unwrap() error {
	return ErrServiceFailed
}

// OptionalMountError collects the errors of mount points that are allowed to
// fail. Boot continues with them.
type OptionalMountError []error

func (e OptionalMountError) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}

	return "optional mount errors: " + strings.Join(msgs, "; ")
}

func (OptionalMountError) Is(other error) bool {
	_, ok := other.(OptionalMountError)
	return ok
}

func (e OptionalMountError) Unwrap() []error {
	return e
}
