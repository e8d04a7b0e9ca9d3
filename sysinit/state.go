// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

// State is the lifecycle stage of a [Service].
type State uint8

const (
	// StateInactive means the service has not started any work yet.
	StateInactive State = iota
	// StateRunning means the service has work pending.
	StateRunning
	// StateReady means the service completed its work or is fully
	// operational.
	StateReady
	// StateStopped means the service was stopped.
	StateStopped
	// StateFailed means the service failed and does not continue.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true if the state is not left anymore.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}
