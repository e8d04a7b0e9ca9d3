// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

// Service is a unit of supervised functionality managed by a [Manager].
//
// All methods are called from the goroutine running the [Runtime]'s dispatch
// loop, so implementations need no locking. They must not block. Work that
// may take long must be moved into child processes started with
// [Runtime.Spawn], whose exit is then observed as [ProcessExited] event.
type Service interface {
	// Setup prepares the service before it is started. It is called once.
	Setup(rt *Runtime)

	// Start begins the service's work. It may complete the work entirely or
	// leave work pending.
	Start(rt *Runtime)

	// State returns the current lifecycle stage. It is derived from the
	// service's internal state.
	State() State

	// Stop requests the service to shut down. It is best-effort.
	Stop(rt *Runtime)

	// Event is called for every dispatched [Event]. It returns true if the
	// event was consumed by the service. The return value is informational
	// only: events are always offered to all services.
	Event(rt *Runtime, event Event) bool
}
