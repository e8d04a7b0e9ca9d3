// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"log/slog"
	"slices"
)

// Instance is a handle for a [Service] registered with a [Manager].
type Instance int

// Manager is the ordered registry of active [Service]s.
//
// It is not safe for concurrent use. It is only used from the goroutine
// running the dispatch loop.
type Manager struct {
	services []Service
}

// NewManager creates a new empty [Manager].
func NewManager() *Manager {
	return &Manager{}
}

// AddService registers the given service and runs its setup. If start is
// true, the service is started right away.
func (m *Manager) AddService(rt *Runtime, service Service, start bool) Instance {
	instance := Instance(len(m.services))
	m.services = append(m.services, service)

	rt.Logger().Debug("Adding service",
		slog.Int("instance", int(instance)),
		slog.Bool("start", start),
	)

	service.Setup(rt)

	if start {
		service.Start(rt)
	}

	return instance
}

// Service returns the [Service] for the given [Instance]. It returns nil for
// unknown instances.
func (m *Manager) Service(instance Instance) Service {
	if instance < 0 || int(instance) >= len(m.services) {
		return nil
	}

	return m.services[instance]
}

// Start starts the service of the given [Instance].
func (m *Manager) Start(rt *Runtime, instance Instance) {
	if service := m.Service(instance); service != nil {
		service.Start(rt)
	}
}

// State returns the [State] of the given [Instance]. Unknown instances are
// [StateInactive].
func (m *Manager) State(instance Instance) State {
	service := m.Service(instance)
	if service == nil {
		return StateInactive
	}

	return service.State()
}

// Running returns true if any service is in [StateRunning].
func (m *Manager) Running() bool {
	return slices.ContainsFunc(m.services, func(service Service) bool {
		return service.State() == StateRunning
	})
}

// Dispatch offers the given event to all services in registration order. A
// service consuming the event does not stop delivery to later services, as
// multiple services may care about the same process or device. It returns
// true if any service consumed the event.
func (m *Manager) Dispatch(rt *Runtime, event Event) bool {
	var handled bool

	for _, service := range m.services {
		if service.Event(rt, event) {
			handled = true
		}
	}

	return handled
}

// StopAll stops all services in reverse registration order.
func (m *Manager) StopAll(rt *Runtime) {
	for _, service := range slices.Backward(m.services) {
		service.Stop(rt)
	}
}
