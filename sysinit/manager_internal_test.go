// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAddService(t *testing.T) {
	rt := newTestRuntime(t)
	journal := []string{}
	manager := NewManager()

	first := manager.AddService(rt, &recordingService{name: "a", journal: &journal}, true)
	second := manager.AddService(rt, &recordingService{name: "b", journal: &journal}, false)

	assert.Equal(t, Instance(0), first)
	assert.Equal(t, Instance(1), second)
	assert.Equal(t, []string{"a:setup", "a:start", "b:setup"}, journal)
	assert.Equal(t, StateRunning, manager.State(first))
	assert.Equal(t, StateInactive, manager.State(second))

	manager.Start(rt, second)
	assert.Equal(t, StateRunning, manager.State(second))
}

func TestManagerUnknownInstance(t *testing.T) {
	rt := newTestRuntime(t)
	manager := NewManager()

	assert.Nil(t, manager.Service(0))
	assert.Nil(t, manager.Service(-1))
	assert.Equal(t, StateInactive, manager.State(3))
	assert.NotPanics(t, func() { manager.Start(rt, 3) })
}

func TestManagerDispatch(t *testing.T) {
	rt := newTestRuntime(t)
	journal := []string{}
	manager := NewManager()

	manager.AddService(rt, &recordingService{name: "a", journal: &journal, consume: 42}, false)
	manager.AddService(rt, &recordingService{name: "b", journal: &journal}, false)
	manager.AddService(rt, &recordingService{name: "c", journal: &journal, consume: 42}, false)

	tests := []struct {
		name     string
		event    Event
		expected bool
	}{
		{
			name:     "consumed",
			event:    ProcessExited{Pid: 42},
			expected: true,
		},
		{
			name:  "not consumed",
			event: ProcessExited{Pid: 43},
		},
		{
			name:  "device",
			event: DeviceEvent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal = journal[:0]

			assert.Equal(t, tt.expected, manager.Dispatch(rt, tt.event))
			assert.Equal(t, []string{"a:event", "b:event", "c:event"}, journal,
				"every service must see the event in order")
		})
	}
}

func TestManagerRunning(t *testing.T) {
	rt := newTestRuntime(t)
	journal := []string{}
	manager := NewManager()

	assert.False(t, manager.Running(), "empty")

	ready := &recordingService{name: "a", journal: &journal, state: StateReady}
	manager.AddService(rt, ready, true)
	assert.False(t, manager.Running(), "ready only")

	instance := manager.AddService(rt, &recordingService{name: "b", journal: &journal}, true)
	assert.True(t, manager.Running())

	manager.Service(instance).Stop(rt)
	assert.False(t, manager.Running(), "stopped")
}

func TestManagerStopAll(t *testing.T) {
	rt := newTestRuntime(t)
	journal := []string{}
	manager := NewManager()

	for _, name := range []string{"a", "b", "c"} {
		manager.AddService(rt, &recordingService{name: name, journal: &journal}, false)
	}

	journal = journal[:0]
	manager.StopAll(rt)

	require.Equal(t, []string{"c:stop", "b:stop", "a:stop"}, journal)
}
