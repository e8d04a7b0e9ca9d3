// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialConsolesConnectedFromBytes(t *testing.T) {
	tests := []struct {
		name        string
		input       []string
		expected    []console
		expectedErr error
	}{
		{
			name:     "empty",
			expected: []console{},
		},
		{
			name: "single console",
			input: []string{
				"serinfo:1.0 driver revision:\n",
				"0: uart:16550A port:000003F8 irq:4 tx:0 rx:0 RTS|CTS|DSR|CD\n",
				"1: uart:unknown port:000002F8 irq:3\n",
				"2: uart:unknown port:000003E8 irq:4\n",
				"3: uart:unknown port:000002E8 irq:3\n",
				"4: uart:unknown port:00000000 irq:0\n",
			},
			expected: []console{
				{port: 0, path: "/dev/ttyS0"},
			},
		},
		{
			name: "multiple consoles",
			input: []string{
				"serinfo:1.0 driver revision:\n",
				"0: uart:16550A port:000003F8 irq:4 tx:0 rx:0 RTS|CTS|DSR|CD\n",
				"1: uart:16550A port:000002F8 irq:3 tx:0 rx:0 CTS|DSR|CD\n",
				"2: uart:16550A port:000003E8 irq:4 tx:0 rx:0 CTS|DSR|CD\n",
				"3: uart:unknown port:000002E8 irq:3\n",
				"4: uart:unknown port:00000000 irq:0\n",
			},
			expected: []console{
				{port: 0, path: "/dev/ttyS0"},
				{port: 1, path: "/dev/ttyS1"},
				{port: 2, path: "/dev/ttyS2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := []byte(strings.Join(tt.input, ""))
			actual, err := serialConsolesConnectedFromBytes(input)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestConsolePath(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		port     int
		expected string
	}{
		{
			name:     "virtio",
			typ:      "hvc",
			port:     42,
			expected: "/dev/hvc42",
		},
		{
			name:     "serial",
			typ:      "ttyS",
			port:     269,
			expected: "/dev/ttyS269",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := consolePath(tt.typ, tt.port)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

type fakeGettySpawner struct {
	args [][]string
	err  error
}

func (s *fakeGettySpawner) spawn(cmd *exec.Cmd) (*Child, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.args = append(s.args, cmd.Args)

	return NewChild(1000 + len(s.args)), nil
}

func newConsoleRuntime(t *testing.T) (*Runtime, *fakeGettySpawner) {
	t.Helper()

	spawner := &fakeGettySpawner{}

	return newTestRuntime(t, WithSpawnFunc(spawner.spawn)), spawner
}

func TestConsoleServiceSetup(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		rt, _ := newConsoleRuntime(t)
		service := NewConsoleService("ttyS1", 0, false)
		service.detect = func() ([]console, error) {
			t.Fatal("unexpected detection")
			return nil, nil
		}

		service.Setup(rt)

		assert.Equal(t, "ttyS1", service.Name)
		assert.Equal(t, DefaultBaudRate, service.Baud)
		assert.Equal(t, DefaultGetty, service.Getty)
		assert.Equal(t, StateInactive, service.State())
	})

	t.Run("detected", func(t *testing.T) {
		rt, _ := newConsoleRuntime(t)
		service := NewConsoleService("", 9600, false)
		service.detect = func() ([]console, error) {
			return []console{{path: "/dev/hvc0"}, {port: 1, path: "/dev/ttyS1"}}, nil
		}

		service.Setup(rt)

		assert.Equal(t, "hvc0", service.Name)
		assert.Equal(t, 9600, service.Baud)
	})

	t.Run("nothing detected", func(t *testing.T) {
		rt, spawner := newConsoleRuntime(t)
		service := NewConsoleService("", 0, true)
		service.detect = func() ([]console, error) {
			return []console{}, nil
		}

		service.Setup(rt)
		service.Start(rt)

		assert.Equal(t, StateFailed, service.State())
		assert.Empty(t, spawner.args)
	})
}

func TestConsoleServiceLifecycle(t *testing.T) {
	tests := []struct {
		name          string
		respawn       bool
		expectedState State
		expectedSpawn int
	}{
		{
			name:          "once",
			expectedState: StateStopped,
			expectedSpawn: 1,
		},
		{
			name:          "respawn",
			respawn:       true,
			expectedState: StateRunning,
			expectedSpawn: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, spawner := newConsoleRuntime(t)
			service := NewConsoleService("ttyS0", 115200, tt.respawn)

			manager := NewManager()
			manager.AddService(rt, service, true)

			require.Len(t, spawner.args, 1)
			assert.Equal(t,
				[]string{DefaultGetty, "-L", "115200", "ttyS0", "vt100"},
				spawner.args[0],
			)
			assert.Equal(t, StateRunning, service.State())

			assert.False(t, service.Event(rt, ProcessExited{Pid: 4242}), "foreign pid")
			assert.True(t, service.Event(rt, ProcessExited{Pid: 1001, Status: ExitCode(0)}))

			assert.Equal(t, tt.expectedState, service.State())
			assert.Len(t, spawner.args, tt.expectedSpawn)
		})
	}
}

func TestConsoleServiceGivesUp(t *testing.T) {
	rt, spawner := newConsoleRuntime(t)
	service := NewConsoleService("ttyS0", 0, true)
	service.Setup(rt)
	service.Start(rt)

	for range maxQuickRespawns {
		pid := service.child.Pid
		service.Event(rt, ProcessExited{Pid: pid, Status: ExitCode(1)})
	}

	assert.Equal(t, StateFailed, service.State())
	assert.Len(t, spawner.args, maxQuickRespawns)
}

func TestConsoleServiceSpawnFailure(t *testing.T) {
	rt, spawner := newConsoleRuntime(t)
	spawner.err = assert.AnError

	service := NewConsoleService("ttyS0", 0, true)
	service.Setup(rt)
	service.Start(rt)

	assert.Equal(t, StateFailed, service.State())
}

func TestConsoleServiceStopped(t *testing.T) {
	rt, spawner := newConsoleRuntime(t)
	service := NewConsoleService("ttyS0", 0, true)
	service.Setup(rt)

	service.Stop(rt)
	service.Start(rt)

	assert.Equal(t, StateStopped, service.State())
	assert.Empty(t, spawner.args)
}
