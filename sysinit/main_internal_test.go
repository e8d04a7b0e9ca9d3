// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"os/exec"
	"testing"

	"github.com/aibor/bootinit/internal/logging"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingService is a [Service] that records all calls in a shared journal.
type recordingService struct {
	name    string
	journal *[]string
	state   State
	// consume is the pid of the [ProcessExited] event the service consumes.
	consume int
	// readyOn is the pid that moves the service into readyState.
	readyOn    int
	readyState State
}

func (s *recordingService) record(call string) {
	*s.journal = append(*s.journal, s.name+":"+call)
}

func (s *recordingService) Setup(_ *Runtime) {
	s.record("setup")
}

func (s *recordingService) Start(_ *Runtime) {
	s.record("start")

	if s.state == StateInactive {
		s.state = StateRunning
	}
}

func (s *recordingService) State() State {
	return s.state
}

func (s *recordingService) Stop(_ *Runtime) {
	s.record("stop")
	s.state = StateStopped
}

func (s *recordingService) Event(_ *Runtime, event Event) bool {
	s.record("event")

	exited, ok := event.(ProcessExited)
	if !ok {
		return false
	}

	if s.readyOn != 0 && exited.Pid == s.readyOn {
		s.state = s.readyState
	}

	return exited.Pid == s.consume
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()

	opts = append([]Option{
		WithSpawnFunc(func(_ *exec.Cmd) (*Child, error) {
			t.Fatal("unexpected spawn")
			return nil, nil
		}),
	}, opts...)

	rt := NewRuntime(context.Background(), logging.Discard(), opts...)
	t.Cleanup(rt.Close)

	return rt
}
