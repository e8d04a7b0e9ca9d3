// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"

	"golang.org/x/sync/errgroup"
)

const eventQueueSize = 64

// CleanupFunc is run by [Runtime.Close].
type CleanupFunc func() error

// Runtime owns the logger and the event sources and runs the single dispatch
// loop.
//
// Events are produced by [Source]s running in their own goroutines, but they
// are dispatched to the services only by the goroutine calling [Runtime.Poll]
// or [Runtime.PollServiceReady]. So all service state transitions happen
// sequentially in a deterministic order.
type Runtime struct {
	logger     *slog.Logger
	events     chan Event
	sources    []Source
	spawn      SpawnFunc
	cancel     context.CancelFunc
	group      *errgroup.Group
	cleanupFns []CleanupFunc
}

// Option configures a [Runtime].
type Option func(*Runtime)

// WithSource adds an event [Source].
func WithSource(source Source) Option {
	return func(r *Runtime) {
		r.sources = append(r.sources, source)
	}
}

// WithSpawnFunc replaces the function used by [Runtime.Spawn].
func WithSpawnFunc(fn SpawnFunc) Option {
	return func(r *Runtime) {
		r.spawn = fn
	}
}

// NewRuntime creates a new [Runtime] and starts its event sources. They run
// until the given context is cancelled or [Runtime.Close] is called.
//
// A source that fails to start is logged and ignored. The dispatch loop keeps
// working with the remaining sources.
func NewRuntime(ctx context.Context, logger *slog.Logger, opts ...Option) *Runtime {
	rt := &Runtime{
		logger: logger,
		events: make(chan Event, eventQueueSize),
		spawn:  spawn,
	}

	for _, opt := range opts {
		opt(rt)
	}

	ctx, rt.cancel = context.WithCancel(ctx)
	rt.group, ctx = errgroup.WithContext(ctx)

	for _, source := range rt.sources {
		rt.group.Go(func() error {
			err := source.Run(ctx, logger, rt.events)
			if err != nil {
				logger.Error("Event source failed",
					slog.String("source", fmt.Sprintf("%T", source)),
					slog.Any("error", err),
				)
			}

			// Never cancel the other sources.
			return nil
		})
	}

	return rt
}

// Logger returns the logger of the [Runtime].
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Spawn starts the given command as child process. Its termination is
// dispatched as [ProcessExited] event.
func (r *Runtime) Spawn(cmd *exec.Cmd) (*Child, error) {
	return r.spawn(cmd)
}

// Cleanup registers a function that is run by [Runtime.Close].
func (r *Runtime) Cleanup(fn CleanupFunc) {
	r.cleanupFns = append(r.cleanupFns, fn)
}

// Close stops all event sources, waits for them to terminate and runs the
// registered cleanup functions in reverse order.
func (r *Runtime) Close() {
	r.cancel()
	_ = r.group.Wait()

	for _, fn := range slices.Backward(r.cleanupFns) {
		if err := fn(); err != nil {
			r.logger.Error("Cleanup failed", slog.Any("error", err))
		}
	}

	r.cleanupFns = nil
}

// Poll runs the dispatch loop. It waits for events and dispatches each of them
// to the given [Manager].
//
// It returns only if the context is cancelled, or if exitOnIdle is true and
// no service is in [StateRunning] anymore.
func (r *Runtime) Poll(ctx context.Context, manager *Manager, exitOnIdle bool) error {
	for {
		if exitOnIdle && !manager.Running() {
			return nil
		}

		if err := r.dispatchNext(ctx, manager); err != nil {
			return err
		}
	}
}

// PollServiceReady runs the dispatch loop until the service of the given
// [Instance] is in [StateReady]. If the service ends up in a terminal state
// instead, a [*ServiceError] is returned.
//
// It is meant for services that later services depend on, like the initial
// mounts.
func (r *Runtime) PollServiceReady(ctx context.Context, manager *Manager, instance Instance) error {
	for {
		state := manager.State(instance)

		switch {
		case state == StateReady:
			return nil
		case state.Terminal():
			return &ServiceError{Instance: instance, State: state}
		}

		if err := r.dispatchNext(ctx, manager); err != nil {
			return err
		}
	}
}

func (r *Runtime) dispatchNext(ctx context.Context, manager *Manager) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("poll: %w", ctx.Err())
	case event := <-r.events:
		manager.Dispatch(r, event)
		return nil
	}
}
