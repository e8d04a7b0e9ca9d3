// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Source produces [Event]s for the [Runtime]'s dispatch loop.
//
// Run blocks until the context is cancelled. Read failures must be logged and
// retried instead of being returned. A returned error means the source could
// not be set up at all.
type Source interface {
	Run(ctx context.Context, logger *slog.Logger, events chan<- Event) error
}

// SourceFunc is a function implementing [Source].
type SourceFunc func(ctx context.Context, logger *slog.Logger, events chan<- Event) error

// Run implements [Source].
func (f SourceFunc) Run(ctx context.Context, logger *slog.Logger, events chan<- Event) error {
	return f(ctx, logger, events)
}

// ChildReaper reaps all terminated child processes of the process and emits a
// [ProcessExited] event for each of them.
//
// When running as PID 1, orphaned processes of the whole system are
// re-parented to this process and reaped as well.
type ChildReaper struct{}

// Run implements [Source].
func (ChildReaper) Run(ctx context.Context, logger *slog.Logger, events chan<- Event) error {
	signals := make(chan os.Signal, 1)

	signal.Notify(signals, unix.SIGCHLD)
	defer signal.Stop(signals)

	for {
		// SIGCHLD is not queued, so a single signal may stand for multiple
		// terminated children. Children that terminated before the signal
		// handler was installed are collected in the first round.
		if !reapAll(ctx, logger, events) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-signals:
		}
	}
}

// reapAll reaps terminated children until there are none left. It returns
// false if the context was cancelled.
func reapAll(ctx context.Context, logger *slog.Logger, events chan<- Event) bool {
	for {
		var status unix.WaitStatus

		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			if !errors.Is(err, unix.ECHILD) {
				logger.Warn("Failed to reap child processes", slog.Any("error", err))
			}

			return true
		}

		// No more terminated children for now.
		if pid <= 0 {
			return true
		}

		select {
		case events <- ProcessExited{Pid: pid, Status: ExitStatus(status)}:
		case <-ctx.Done():
			return false
		}
	}
}
