// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aibor/bootinit/internal/uevent"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

const (
	// ueventGroupKernel is the multicast group the kernel sends uevents to.
	ueventGroupKernel = 1

	ueventBufferSize       = 16 << 10
	defaultReceiveTimeout  = time.Second
	ueventReceiveRetryWait = 100 * time.Millisecond
)

// UeventListener receives kernel hotplug notifications from the uevent
// netlink socket and emits a [DeviceEvent] for each of them.
type UeventListener struct {
	// ReceiveTimeout bounds a single blocking receive, so cancellation is
	// noticed. Defaults to one second.
	ReceiveTimeout time.Duration
}

// Run implements [Source].
func (l UeventListener) Run(ctx context.Context, logger *slog.Logger, events chan<- Event) error {
	sock, err := nl.Subscribe(unix.NETLINK_KOBJECT_UEVENT, ueventGroupKernel)
	if err != nil {
		return fmt.Errorf("subscribe uevents: %w", err)
	}
	defer sock.Close()

	timeout := l.ReceiveTimeout
	if timeout <= 0 {
		timeout = defaultReceiveTimeout
	}

	timeval := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := sock.SetReceiveTimeout(&timeval); err != nil {
		return fmt.Errorf("set uevent receive timeout: %w", err)
	}

	buf := make([]byte, ueventBufferSize)

	for ctx.Err() == nil {
		n, _, err := unix.Recvfrom(sock.GetFd(), buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}

			// ENOBUFS signals lost messages on overflow. Devices present
			// at that time are still found by enumeration, so carry on.
			logger.Warn("Failed to receive uevent", slog.Any("error", err))

			select {
			case <-ctx.Done():
			case <-time.After(ueventReceiveRetryWait):
			}

			continue
		}

		record, err := uevent.Parse(buf[:n])
		if err != nil {
			logger.Debug("Skipping uevent", slog.Any("error", err))
			continue
		}

		select {
		case events <- DeviceEvent{Record: record}:
		case <-ctx.Done():
		}
	}

	return nil
}
