// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Poweroff shuts down the system.
//
// It does not return, unless in case of error.
func Poweroff() error {
	if err := reboot(unix.LINUX_REBOOT_CMD_POWER_OFF); err != nil {
		return fmt.Errorf("poweroff failed: %w", err)
	}

	return nil
}

// Reboot restarts the system.
//
// It does not return, unless in case of error.
func Reboot() error {
	if err := reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}

	return nil
}

// IsPidOne returns true if the running process has PID 1.
func IsPidOne() bool {
	return getpid() == 1
}

// SetHostname sets the system's host name.
func SetHostname(name string) error {
	return sethostname(name)
}
