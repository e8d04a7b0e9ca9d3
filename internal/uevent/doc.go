// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package uevent parses kernel hotplug notifications as they are received
// from the NETLINK_KOBJECT_UEVENT socket.
package uevent
