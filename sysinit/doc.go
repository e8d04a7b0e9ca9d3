// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sysinit provides the building blocks of a process 1 supervisor.
//
// A [Runtime] collects events from its [Source]s, like terminated child
// processes ([ChildReaper]) and kernel hotplug notifications
// ([UeventListener]), and dispatches them one after another to the [Service]s
// registered with a [Manager]. All service state transitions happen on the
// goroutine running the dispatch loop, so services need no locking.
//
// Long running work, like mounting a device that might hang, must not block
// the dispatch loop. Such work is run in child processes started with
// [Runtime.Spawn], whose termination is observed as [ProcessExited] event.
//
// The package also contains the services needed for early boot: [MountSetup]
// for the special file systems, [ModuleLoader], [DeviceManager] and
// [ConsoleService].
package sysinit
