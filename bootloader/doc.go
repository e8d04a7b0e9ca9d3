// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bootloader discovers bootable images on attached block storage.
//
// The [Bootloader] is a [sysinit.Service]. On start, it enumerates the block
// devices present in sysfs and probes all their partitions. Later, it probes
// block devices announced by hotplug notifications. Probing a device mounts it
// read-only at a private mount point by an external mount process, so a slow
// or hanging mount never blocks the dispatch loop. Once the mount process
// terminated successfully, the file system is scanned for an EFI loader.
//
// The discovered [BootEntry]s can be selected by device type preference with
// [Bootloader.SelectBootEntry].
//
// Whole-disk devices without partitions found during enumeration are not
// probed. Such devices are only probed if they are announced by a hotplug
// notification.
package bootloader
