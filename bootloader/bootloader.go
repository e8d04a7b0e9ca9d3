// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bootloader

import (
	"log/slog"
	"slices"

	"github.com/aibor/bootinit/internal/procfs"
	"github.com/aibor/bootinit/internal/uevent"
	"github.com/aibor/bootinit/sysinit"
)

const serviceName = "bootloader"

// Config defines the environment of the [Bootloader].
type Config struct {
	// SysDir is the sysfs mount point.
	SysDir string
	// DevDir is the directory containing device nodes.
	DevDir string
	// MountDir is the directory mount points are created in, one per
	// device.
	MountDir string
	// MountsFile is the mount table used for checking if a device is
	// mounted already.
	MountsFile string
	// MountCommand is the program used for mounting devices. It is called
	// with the device, the mount point and the options "-o ro".
	MountCommand string
	// Loader is the EFI loader file name searched for.
	Loader string
}

// DefaultConfig returns the default [Config].
func DefaultConfig() Config {
	topology := DefaultTopology()

	return Config{
		SysDir:       topology.SysDir,
		DevDir:       topology.DevDir,
		MountDir:     "/var/run/bootloader/mounts",
		MountsFile:   procfs.DefaultMountsFile,
		MountCommand: "mount",
		Loader:       "bootx64.efi",
	}
}

// DefaultPriority is the default order of device type preference for
// [Bootloader.SelectBootEntry].
func DefaultPriority() []DeviceType {
	return []DeviceType{
		DeviceTypeUSB,
		DeviceTypeInternal,
		DeviceTypeNetwork,
		DeviceTypeOther,
	}
}

// Bootloader is a [sysinit.Service] that discovers bootable images on block
// devices.
//
// It keeps a [DeviceProbe] for every block device it has seen. Probes are
// never removed.
type Bootloader struct {
	config   Config
	topology Topology
	mounted  mountChecker
	probes   []*DeviceProbe
}

// New creates a new [Bootloader] with the given [Config].
func New(config Config) *Bootloader {
	return &Bootloader{
		config: config,
		topology: Topology{
			SysDir: config.SysDir,
			DevDir: config.DevDir,
		},
		mounted: func(device string) (bool, error) {
			return procfs.DeviceMounted(config.MountsFile, device)
		},
	}
}

// Setup implements [sysinit.Service].
func (*Bootloader) Setup(_ *sysinit.Runtime) {}

// Start implements [sysinit.Service]. It probes the partitions of all block
// devices that are backed by storage hardware.
//
// Whole-disk devices without partitions are not probed.
func (b *Bootloader) Start(rt *sysinit.Runtime) {
	logger := rt.Logger().With(slog.String("service", serviceName))
	logger.Info("Starting search of block devices")

	names, err := b.topology.BlockDevices()
	if err != nil {
		logger.Error("Block device enumeration failed", slog.Any("error", err))
		return
	}

	for _, name := range names {
		if !b.topology.IsStorage(name) {
			continue
		}

		for _, partition := range b.topology.Partitions(name) {
			b.ProbePartition(rt, partition)
		}
	}
}

// State implements [sysinit.Service].
//
// It is [sysinit.StateInactive] as long as no device has been probed,
// [sysinit.StateRunning] while any probe is incomplete and
// [sysinit.StateReady] once all probes are complete. Hotplug notifications
// are handled in any state.
func (b *Bootloader) State() sysinit.State {
	if len(b.probes) == 0 {
		return sysinit.StateInactive
	}

	incomplete := slices.ContainsFunc(b.probes, func(p *DeviceProbe) bool {
		return p.state != BlockStateComplete
	})
	if incomplete {
		return sysinit.StateRunning
	}

	return sysinit.StateReady
}

// Stop implements [sysinit.Service]. There is nothing to tear down.
func (*Bootloader) Stop(_ *sysinit.Runtime) {}

// Event implements [sysinit.Service].
//
// The event is offered to all probes first. If none consumed it, hotplug
// additions of block devices without partitions are probed. Disks with
// partitions are skipped, as their partitions are announced separately.
func (b *Bootloader) Event(rt *sysinit.Runtime, event sysinit.Event) bool {
	var handled bool

	for _, probe := range b.probes {
		if probe.event(rt, event, b.config.Loader) {
			handled = true
		}
	}

	if handled {
		return true
	}

	deviceEvent, ok := event.(sysinit.DeviceEvent)
	if !ok {
		return false
	}

	record := deviceEvent.Record
	if record.Subsystem() != "block" || record.Action() != uevent.ActionAdd {
		return false
	}

	name := record.DevName()
	if name == "" || b.topology.HasPartitions(name) {
		return false
	}

	rt.Logger().Info("New block device",
		slog.String("service", serviceName),
		slog.String("name", name),
	)

	b.ProbePartition(rt, name)

	return false
}

// ProbePartition creates a [DeviceProbe] for the block device with the given
// name and starts mounting it. It returns true if a new probe was added.
//
// Names that have a probe already are ignored. If the probe can not be
// created or the device can not be mounted, the error is logged and no probe
// is added.
func (b *Bootloader) ProbePartition(rt *sysinit.Runtime, name string) bool {
	if b.hasProbe(name) {
		return false
	}

	logger := rt.Logger().With(
		slog.String("service", serviceName),
		slog.String("name", name),
	)

	probe, err := newDeviceProbe(b.topology, b.config.MountDir, name)
	if err != nil {
		logger.Error("Probing block device failed", slog.Any("error", err))
		return false
	}

	logger.Info("Found block device to probe",
		slog.String("device", probe.device),
		slog.String("type", probe.deviceType.String()),
	)

	err = probe.mount(rt, b.config.MountCommand, b.mounted)
	if err != nil {
		logger.Error("Mounting block device failed", slog.Any("error", err))
		return false
	}

	b.probes = append(b.probes, probe)

	return true
}

func (b *Bootloader) hasProbe(name string) bool {
	return slices.ContainsFunc(b.probes, func(p *DeviceProbe) bool {
		return p.name == name
	})
}

// Probes returns snapshots of all probes in creation order.
func (b *Bootloader) Probes() []ProbeInfo {
	infos := make([]ProbeInfo, 0, len(b.probes))
	for _, probe := range b.probes {
		infos = append(infos, probe.info())
	}

	return infos
}

// SelectBootEntry returns the first [BootEntry] found on a device of the most
// preferred type in the given order. Within a type, probes are considered in
// creation order. Only complete probes are considered. It returns false if
// there is no matching entry.
func (b *Bootloader) SelectBootEntry(order []DeviceType) (BootEntry, bool) {
	for _, deviceType := range order {
		for _, probe := range b.probes {
			if probe.state != BlockStateComplete ||
				probe.deviceType != deviceType ||
				len(probe.entries) == 0 {
				continue
			}

			return probe.entries[0], true
		}
	}

	return BootEntry{}, false
}
