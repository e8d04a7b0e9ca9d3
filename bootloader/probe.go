// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bootloader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aibor/bootinit/sysinit"
)

const (
	efiDir       = "EFI"
	mountDirMode = 0o755
)

// ErrAlreadyMounted is returned if a device is mounted already.
var ErrAlreadyMounted = errors.New("device already mounted")

// BlockState is the mount and scan progress of a [DeviceProbe]. It only ever
// advances in the order of the constants.
type BlockState uint8

const (
	// BlockStateUnchecked is the initial state.
	BlockStateUnchecked BlockState = iota
	// BlockStateMounting means the mount process is running.
	BlockStateMounting
	// BlockStateScanning means the mounted file system is being scanned.
	BlockStateScanning
	// BlockStateComplete is the terminal state.
	BlockStateComplete
)

func (s BlockState) String() string {
	switch s {
	case BlockStateUnchecked:
		return "unchecked"
	case BlockStateMounting:
		return "mounting"
	case BlockStateScanning:
		return "scanning"
	case BlockStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// BootEntry is a discovered bootable image.
type BootEntry struct {
	// Kernel is the path of the image relative to the mount point.
	Kernel string
	// Initramfs is the optional path of an initramfs relative to the mount
	// point.
	Initramfs string
	// Append is an optional kernel command line.
	Append string

	// Device is the device node the entry was found on.
	Device string
	// MountPoint is where the device is mounted.
	MountPoint string
}

// KernelPath returns the absolute path of the kernel image.
func (e BootEntry) KernelPath() string {
	return filepath.Join(e.MountPoint, e.Kernel)
}

// mountChecker reports whether a device node is mounted already.
type mountChecker func(device string) (bool, error)

// DeviceProbe is the discovery state of a single block device.
type DeviceProbe struct {
	name       string
	device     string
	deviceType DeviceType
	point      string
	state      BlockState
	// child is set in BlockStateMounting only.
	child   *sysinit.Child
	entries []BootEntry
}

func newDeviceProbe(topology Topology, mountDir, name string) (*DeviceProbe, error) {
	device, err := topology.DeviceNode(name)
	if err != nil {
		return nil, err
	}

	return &DeviceProbe{
		name:       name,
		device:     device,
		deviceType: topology.DeviceType(name),
		point:      filepath.Join(mountDir, name),
		state:      BlockStateUnchecked,
	}, nil
}

// advance moves to the given state. States never move backwards, so it does
// nothing and returns false if the given state is not ahead of the current
// one.
func (p *DeviceProbe) advance(next BlockState) bool {
	if next <= p.state {
		return false
	}

	p.state = next

	if next != BlockStateMounting {
		p.child.Release()
		p.child = nil
	}

	return true
}

func (p *DeviceProbe) logger(rt *sysinit.Runtime) *slog.Logger {
	return rt.Logger().With(
		slog.String("service", serviceName),
		slog.String("name", p.name),
	)
}

// mount starts the external read-only mount of the device at the probe's mount
// point.
//
// It fails if the device is mounted already or the mount point can not be
// created. A mount process that can not be started completes the probe
// without entries.
func (p *DeviceProbe) mount(rt *sysinit.Runtime, command string, mounted mountChecker) error {
	isMounted, err := mounted(p.device)
	if err != nil {
		return fmt.Errorf("check mounts: %w", err)
	}

	if isMounted {
		return fmt.Errorf("%w: %s", ErrAlreadyMounted, p.device)
	}

	if err := os.MkdirAll(p.point, mountDirMode); err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}

	logger := p.logger(rt).With(
		slog.String("device", p.device),
		slog.String("target", p.point),
	)

	cmd := exec.Command(command, p.device, p.point, "-o", "ro")
	cmd.Stderr = os.Stderr

	child, err := rt.Spawn(cmd)
	if err != nil {
		logger.Error("Mounting failed", slog.Any("error", err))
		p.advance(BlockStateComplete)

		return nil
	}

	logger.Info("Mounting", slog.Int("pid", child.Pid))

	p.child = child
	p.advance(BlockStateMounting)

	return nil
}

// scan searches the EFI directory of the mounted file system for the given
// loader file name. The name is matched case-insensitively. The first match
// in lexical order is the only entry. The probe is complete afterwards.
func (p *DeviceProbe) scan(rt *sysinit.Runtime, loader string) {
	logger := p.logger(rt)

	defer p.advance(BlockStateComplete)

	entries, err := os.ReadDir(filepath.Join(p.point, efiDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Reading EFI directory failed", slog.Any("error", err))
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(entry.Name(), loader) {
			continue
		}

		bootEntry := BootEntry{
			Kernel:     filepath.Join(efiDir, entry.Name()),
			Device:     p.device,
			MountPoint: p.point,
		}
		p.entries = append(p.entries, bootEntry)

		logger.Info("Scan found bootable", slog.String("path", bootEntry.KernelPath()))

		return
	}

	logger.Info("Scan complete, nothing found to boot")
}

// event handles the exit of the probe's mount process. Any other event is not
// consumed.
func (p *DeviceProbe) event(rt *sysinit.Runtime, event sysinit.Event, loader string) bool {
	exited, ok := event.(sysinit.ProcessExited)
	if !ok || p.state != BlockStateMounting || !p.child.Matches(exited.Pid) {
		return false
	}

	logger := p.logger(rt)

	if !exited.Status.Success() {
		logger.Error("Mount failed", slog.String("status", exited.Status.String()))
		p.advance(BlockStateComplete)

		return true
	}

	logger.Info("Mount completed")
	p.advance(BlockStateScanning)
	p.scan(rt, loader)

	return true
}

// ProbeInfo is a snapshot of a [DeviceProbe].
type ProbeInfo struct {
	Name       string
	Device     string
	Type       DeviceType
	MountPoint string
	State      BlockState
	Entries    []BootEntry
}

func (p *DeviceProbe) info() ProbeInfo {
	entries := make([]BootEntry, len(p.entries))
	copy(entries, p.entries)

	return ProbeInfo{
		Name:       p.name,
		Device:     p.device,
		Type:       p.deviceType,
		MountPoint: p.point,
		State:      p.state,
		Entries:    entries,
	}
}
