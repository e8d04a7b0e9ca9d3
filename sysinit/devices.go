// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aibor/bootinit/internal/uevent"
	"golang.org/x/sys/unix"
)

const (
	// DefaultDevDir is the directory device nodes are located in.
	DefaultDevDir = "/dev"

	defaultDevMode = 0o600
)

// ErrNoDevice is returned for uevents that do not describe a device node.
var ErrNoDevice = errors.New("uevent without device node")

// DeviceManager is a [Service] that keeps device nodes in sync with hotplug
// notifications.
//
// With devtmpfs mounted, the kernel creates nodes itself. The service only
// creates nodes that are missing and removes nodes of removed devices.
type DeviceManager struct {
	DevDir string

	mknod func(path string, mode uint32, major, minor uint32) error
	state State
}

// NewDeviceManager creates a new [DeviceManager] for the given directory.
func NewDeviceManager(devDir string) *DeviceManager {
	return &DeviceManager{
		DevDir: devDir,
		mknod:  mknod,
	}
}

// Setup implements [Service].
func (d *DeviceManager) Setup(_ *Runtime) {
	if d.DevDir == "" {
		d.DevDir = DefaultDevDir
	}
}

// Start implements [Service]. The service is event driven, so it is ready
// right away.
func (d *DeviceManager) Start(_ *Runtime) {
	d.state = StateReady
}

// State implements [Service].
func (d *DeviceManager) State() State {
	return d.state
}

// Stop implements [Service].
func (d *DeviceManager) Stop(_ *Runtime) {
	d.state = StateStopped
}

// Event implements [Service].
func (d *DeviceManager) Event(rt *Runtime, event Event) bool {
	deviceEvent, ok := event.(DeviceEvent)
	if !ok || d.state != StateReady {
		return false
	}

	record := deviceEvent.Record

	var err error

	switch record.Action() {
	case uevent.ActionAdd:
		err = d.addNode(record)
	case uevent.ActionRemove:
		err = d.removeNode(record)
	default:
		return false
	}

	if errors.Is(err, ErrNoDevice) {
		return false
	}

	logger := rt.Logger().With(
		slog.String("service", "devices"),
		slog.String("device", record.DevName()),
	)

	if err != nil {
		logger.Warn("Device node update failed", slog.Any("error", err))
		return false
	}

	logger.Debug("Device node updated", slog.String("action", record.Action().String()))

	return true
}

// nodePath returns the path of the device node described by the record. It
// refuses names escaping the device directory.
func (d *DeviceManager) nodePath(record uevent.Record) (string, error) {
	name := record.DevName()
	if name == "" {
		return "", ErrNoDevice
	}

	path := filepath.Join(d.DevDir, name)
	if !strings.HasPrefix(path, filepath.Clean(d.DevDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid name %q", ErrNoDevice, name)
	}

	return path, nil
}

func (d *DeviceManager) addNode(record uevent.Record) error {
	path, err := d.nodePath(record)
	if err != nil {
		return err
	}

	major, minor, err := deviceNumbers(record)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	mode := uint32(unix.S_IFCHR)
	if record.Subsystem() == "block" {
		mode = unix.S_IFBLK
	}

	mode |= defaultDevMode

	if devMode, exists := record.Get("DEVMODE"); exists {
		perm, err := strconv.ParseUint(devMode, 8, 32)
		if err == nil {
			mode = mode&^0o7777 | uint32(perm)&0o7777
		}
	}

	return d.mknod(path, mode, major, minor)
}

func (d *DeviceManager) removeNode(record uevent.Record) error {
	path, err := d.nodePath(record)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat node: %w", err)
	}

	if info.Mode()&os.ModeDevice == 0 {
		return fmt.Errorf("%w: not a device node: %s", ErrNoDevice, path)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove node: %w", err)
	}

	return nil
}

func deviceNumbers(record uevent.Record) (uint32, uint32, error) {
	majorStr, hasMajor := record.Get(uevent.KeyMajor)
	minorStr, hasMinor := record.Get(uevent.KeyMinor)

	if !hasMajor || !hasMinor {
		return 0, 0, ErrNoDevice
	}

	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse major: %w", err)
	}

	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse minor: %w", err)
	}

	return uint32(major), uint32(minor), nil
}
