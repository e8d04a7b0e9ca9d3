// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bootloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aibor/bootinit/internal/sysfs"
	"golang.org/x/sys/unix"
)

var (
	// ErrNoDevNumber is returned if a block device has no device number
	// information.
	ErrNoDevNumber = errors.New("missing device number information")
	// ErrInvalidDevNumber is returned if the device number information can
	// not be parsed.
	ErrInvalidDevNumber = errors.New("invalid device number information")
	// ErrNoDeviceNode is returned if no device node matches the device
	// number of a block device.
	ErrNoDeviceNode = errors.New("no matching device node")
)

// DeviceType is the kind of hardware backing a block device.
type DeviceType int

// Device types. [DeviceTypeNetwork] is reserved for network transports and is
// not yet detected by [Topology.DeviceType].
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeInternal
	DeviceTypeUSB
	DeviceTypeNetwork
)

// ErrInvalidDeviceType is returned when parsing an unknown device type name.
var ErrInvalidDeviceType = errors.New("invalid device type")

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeInternal:
		return "internal"
	case DeviceTypeUSB:
		return "usb"
	case DeviceTypeNetwork:
		return "network"
	default:
		return "other"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *DeviceType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "other":
		*t = DeviceTypeOther
	case "internal":
		*t = DeviceTypeInternal
	case "usb":
		*t = DeviceTypeUSB
	case "network":
		*t = DeviceTypeNetwork
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, text)
	}

	return nil
}

// Topology inspects block devices in sysfs and resolves their device nodes.
type Topology struct {
	// SysDir is the sysfs mount point, usually "/sys".
	SysDir string
	// DevDir is the directory containing device nodes, usually "/dev".
	DevDir string
}

// DefaultTopology returns the [Topology] of the running system.
func DefaultTopology() Topology {
	return Topology{
		SysDir: "/sys",
		DevDir: "/dev",
	}
}

// BlockDevices returns the names of all block devices in the block device
// list directory. Partitions are not included.
func (t Topology) BlockDevices() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(t.SysDir, "block"))
	if err != nil {
		return nil, fmt.Errorf("list block devices: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

// IsStorage returns true if the block device has a backing device. Memory
// and loop devices have none and are not considered storage.
func (t Topology) IsStorage(name string) bool {
	return sysfs.Exists(filepath.Join(t.SysDir, "block", name, "device"))
}

// Partitions returns the names of the partitions of the given whole-disk
// block device. Partition directories are the entries prefixed by the
// device's name.
func (t Topology) Partitions(name string) []string {
	return prefixedEntries(filepath.Join(t.SysDir, "block", name), name)
}

// HasPartitions returns true if the given block device exposes partitions.
// It works for any block device, including partitions themselves.
func (t Topology) HasPartitions(name string) bool {
	return len(prefixedEntries(filepath.Join(t.SysDir, "class", "block", name), name)) > 0
}

func prefixedEntries(dir, prefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}

	return names
}

// DevicePath returns the canonical sysfs path of the hardware device backing
// the given block device. For partitions, the backing device of the parent
// disk is returned.
func (t Topology) DevicePath(name string) (string, bool) {
	block, err := filepath.EvalSymlinks(filepath.Join(t.SysDir, "class", "block", name))
	if err != nil {
		return "", false
	}

	candidates := []string{
		filepath.Join(block, "device"),
		// Partitions are located in the directory of their parent disk.
		filepath.Join(filepath.Dir(block), "device"),
	}

	for _, candidate := range candidates {
		path, err := filepath.EvalSymlinks(candidate)
		if err == nil {
			return path, true
		}
	}

	return "", false
}

// DeviceType classifies the hardware backing the given block device.
//
// virtio devices are internal. SCSI devices are USB if their SCSI host is a
// USB device, internal otherwise. Everything else is other. The result
// depends only on the sysfs backing chain.
func (t Topology) DeviceType(name string) DeviceType {
	devicePath, found := t.DevicePath(name)
	if !found {
		return DeviceTypeOther
	}

	subsystem, err := sysfs.ReadLinkName(filepath.Join(devicePath, "subsystem"))
	if err != nil {
		return DeviceTypeOther
	}

	switch subsystem {
	case "virtio":
		return DeviceTypeInternal
	case "scsi":
		host, found := sysfs.FindAncestorWith(devicePath, "scsi_host")
		if !found {
			return DeviceTypeInternal
		}

		hostSubsystem, err := sysfs.ReadLinkName(filepath.Join(filepath.Dir(host), "subsystem"))
		if err == nil && hostSubsystem == "usb" {
			return DeviceTypeUSB
		}

		return DeviceTypeInternal
	default:
		return DeviceTypeOther
	}
}

// DeviceNode returns the path of the device node for the given block device.
//
// The conventionally named node in the device directory is checked first.
// Otherwise, the device directory is searched for a node with the device
// number of the block device.
func (t Topology) DeviceNode(name string) (string, error) {
	devInfo, err := sysfs.ReadLine(filepath.Join(t.SysDir, "class", "block", name, "dev"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoDevNumber, err)
	}

	major, minor, err := parseDevNumber(devInfo)
	if err != nil {
		return "", err
	}

	defaultPath := filepath.Join(t.DevDir, name)
	if isDeviceNode(defaultPath, major, minor) {
		return defaultPath, nil
	}

	entries, err := os.ReadDir(t.DevDir)
	if err != nil {
		return "", fmt.Errorf("list device nodes: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(t.DevDir, entry.Name())
		if isDeviceNode(path, major, minor) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s (%d:%d)", ErrNoDeviceNode, name, major, minor)
}

// parseDevNumber parses the "major:minor" format of sysfs dev files.
func parseDevNumber(devInfo string) (uint32, uint32, error) {
	majorStr, minorStr, found := strings.Cut(devInfo, ":")
	if !found {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDevNumber, devInfo)
	}

	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: major: %w", ErrInvalidDevNumber, err)
	}

	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: minor: %w", ErrInvalidDevNumber, err)
	}

	return uint32(major), uint32(minor), nil
}

// isDeviceNode returns true if the given path is a block or character device
// node with the given device number. Symbolic links are followed.
func isDeviceNode(path string, major, minor uint32) bool {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return false
	}

	switch stat.Mode & unix.S_IFMT {
	case unix.S_IFBLK, unix.S_IFCHR:
	default:
		return false
	}

	rdev := uint64(stat.Rdev) //nolint:unconvert // uint32 on some archs

	return unix.Major(rdev) == major && unix.Minor(rdev) == minor
}
