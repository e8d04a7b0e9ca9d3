// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bootloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyBlockDevices(t *testing.T) {
	fs := newFakeSysfs(t)

	names, err := fs.topology().BlockDevices()
	require.NoError(t, err)
	assert.Equal(t, []string{"ram0", "sda", "sdb", "vda"}, names)
}

func TestTopologyIsStorage(t *testing.T) {
	fs := newFakeSysfs(t)
	topology := fs.topology()

	assert.True(t, topology.IsStorage("sda"))
	assert.True(t, topology.IsStorage("vda"))
	assert.False(t, topology.IsStorage("ram0"))
	assert.False(t, topology.IsStorage("nope"))
}

func TestTopologyPartitions(t *testing.T) {
	fs := newFakeSysfs(t)
	topology := fs.topology()

	assert.Equal(t, []string{"sda1"}, topology.Partitions("sda"))
	assert.Empty(t, topology.Partitions("ram0"))
	assert.True(t, topology.HasPartitions("sdb"))
	assert.False(t, topology.HasPartitions("sdb1"))
	assert.False(t, topology.HasPartitions("ram0"))
}

func TestTopologyDeviceType(t *testing.T) {
	fs := newFakeSysfs(t)
	topology := fs.topology()

	tests := []struct {
		name     string
		expected DeviceType
	}{
		{name: "sda", expected: DeviceTypeInternal},
		{name: "sda1", expected: DeviceTypeInternal},
		{name: "sdb", expected: DeviceTypeUSB},
		{name: "sdb1", expected: DeviceTypeUSB},
		{name: "vda", expected: DeviceTypeInternal},
		{name: "vda1", expected: DeviceTypeInternal},
		{name: "ram0", expected: DeviceTypeOther},
		{name: "missing", expected: DeviceTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := topology.DeviceType(tt.name)
			assert.Equal(t, tt.expected, first)
			assert.Equal(t, first, topology.DeviceType(tt.name), "repeated call")
		})
	}
}

func TestTopologyDeviceTypeUnknownSubsystem(t *testing.T) {
	fs := newFakeSysfs(t)

	nvme := fs.mkdir(t, "devices", "pci0000:00", "0000:00:1d.0", "nvme0")
	fs.mkdir(t, "bus", "nvme")
	fs.symlink(t, filepath.Join(fs.sysDir, "bus", "nvme"), nvme, "subsystem")
	fs.addDisk(t, nvme, "nvme0n1", "nvme0n1p1")

	assert.Equal(t, DeviceTypeOther, fs.topology().DeviceType("nvme0n1p1"))
}

func TestTopologyDeviceNode(t *testing.T) {
	t.Run("conventional name", func(t *testing.T) {
		fs := newFakeSysfs(t)
		fs.addNode(t, "null")
		expected := fs.addNode(t, "sda1")

		node, err := fs.topology().DeviceNode("sda1")
		require.NoError(t, err)
		assert.Equal(t, expected, node)
	})

	t.Run("scan by device number", func(t *testing.T) {
		fs := newFakeSysfs(t)
		require.NoError(t, os.Mkdir(filepath.Join(fs.devDir, "disk"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(fs.devDir, "file"), nil, 0o644))
		expected := fs.addNode(t, "null")

		node, err := fs.topology().DeviceNode("sda1")
		require.NoError(t, err)
		assert.Equal(t, expected, node)
	})

	t.Run("no node", func(t *testing.T) {
		fs := newFakeSysfs(t)

		_, err := fs.topology().DeviceNode("sda1")
		require.ErrorIs(t, err, ErrNoDeviceNode)
	})

	t.Run("no dev file", func(t *testing.T) {
		fs := newFakeSysfs(t)

		_, err := fs.topology().DeviceNode("missing")
		require.ErrorIs(t, err, ErrNoDevNumber)
	})
}

func TestParseDevNumber(t *testing.T) {
	tests := []struct {
		input       string
		major       uint32
		minor       uint32
		expectedErr error
	}{
		{input: "8:1", major: 8, minor: 1},
		{input: "259:0", major: 259, minor: 0},
		{input: "8", expectedErr: ErrInvalidDevNumber},
		{input: "a:1", expectedErr: ErrInvalidDevNumber},
		{input: "8:", expectedErr: ErrInvalidDevNumber},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			major, minor, err := parseDevNumber(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.major, major)
			assert.Equal(t, tt.minor, minor)
		})
	}
}

func TestDeviceTypeText(t *testing.T) {
	for _, deviceType := range []DeviceType{
		DeviceTypeOther,
		DeviceTypeInternal,
		DeviceTypeUSB,
		DeviceTypeNetwork,
	} {
		t.Run(deviceType.String(), func(t *testing.T) {
			text, err := deviceType.MarshalText()
			require.NoError(t, err)

			var actual DeviceType
			require.NoError(t, actual.UnmarshalText(text))
			assert.Equal(t, deviceType, actual)
		})
	}

	var actual DeviceType
	require.ErrorIs(t, actual.UnmarshalText([]byte("floppy")), ErrInvalidDeviceType)
}
