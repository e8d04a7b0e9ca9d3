// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/bootinit/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		content     *string
		expected    string
		expectedErr error
	}{
		{
			name:        "missing",
			expectedErr: os.ErrNotExist,
		},
		{
			name:        "empty",
			content:     new(string),
			expectedErr: sysfs.ErrEmpty,
		},
		{
			name:     "dev",
			content:  ptr("8:1\n"),
			expected: "8:1",
		},
		{
			name:     "multi line",
			content:  ptr(" first \nsecond\n"),
			expected: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}

			actual, err := sysfs.ReadLine(path)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestReadLinkName(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "subsystem")

	require.NoError(t, os.Symlink("../../../bus/scsi", link))

	actual, err := sysfs.ReadLinkName(link)
	require.NoError(t, err)
	assert.Equal(t, "scsi", actual)

	_, err = sysfs.ReadLinkName(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindAncestorWith(t *testing.T) {
	root := t.TempDir()
	host := filepath.Join(root, "devices", "pci0", "host0")
	device := filepath.Join(host, "target0:0:0", "0:0:0:0")

	require.NoError(t, os.MkdirAll(filepath.Join(host, "scsi_host"), 0o755))
	require.NoError(t, os.MkdirAll(device, 0o755))

	actual, found := sysfs.FindAncestorWith(device, "scsi_host")
	assert.True(t, found)
	assert.Equal(t, host, actual)

	actual, found = sysfs.FindAncestorWith(host, "scsi_host")
	assert.True(t, found)
	assert.Equal(t, host, actual)

	_, found = sysfs.FindAncestorWith(device, "nonexisting_entry")
	assert.False(t, found)
}

func ptr[T any](v T) *T {
	return &v
}
