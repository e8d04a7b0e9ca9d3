// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveNames(t *testing.T, archive io.Reader) []string {
	t.Helper()

	var names []string

	reader := cpio.NewReader(archive)

	for {
		hdr, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return names
		}

		require.NoError(t, err)

		names = append(names, hdr.Name)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	initFile := filepath.Join(dir, "bootinit")
	configFile := filepath.Join(dir, "bootinit.yaml")
	busybox := filepath.Join(dir, "busybox")

	require.NoError(t, os.WriteFile(initFile, []byte("ELF"), 0o755))
	require.NoError(t, os.WriteFile(configFile, []byte("hostname: rescue\n"), 0o644))
	require.NoError(t, os.WriteFile(busybox, []byte("ELF"), 0o755))

	t.Run("stdout", func(t *testing.T) {
		var stdout bytes.Buffer

		err := run([]string{
			"mkinitramfs",
			"--init", initFile,
			"--config", configFile,
			"--file", "bin/busybox=" + busybox,
			"--link", "sbin/mount=/bin/busybox",
			"--dir", "mnt",
		}, &stdout, io.Discard)
		require.NoError(t, err)

		names := archiveNames(t, &stdout)
		assert.Contains(t, names, "init")
		assert.Contains(t, names, "etc/bootinit.yaml")
		assert.Contains(t, names, "bin/busybox")
		assert.Contains(t, names, "sbin/mount")
		assert.Contains(t, names, "mnt")
		assert.Contains(t, names, "var/volatile")
	})

	t.Run("output file", func(t *testing.T) {
		output := filepath.Join(dir, "initramfs.cpio")

		err := run([]string{"mkinitramfs", "--init", initFile, "-o", output}, io.Discard, io.Discard)
		require.NoError(t, err)

		file, err := os.Open(output)
		require.NoError(t, err)

		defer file.Close()

		assert.Contains(t, archiveNames(t, file), "init")
	})

	t.Run("missing init", func(t *testing.T) {
		err := run([]string{"mkinitramfs"}, io.Discard, io.Discard)
		require.ErrorIs(t, err, errMissingInit)
	})

	t.Run("invalid config", func(t *testing.T) {
		invalid := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(invalid, []byte("log:\n  level: loud\n"), 0o644))

		err := run([]string{"mkinitramfs", "--init", initFile, "--config", invalid}, io.Discard, io.Discard)
		require.Error(t, err)
	})
}
