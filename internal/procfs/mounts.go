// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package procfs provides lookups in the kernel's mount table.
package procfs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultMountsFile is the mount table of the current mount namespace.
const DefaultMountsFile = "/proc/self/mounts"

// Mount is a single entry of the mount table.
type Mount struct {
	Source  string
	Target  string
	FSType  string
	Options string
}

// ReadMounts reads all entries of the mount table file at the given path.
func ReadMounts(path string) ([]Mount, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mount table: %w", err)
	}
	defer file.Close()

	var mounts []Mount

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// Format as in fstab(5):
		//	/dev/sda1 /boot vfat rw,relatime,fmask=0022 0 0
		columns := strings.Fields(scanner.Text())
		if len(columns) < 4 {
			continue
		}

		mounts = append(mounts, Mount{
			Source:  unescape(columns[0]),
			Target:  unescape(columns[1]),
			FSType:  columns[2],
			Options: columns[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}

	return mounts, nil
}

// DeviceMounted returns true if the given device is the source of any entry
// of the mount table at the given path.
//
// Sources are compared by path first and by device number second, so aliases
// like /dev/root or /dev/disk/by-uuid/* links are detected as well.
func DeviceMounted(mountsFile, device string) (bool, error) {
	mounts, err := ReadMounts(mountsFile)
	if err != nil {
		return false, err
	}

	rdev, hasRdev := deviceNumber(device)

	for _, mount := range mounts {
		if mount.Source == device {
			return true, nil
		}

		if !hasRdev || !strings.HasPrefix(mount.Source, "/") {
			continue
		}

		if other, ok := deviceNumber(mount.Source); ok && other == rdev {
			return true, nil
		}
	}

	return false, nil
}

func deviceNumber(path string) (uint64, bool) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, false
	}

	if stat.Mode&unix.S_IFMT != unix.S_IFBLK {
		return 0, false
	}

	return uint64(stat.Rdev), true //nolint:unconvert // uint32 on some archs
}

// unescape reverts the octal escaping of white space the kernel applies to
// mount table fields.
func unescape(field string) string {
	if !strings.Contains(field, `\`) {
		return field
	}

	return strings.NewReplacer(
		`\040`, " ",
		`\011`, "\t",
		`\012`, "\n",
		`\134`, `\`,
	).Replace(field)
}
