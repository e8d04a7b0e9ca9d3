// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"slices"

	"golang.org/x/sys/unix"
)

// FSType is a file system type.
type FSType string

// Special file system types.
const (
	FSTypeDebug   FSType = "debugfs"
	FSTypeDevPts  FSType = "devpts"
	FSTypeDevTmp  FSType = "devtmpfs"
	FSTypeProc    FSType = "proc"
	FSTypeSys     FSType = "sysfs"
	FSTypeTmp     FSType = "tmpfs"
	FSTypeTracing FSType = "tracefs"

	defaultDirMode = 0o755
)

// MountFlags are mount flags as defined by mount(2).
type MountFlags uintptr

// Common mount flags.
const (
	MountFlagReadOnly MountFlags = unix.MS_RDONLY
	MountFlagNoSUID   MountFlags = unix.MS_NOSUID
	MountFlagNoDev    MountFlags = unix.MS_NODEV
	MountFlagNoExec   MountFlags = unix.MS_NOEXEC
)

// BootMountPoints returns the special file systems required by the boot
// environment. /proc is required for looking up existing mounts, /sys for
// device discovery and /var/volatile for the log file.
func BootMountPoints() MountPoints {
	return MountPoints{
		"/dev":              {FSType: FSTypeDevTmp, Data: "mode=0755"},
		"/dev/pts":          {FSType: FSTypeDevPts, Data: "mode=0620,ptmxmode=0666,gid=5", MayFail: true},
		"/proc":             {FSType: FSTypeProc},
		"/run":              {FSType: FSTypeTmp, Flags: MountFlagNoDev | MountFlagNoSUID, Data: "mode=0755"},
		"/sys":              {FSType: FSTypeSys},
		"/sys/kernel/debug": {FSType: FSTypeDebug, MayFail: true},
		"/var/volatile":     {FSType: FSTypeTmp},
	}
}

// MountOptions contains parameters for a mount point.
type MountOptions struct {
	// FSType is the files system type. It must be set to an available [FSType].
	FSType FSType

	// Source is the source device to mount. Can be empty for all the special
	// file system types [FSType]s. If empty it is set to the string of the
	// type.
	Source string

	// Flags are optional mount flags as defined by mount(2).
	Flags MountFlags

	// Data are optional additional parameters that depend of the [FSType] used.
	Data string

	// MayFail determines if the mount operation may fail. If set to true, a
	// mount error does not fail a [MountAll] operation.
	MayFail bool
}

// MountPoints is a collection of MountPoints.
type MountPoints map[string]MountOptions

// mountFunc is the signature of the function performing the actual mount.
type mountFunc func(path, source, fsType string, flags MountFlags, data string) error

// Mount mounts the file system with the given [MountOptions] at the given
// path.
//
// If path does not exist, it is created. An error is returned if this or the
// mount syscall fails.
func Mount(path string, opts MountOptions) error {
	return mountWith(mount, path, opts)
}

func mountWith(fn mountFunc, path string, opts MountOptions) error {
	err := os.MkdirAll(path, defaultDirMode)
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	return fn(path, opts.Source, string(opts.FSType), opts.Flags, opts.Data)
}

// MountAll mounts the given set of file systems.
//
// The mounts are executed in lexicographic order of the paths, so parent
// mount points are mounted before their children. If only optional mount
// points failed, it returns an [OptionalMountError] with all errors.
func MountAll(mountPoints MountPoints) error {
	return mountAllWith(mount, mountPoints)
}

func mountAllWith(fn mountFunc, mountPoints MountPoints) error {
	var optionalErrs OptionalMountError

	for path, opts := range sortedMap(mountPoints) {
		if err := mountWith(fn, path, opts); err != nil {
			if !opts.MayFail {
				return err
			}

			optionalErrs = append(optionalErrs, err)
		}
	}

	if optionalErrs != nil {
		return optionalErrs
	}

	return nil
}

// MountSetup is a [Service] that mounts a static set of file systems and
// creates symbolic links once they are mounted.
//
// The work is done synchronously on start. Afterwards the service is either in
// [StateReady] or [StateFailed].
type MountSetup struct {
	MountPoints MountPoints
	Symlinks    Symlinks

	mount mountFunc
	state State
}

// NewMountSetup creates a new [MountSetup] service.
func NewMountSetup(mountPoints MountPoints, symlinks Symlinks) *MountSetup {
	return &MountSetup{
		MountPoints: mountPoints,
		Symlinks:    symlinks,
		mount:       mount,
	}
}

// Setup implements [Service].
func (*MountSetup) Setup(_ *Runtime) {}

// Start implements [Service].
func (s *MountSetup) Start(rt *Runtime) {
	logger := rt.Logger().With(slog.String("service", "mount"))

	err := mountAllWith(s.mount, s.MountPoints)

	var optionalErrs OptionalMountError
	if errors.As(err, &optionalErrs) {
		for _, err := range optionalErrs {
			logger.Info("Optional mount failed", slog.Any("error", err))
		}

		err = nil
	}

	if err == nil {
		err = CreateSymlinks(s.Symlinks)
	}

	if err != nil {
		logger.Error("Mount setup failed", slog.Any("error", err))
		s.state = StateFailed

		return
	}

	logger.Info("Mounts complete", slog.Int("count", len(s.MountPoints)))
	s.state = StateReady
}

// State implements [Service].
func (s *MountSetup) State() State {
	return s.state
}

// Stop implements [Service]. Mounts are left in place.
func (s *MountSetup) Stop(_ *Runtime) {
	if s.state == StateReady {
		s.state = StateStopped
	}
}

// Event implements [Service].
func (*MountSetup) Event(_ *Runtime, _ Event) bool {
	return false
}

// sortedMap returns an iterator that iterates the given map in lexicographic
// order of the keys.
func sortedMap[K cmp.Ordered, V any](m map[K]V) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range slices.Sorted(maps.Keys(m)) {
			if !yield(key, m[key]) {
				return
			}
		}
	}
}
