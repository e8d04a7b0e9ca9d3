// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
)

const (
	initPath   = "init"
	configPath = "etc/bootinit.yaml"
	execMode   = 0o755
	configMode = 0o644
)

// Layout describes the content of a boot environment archive.
//
// All paths are relative to the archive root. Sources are looked up in the
// [fs.FS] passed to [Layout.Write].
type Layout struct {
	// Init is the source of the init binary, installed as /init.
	Init string
	// Config is the optional source of the configuration file.
	Config string
	// Files maps additional archive paths to their sources, like the mount
	// helper and the getty.
	Files map[string]string
	// Links maps archive paths of symbolic links to their targets.
	Links map[string]string
	// Dirs are directories to create, like mount points.
	Dirs []string
}

// DefaultDirs returns the directories the init binary expects to exist.
func DefaultDirs() []string {
	return []string{
		"dev",
		"etc",
		"proc",
		"run",
		"sys",
		"tmp",
		"var/run",
		"var/volatile",
	}
}

// Write writes the archive for the layout into w. Parent directories of all
// entries are created as needed. Entries are written in lexical order.
func (l Layout) Write(w io.Writer, fsys fs.FS) error {
	archive := NewArchive(w)

	files := map[string]string{initPath: l.Init}
	if l.Config != "" {
		files[configPath] = l.Config
	}

	for name, source := range l.Files {
		files[clean(name)] = source
	}

	links := map[string]string{}
	for name, target := range l.Links {
		links[clean(name)] = target
	}

	dirs := map[string]struct{}{}
	addParents := func(name string) {
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}

	for _, dir := range l.Dirs {
		dir = clean(dir)
		dirs[dir] = struct{}{}
		addParents(dir)
	}

	for name := range files {
		addParents(name)
	}

	for name := range links {
		addParents(name)
	}

	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		if err := archive.WriteDirectory(dir); err != nil {
			return err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(files)) {
		if err := writeFile(archive, fsys, name, files[name]); err != nil {
			return err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(links)) {
		if err := archive.WriteLink(name, links[name]); err != nil {
			return err
		}
	}

	return archive.Close()
}

func writeFile(archive *Archive, fsys fs.FS, name, source string) error {
	file, err := fsys.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	var mode fs.FileMode = execMode
	if name == configPath {
		mode = configMode
	}

	return archive.WriteRegular(name, file, mode)
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
