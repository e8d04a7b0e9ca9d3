// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sysfs provides read-only helpers for inspecting sysfs attribute
// files and symbolic links.
package sysfs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned if an attribute file has no content.
var ErrEmpty = errors.New("empty attribute")

// ReadLine returns the first line of the file at the given path without
// surrounding white space.
func ReadLine(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}

		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	return strings.TrimSpace(scanner.Text()), nil
}

// ReadLinkName returns the last path element of the target of the symbolic
// link at the given path. For "subsystem" links this is the subsystem name.
func ReadLinkName(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("readlink: %w", err)
	}

	return filepath.Base(target), nil
}

// Exists returns true if something exists at the given path. Symbolic links
// are followed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasEntry returns true if the directory at the given path contains an entry
// with the given name.
func HasEntry(dir, name string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if entry.Name() == name {
			return true
		}
	}

	return false
}

// FindAncestorWith walks from the given path up to the file system root and
// returns the first directory that contains an entry with the given name.
//
// The walk is purely lexical. The given path itself is checked first.
func FindAncestorWith(path, name string) (string, bool) {
	dir := filepath.Clean(path)

	for {
		if HasEntry(dir, name) {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}

		dir = parent
	}
}
