// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initramfs writes initramfs archives for the boot environment.
package initramfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/cavaliergopher/cpio"
)

const numLinks = 2

// ErrNotRegularFile is returned if a source file is not a regular file.
var ErrNotRegularFile = errors.New("not a regular file")

// Archive writes entries into a newc cpio stream as expected by the kernel.
type Archive struct {
	writer *cpio.Writer
}

// NewArchive creates a new [Archive] writing into the given writer.
func NewArchive(w io.Writer) *Archive {
	return &Archive{writer: cpio.NewWriter(w)}
}

// Close writes the archive trailer. It does not close the underlying writer.
func (a *Archive) Close() error {
	if err := a.writer.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

func (a *Archive) writeHeader(hdr *cpio.Header) error {
	if err := a.writer.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}

// WriteDirectory adds a directory with the given path.
func (a *Archive) WriteDirectory(path string) error {
	return a.writeHeader(&cpio.Header{
		Name:  path,
		Mode:  cpio.TypeDir | 0o755,
		Links: numLinks,
	})
}

// WriteLink adds a symbolic link with the given path pointing to target.
func (a *Archive) WriteLink(path, target string) error {
	err := a.writeHeader(&cpio.Header{
		Name: path,
		Mode: cpio.TypeSymlink | cpio.ModePerm,
		Size: int64(len(target)),
	})
	if err != nil {
		return err
	}

	// The body of a link is its target.
	if _, err := a.writer.Write([]byte(target)); err != nil {
		return fmt.Errorf("write link target for %s: %w", path, err)
	}

	return nil
}

// WriteRegular adds a regular file with the given path and the content of
// source. If mode is 0, the permissions of the source are used.
func (a *Archive) WriteRegular(path string, source fs.File, mode fs.FileMode) error {
	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source for %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, info.Name())
	}

	hdr, err := cpio.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("create header for %s: %w", path, err)
	}

	hdr.Name = path
	if mode != 0 {
		hdr.Mode = cpio.TypeReg | cpio.FileMode(mode.Perm())
	}

	if err := a.writeHeader(hdr); err != nil {
		return err
	}

	if _, err := io.Copy(a.writer, source); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}
