// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command mkinitramfs packs the bootinit binary, its configuration and
// helper programs into an initramfs archive.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aibor/bootinit/internal/config"
	"github.com/aibor/bootinit/internal/initramfs"
	"github.com/spf13/pflag"
)

var errMissingInit = errors.New("missing init binary")

type flags struct {
	init   string
	config string
	output string
	files  map[string]string
	links  map[string]string
	dirs   []string
}

func parseArgs(name string, args []string, output io.Writer) (flags, error) {
	var f flags

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.StringVar(&f.init, "init", "", "bootinit binary installed as /init (required)")
	flagSet.StringVar(&f.config, "config", "", "configuration file installed as "+config.DefaultPath)
	flagSet.StringVarP(&f.output, "output", "o", "-", "output file, - for stdout")
	flagSet.StringToStringVar(&f.files, "file", nil, "additional file as archive-path=host-path")
	flagSet.StringToStringVar(&f.links, "link", nil, "symbolic link as archive-path=target")
	flagSet.StringSliceVar(&f.dirs, "dir", nil, "additional directory")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, err //nolint:wrapcheck
	}

	if f.init == "" {
		return flags{}, errMissingInit
	}

	return f, nil
}

// layout returns the [initramfs.Layout] with all sources as paths relative to
// the file system root.
func (f flags) layout() (initramfs.Layout, error) {
	var err error

	layout := initramfs.Layout{
		Files: map[string]string{},
		Links: f.links,
		Dirs:  append(initramfs.DefaultDirs(), f.dirs...),
	}

	layout.Init, err = rootRelative(f.init)
	if err != nil {
		return initramfs.Layout{}, err
	}

	if f.config != "" {
		layout.Config, err = rootRelative(f.config)
		if err != nil {
			return initramfs.Layout{}, err
		}
	}

	for name, source := range f.files {
		layout.Files[name], err = rootRelative(source)
		if err != nil {
			return initramfs.Layout{}, err
		}
	}

	return layout, nil
}

func rootRelative(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path for %s: %w", path, err)
	}

	return strings.TrimPrefix(abs, string(filepath.Separator)), nil
}

func run(args []string, stdout, stderr io.Writer) error {
	f, err := parseArgs(filepath.Base(args[0]), args[1:], stderr)
	if err != nil {
		return err
	}

	layout, err := f.layout()
	if err != nil {
		return err
	}

	if cfgPath := f.config; cfgPath != "" {
		// Catch errors on the host instead of in the boot environment.
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		if _, err := config.Parse(data); err != nil {
			return err //nolint:wrapcheck
		}
	}

	out := stdout

	if f.output != "-" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()

		out = file
	}

	if err := layout.Write(out, os.DirFS("/")); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	return nil
}

func main() {
	err := run(os.Args, os.Stdout, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
