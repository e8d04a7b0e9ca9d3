// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"

	"github.com/aibor/bootinit/internal/config"
	"github.com/spf13/pflag"
)

type flags struct {
	configPath string
	logLevel   string
	hostname   string
	exitOnIdle bool
}

func parseArgs(name string, args []string, output io.Writer) (flags, error) {
	var f flags

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage: %s [flags]\n\n", name)
		fmt.Fprintln(output, "Process 1 of the boot environment. Discovers bootable EFI images")
		fmt.Fprintln(output, "on block devices.")
		fmt.Fprintln(output)
		flagSet.PrintDefaults()
	}

	flagSet.StringVarP(&f.configPath, "config", "c", config.DefaultPath,
		"configuration file, defaults are used if it does not exist")
	flagSet.StringVar(&f.logLevel, "log-level", "",
		"log level (debug, info, warn, error), overrides the configuration")
	flagSet.StringVar(&f.hostname, "hostname", "",
		"host name, overrides the configuration")
	flagSet.BoolVar(&f.exitOnIdle, "exit-on-idle", false,
		"power off once discovery is done instead of supervising consoles")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, err //nolint:wrapcheck
	}

	if flagSet.NArg() > 0 {
		return flags{}, fmt.Errorf("%w: %v", errUnexpectedArgs, flagSet.Args())
	}

	return f, nil
}

// apply overrides the configuration with the flags that were set.
func (f flags) apply(cfg *config.Config) {
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	if f.hostname != "" {
		cfg.Hostname = f.hostname
	}
}
