// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

const pkg = "github.com/aibor/bootinit"

var env map[string]string

func init() {
	env = map[string]string{
		// The init binary runs without any shared libraries available.
		"CGO_ENABLED": "0",
	}

	gobin, exists := os.LookupEnv("GOBIN")
	if !exists {
		gobin = "./gobin"
	}

	if p, err := filepath.Abs(gobin); err == nil {
		gobin = p
	}

	env["GOBIN"] = gobin
}

func binPath(name string) string {
	return filepath.Join(env["GOBIN"], name)
}

// Build bootinit and mkinitramfs into the gobin directory.
func Build() error {
	for _, name := range []string{"bootinit", "mkinitramfs"} {
		modified, err := target.Dir(binPath(name), "bootloader", "cmd", "internal", "sysinit")
		if err != nil {
			return err
		}

		if !modified {
			continue
		}

		err = sh.RunWith(env, "go", "build", "-o", binPath(name), pkg+"/cmd/"+name)
		if err != nil {
			return err
		}
	}

	return nil
}

// Initramfs packs bootinit and the given config file into initramfs.cpio.
func Initramfs(config string) error {
	mg.Deps(Build)

	args := []string{
		"--init", binPath("bootinit"),
		"--output", "initramfs.cpio",
	}
	if config != "" {
		args = append(args, "--config", config)
	}

	return sh.RunV(binPath("mkinitramfs"), args...)
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// IntegrationTest runs the tests that need root privileges.
func IntegrationTest() error {
	return sh.RunV("go", "test",
		"-v",
		"-exec", "sudo",
		"-tags", "integration_sysinit",
		"./sysinit/...",
	)
}

// Remove volatile files.
func Clean() error {
	if err := sh.Rm("initramfs.cpio"); err != nil {
		return err
	}

	return sh.Rm(env["GOBIN"])
}
