// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config reads the YAML configuration file of bootinit.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/aibor/bootinit/bootloader"
	"github.com/aibor/bootinit/internal/logging"
	"github.com/aibor/bootinit/sysinit"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the location of the configuration file.
const DefaultPath = "/etc/bootinit.yaml"

var (
	// ErrInvalidMountFlag is returned for unknown mount flag names.
	ErrInvalidMountFlag = errors.New("invalid mount flag")
	// ErrMissingFSType is returned for mounts without file system type.
	ErrMissingFSType = errors.New("missing file system type")
)

var mountFlags = map[string]sysinit.MountFlags{
	"ro":     sysinit.MountFlagReadOnly,
	"nosuid": sysinit.MountFlagNoSUID,
	"nodev":  sysinit.MountFlagNoDev,
	"noexec": sysinit.MountFlagNoExec,
}

// Config is the content of the configuration file.
type Config struct {
	Hostname   string            `yaml:"hostname"`
	Log        Log               `yaml:"log"`
	Env        map[string]string `yaml:"env"`
	Mounts     map[string]Mount  `yaml:"mounts"`
	Symlinks   map[string]string `yaml:"symlinks"`
	Modules    []string          `yaml:"modules"`
	Consoles   []Console         `yaml:"consoles"`
	Bootloader Bootloader        `yaml:"bootloader"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn and error.
	Level string `yaml:"level"`
	// File is an additional log file. It is opened once all mounts are done.
	// Logging to a file is disabled if empty.
	File string `yaml:"file"`
}

// Mount is an additional mount point.
type Mount struct {
	FSType  string   `yaml:"fstype"`
	Source  string   `yaml:"source"`
	Flags   []string `yaml:"flags"`
	Data    string   `yaml:"data"`
	MayFail bool     `yaml:"mayFail"`
}

// Console configures a getty. An empty name selects the first connected
// console.
type Console struct {
	Name    string `yaml:"name"`
	Baud    int    `yaml:"baud"`
	Respawn bool   `yaml:"respawn"`
	Getty   string `yaml:"getty"`
}

// Bootloader configures boot source discovery.
type Bootloader struct {
	SysDir       string                  `yaml:"sysDir"`
	DevDir       string                  `yaml:"devDir"`
	MountDir     string                  `yaml:"mountDir"`
	MountsFile   string                  `yaml:"mountsFile"`
	MountCommand string                  `yaml:"mountCommand"`
	Loader       string                  `yaml:"loader"`
	Priority     []bootloader.DeviceType `yaml:"priority"`
}

// Default returns the configuration used if no file exists. Fields missing
// in a file keep these values.
func Default() Config {
	defaults := bootloader.DefaultConfig()

	return Config{
		Hostname: "bootinit",
		Log: Log{
			Level: logging.LevelInfo,
			File:  "/var/volatile/log/bootinit.log",
		},
		Env: map[string]string{
			"PATH": "/sbin:/bin:/usr/sbin:/usr/bin",
		},
		Consoles: []Console{
			{Respawn: true},
		},
		Bootloader: Bootloader{
			SysDir:       defaults.SysDir,
			DevDir:       defaults.DevDir,
			MountDir:     defaults.MountDir,
			MountsFile:   defaults.MountsFile,
			MountCommand: defaults.MountCommand,
			Loader:       defaults.Loader,
			Priority:     bootloader.DefaultPriority(),
		},
	}
}

// Load reads the configuration file at the given path. If the file does not
// exist, the [Default] configuration is returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse parses the given YAML document. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	_, err := c.MountPoints()

	return err
}

// MountPoints returns the boot mount points extended by the configured
// mounts. Configured mounts replace boot mount points with the same path.
func (c Config) MountPoints() (sysinit.MountPoints, error) {
	mountPoints := sysinit.BootMountPoints()

	for path, mount := range c.Mounts {
		opts, err := mount.options()
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", path, err)
		}

		mountPoints[path] = opts
	}

	return mountPoints, nil
}

func (m Mount) options() (sysinit.MountOptions, error) {
	if m.FSType == "" {
		return sysinit.MountOptions{}, ErrMissingFSType
	}

	var flags sysinit.MountFlags

	for _, name := range m.Flags {
		flag, exists := mountFlags[name]
		if !exists {
			return sysinit.MountOptions{}, fmt.Errorf("%w: %s", ErrInvalidMountFlag, name)
		}

		flags |= flag
	}

	return sysinit.MountOptions{
		FSType:  sysinit.FSType(m.FSType),
		Source:  m.Source,
		Flags:   flags,
		Data:    m.Data,
		MayFail: m.MayFail,
	}, nil
}

// DevSymlinks returns the well-known /dev symbolic links extended by the
// configured ones.
func (c Config) DevSymlinks() sysinit.Symlinks {
	symlinks := sysinit.DevSymlinks()
	maps.Copy(symlinks, c.Symlinks)

	return symlinks
}

// BootloaderConfig returns the [bootloader.Config].
func (c Config) BootloaderConfig() bootloader.Config {
	return bootloader.Config{
		SysDir:       c.Bootloader.SysDir,
		DevDir:       c.Bootloader.DevDir,
		MountDir:     c.Bootloader.MountDir,
		MountsFile:   c.Bootloader.MountsFile,
		MountCommand: c.Bootloader.MountCommand,
		Loader:       c.Bootloader.Loader,
	}
}
