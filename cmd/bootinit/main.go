// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command bootinit is the process 1 of a minimal boot environment. It mounts
// the special file systems, supervises consoles and device nodes and
// discovers bootable EFI images on attached block devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/aibor/bootinit/bootloader"
	"github.com/aibor/bootinit/internal/config"
	"github.com/aibor/bootinit/internal/logging"
	"github.com/aibor/bootinit/sysinit"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var errUnexpectedArgs = errors.New("unexpected arguments")

func main() {
	os.Exit(run())
}

func run() int {
	name := filepath.Base(os.Args[0])

	args, err := parseArgs(name, os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return 2
	}

	sink := logging.NewSink(os.Stdout)
	defer sink.Close()

	cfg, cfgErr := config.Load(args.configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}

	args.apply(&cfg)

	level, levelErr := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(sink, level).With(slog.String("service", "init"))

	// Process 1 must never terminate because of configuration errors, so
	// carry on with defaults.
	for _, err := range []error{cfgErr, levelErr} {
		if err != nil {
			logger.Error("Invalid configuration, using defaults", slog.Any("error", err))
		}
	}

	if !sysinit.IsPidOne() {
		logger.Error("Refusing to run", slog.Any("error", sysinit.ErrNotPidOne))
		return 1
	}

	logger.Info("Started")

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer cancel()

	boot(ctx, logger, sink, cfg, args.exitOnIdle)

	logger.Info("Shutting down")

	if err := sysinit.Poweroff(); err != nil {
		logger.Error("Poweroff failed", slog.Any("error", err))
	}

	return 1
}

// boot runs the services until the context is cancelled, or with exitOnIdle
// until boot source discovery is done.
func boot(
	ctx context.Context,
	logger *slog.Logger,
	sink *logging.Sink,
	cfg config.Config,
	exitOnIdle bool,
) {
	setupSystem(logger, cfg)

	rt := sysinit.NewRuntime(ctx, logger,
		sysinit.WithSource(sysinit.ChildReaper{}),
		sysinit.WithSource(sysinit.UeventListener{}),
	)
	defer rt.Close()

	manager := sysinit.NewManager()
	defer manager.StopAll(rt)

	mountPoints, err := cfg.MountPoints()
	if err != nil {
		logger.Error("Invalid mounts, using boot mounts only", slog.Any("error", err))

		mountPoints = sysinit.BootMountPoints()
	}

	mounts := manager.AddService(rt, sysinit.NewMountSetup(mountPoints, cfg.DevSymlinks()), true)
	if err := rt.PollServiceReady(ctx, manager, mounts); err != nil {
		logger.Error("Initial mounts failed", slog.Any("error", err))
	} else {
		logger.Info("Initial mounts complete")
	}

	if cfg.Log.File != "" {
		if err := sink.AddFile(cfg.Log.File); err != nil {
			logger.Warn("Log file not available", slog.Any("error", err))
		} else {
			logger.Info("Logging to file", slog.String("path", cfg.Log.File))
		}
	}

	if len(cfg.Modules) > 0 {
		manager.AddService(rt, sysinit.NewModuleLoader(cfg.Modules...), true)
	}

	manager.AddService(rt, sysinit.NewDeviceManager(cfg.Bootloader.DevDir), true)

	// Gettys never become idle.
	if !exitOnIdle {
		for _, console := range cfg.Consoles {
			service := sysinit.NewConsoleService(console.Name, console.Baud, console.Respawn)
			service.Getty = console.Getty
			manager.AddService(rt, service, true)
		}
	}

	loader := bootloader.New(cfg.BootloaderConfig())
	manager.AddService(rt, loader, true)

	err = rt.Poll(ctx, manager, exitOnIdle)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event loop failed", slog.Any("error", err))
	}

	entry, found := loader.SelectBootEntry(cfg.Bootloader.Priority)
	if !found {
		logger.Warn("No boot entry found")
		return
	}

	logger.Info("Selected boot entry",
		slog.String("kernel", entry.KernelPath()),
		slog.String("device", entry.Device),
	)
}

// setupSystem applies the process wide settings. Failures are logged only.
func setupSystem(logger *slog.Logger, cfg config.Config) {
	if cfg.Hostname != "" {
		if err := sysinit.SetHostname(cfg.Hostname); err != nil {
			logger.Warn("Setting hostname failed", slog.Any("error", err))
		}
	}

	if err := sysinit.SetEnv(cfg.Env); err != nil {
		logger.Warn("Setting environment failed", slog.Any("error", err))
	}

	if err := sysinit.ConfigureLoopbackInterface(); err != nil {
		logger.Warn("Configuring loopback interface failed", slog.Any("error", err))
	}
}
