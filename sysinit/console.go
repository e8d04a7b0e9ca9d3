// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

const (
	serialConsoleInfoFile = "/proc/tty/driver/serial"

	// DefaultGetty is the getty program spawned for consoles.
	DefaultGetty = "/sbin/getty"
	// DefaultBaudRate is the baud rate used if none is configured.
	DefaultBaudRate = 115200

	// Gettys terminating faster than this are considered failing.
	minGettyLifetime = time.Second
	maxQuickRespawns = 5
)

// ErrNoConsole is returned if no connected console could be found.
var ErrNoConsole = errors.New("no connected console")

type console struct {
	path string
	port int
}

// connectedConsoles returns a slice of consoles that are detected as
// connected on the host.
//
// If virto consoles are present (/dev/hvc*) then only those are used. Otherwise
// serial consoles (/dev/ttyS*) are used.
func connectedConsoles() ([]console, error) {
	consoles := virtConsolesConnected()
	if len(consoles) > 0 {
		return consoles, nil
	}

	consoles, err := serialConsolesConnected()
	if err != nil {
		return nil, fmt.Errorf("serial: %w", err)
	}

	return consoles, nil
}

// virtConsolesConnected returns a slice of virtio consoles (/dev/hvc*) that are
// connected on the host.
func virtConsolesConnected() []console {
	consoles := []console{}

	//nolint:lll
	// https://github.com/torvalds/linux/blob/dd9c17322a6cc56d57b5d2b0b84393ab76a55c80/drivers/tty/hvc/hvc_console.h#L33
	for port := range 8 {
		path := consolePath("hvc", port)

		hvc, err := os.Open(path)
		if err != nil {
			// If the file is not present and there are no consoles yet,
			// there are no virtio consoles present at all.
			if errors.Is(err, os.ErrNotExist) && len(consoles) == 0 {
				return nil
			}

			// virtio consoles that are not connected on the host return ENODEV.
			continue
		}

		_ = hvc.Close()

		consoles = append(consoles, console{
			path: path,
			port: port,
		})
	}

	return consoles
}

// serialConsolesConnected returns a slice of serial consoles (/dev/ttyS*) that
// are connected using the default serial driver info file.
func serialConsolesConnected() ([]console, error) {
	serialInfo, err := os.ReadFile(serialConsoleInfoFile)
	if err != nil {
		return nil, fmt.Errorf("read info: %w", err)
	}

	return serialConsolesConnectedFromBytes(serialInfo)
}

// serialConsolesConnectedFromBytes returns a slice of serial consoles
// (/dev/ttyS*) that are connected from the given serial driver info.
func serialConsolesConnectedFromBytes(serialInfo []byte) ([]console, error) {
	consoles := []console{}

	for line := range bytes.Lines(serialInfo) {
		if !bytes.Contains(line, []byte("uart")) ||
			bytes.Contains(line, []byte("uart:unknown")) {
			continue
		}

		// The serial driver info lists port information. File layout:
		//	serinfo:1.0 driver revision:
		// 	0: uart:16550A port:000003F8 irq:4 tx:126 rx:0 RTS|CTS|DTR|DSR|CD
		// 	1: uart:unknown port:000002F8 irq:3
		// 	...
		portField, _, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}

		port, err := strconv.Atoi(string(bytes.TrimSpace(portField)))
		if err != nil {
			continue
		}

		consoles = append(consoles, console{
			path: consolePath("ttyS", port),
			port: port,
		})
	}

	return consoles, nil
}

func consolePath(typ string, id int) string {
	return "/dev/" + typ + strconv.Itoa(id)
}

// ConsoleService is a [Service] that runs a getty on a terminal and
// optionally respawns it once it terminates.
type ConsoleService struct {
	// Name is the terminal device name, like "ttyS0". If empty, the first
	// connected virtio or serial console is used.
	Name string
	// Baud is the baud rate passed to the getty.
	Baud int
	// Respawn determines if the getty is started again after it terminated.
	Respawn bool
	// Getty is the getty program. Defaults to [DefaultGetty].
	Getty string

	detect      func() ([]console, error)
	child       *Child
	startedAt   time.Time
	quickExits  int
	stopped     bool
	failed      bool
	everStarted bool
}

// NewConsoleService creates a new [ConsoleService].
func NewConsoleService(name string, baud int, respawn bool) *ConsoleService {
	return &ConsoleService{
		Name:    name,
		Baud:    baud,
		Respawn: respawn,
	}
}

// Setup implements [Service]. It resolves the terminal if none is set.
func (c *ConsoleService) Setup(rt *Runtime) {
	if c.Getty == "" {
		c.Getty = DefaultGetty
	}

	if c.Baud <= 0 {
		c.Baud = DefaultBaudRate
	}

	if c.detect == nil {
		c.detect = connectedConsoles
	}

	if c.Name != "" {
		return
	}

	consoles, err := c.detect()
	if err == nil && len(consoles) == 0 {
		err = ErrNoConsole
	}

	if err != nil {
		rt.Logger().Error("Console detection failed",
			slog.String("service", "console"),
			slog.Any("error", err),
		)

		c.failed = true

		return
	}

	c.Name = filepath.Base(consoles[0].path)
}

// Start implements [Service].
func (c *ConsoleService) Start(rt *Runtime) {
	if c.failed || c.stopped || c.child != nil {
		return
	}

	c.spawn(rt)
}

func (c *ConsoleService) logger(rt *Runtime) *slog.Logger {
	return rt.Logger().With(
		slog.String("service", "console"),
		slog.String("tty", c.Name),
	)
}

func (c *ConsoleService) spawn(rt *Runtime) {
	cmd := exec.Command(c.Getty, "-L", strconv.Itoa(c.Baud), c.Name, "vt100")

	child, err := rt.Spawn(cmd)
	if err != nil {
		c.logger(rt).Error("Spawning getty failed", slog.Any("error", err))
		c.failed = true

		return
	}

	c.logger(rt).Debug("Getty started", slog.Int("pid", child.Pid))

	c.child = child
	c.startedAt = time.Now()
	c.everStarted = true
}

// State implements [Service].
func (c *ConsoleService) State() State {
	switch {
	case c.failed:
		return StateFailed
	case c.child != nil:
		return StateRunning
	case c.stopped || c.everStarted:
		return StateStopped
	default:
		return StateInactive
	}
}

// Stop implements [Service]. It terminates the running getty.
func (c *ConsoleService) Stop(_ *Runtime) {
	c.stopped = true

	if c.child != nil {
		_ = c.child.Signal(unix.SIGTERM)
	}
}

// Event implements [Service]. It consumes the exit of its getty.
func (c *ConsoleService) Event(rt *Runtime, event Event) bool {
	exited, ok := event.(ProcessExited)
	if !ok || !c.child.Matches(exited.Pid) {
		return false
	}

	c.child.Release()
	c.child = nil

	logger := c.logger(rt)
	logger.Debug("Getty terminated", slog.String("status", exited.Status.String()))

	if !c.Respawn || c.stopped {
		return true
	}

	if time.Since(c.startedAt) < minGettyLifetime {
		c.quickExits++
	} else {
		c.quickExits = 0
	}

	if c.quickExits >= maxQuickRespawns {
		logger.Error("Getty keeps terminating, giving up",
			slog.String("status", exited.Status.String()))

		c.failed = true

		return true
	}

	c.spawn(rt)

	return true
}
