// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	moduleTypeUnknown moduleType = ""
	moduleTypePlain   moduleType = ".ko"
	moduleTypeGZIP    moduleType = ".ko.gz"
	moduleTypeXZ      moduleType = ".ko.xz"
	moduleTypeZSTD    moduleType = ".ko.zst"
)

type moduleType string

func parseModuleType(fileName string) moduleType {
	types := []moduleType{
		moduleTypePlain,
		moduleTypeGZIP,
		moduleTypeXZ,
		moduleTypeZSTD,
	}

	for _, typ := range types {
		if strings.HasSuffix(fileName, string(typ)) {
			return typ
		}
	}

	return moduleTypeUnknown
}

type loadModuleFunc func(path, params string) error

// LoadModules loads all files found for the given glob pattern as kernel
// modules. The modules are loaded in parallel, so they must not depend on
// each other.
//
// See [filepath.Glob] for the pattern format.
func LoadModules(pattern string) error {
	return loadModulesWith(LoadModule, pattern)
}

func loadModulesWith(load loadModuleFunc, pattern string) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("list module files: %w", err)
	}

	group := errgroup.Group{}
	group.SetLimit(runtime.GOMAXPROCS(0))

	for _, file := range files {
		if info, err := os.Stat(file); err == nil && info.IsDir() {
			continue
		}

		group.Go(func() error {
			if err := load(file, ""); err != nil {
				return fmt.Errorf("load module %s: %w", file, err)
			}

			return nil
		})
	}

	return group.Wait() //nolint:wrapcheck
}

// LoadModule loads the kernel module located at the given path with the given
// parameters.
//
// The file may be compressed. The caller is responsible to ensure the module
// belongs to the running kernel and all dependencies are satisfied.
func LoadModule(path string, params string) error {
	module, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer module.Close()

	return loadModule(module, params)
}

func loadModule(module *os.File, params string) error {
	typ := parseModuleType(module.Name())

	// Try finit_module(2) first, as it is the more comfortable syscall. If it
	// is not available try again with init_module(2).
	err := finitModule(int(module.Fd()), params, finitFlagsFor(typ)) //nolint:gosec
	if !errors.Is(err, errors.ErrUnsupported) {
		return err
	}

	moduleReader, err := newModuleReader(module, typ)
	if err != nil {
		return fmt.Errorf("module reader: %w", err)
	}

	var data bytes.Buffer

	_, err = data.ReadFrom(moduleReader)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	return initModule(data.Bytes(), params)
}

func newModuleReader(fileReader io.Reader, typ moduleType) (io.Reader, error) {
	switch typ {
	case moduleTypePlain:
		return fileReader, nil
	case moduleTypeGZIP:
		gzipReader, err := gzip.NewReader(fileReader)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}

		return gzipReader, nil
	default:
		return nil, fmt.Errorf("extension %s: %w", typ, errors.ErrUnsupported)
	}
}

func finitFlagsFor(typ moduleType) finitFlags {
	var flags finitFlags

	if isSupportedFinitCompressionType(typ) {
		flags |= finitFlagCompressedFile
	}

	return flags
}

// isSupportedFinitCompressionType checks if the given extension is one of the
// known extensions finit_module(2) supports.
func isSupportedFinitCompressionType(typ moduleType) bool {
	supportedTypes := []moduleType{
		moduleTypeGZIP,
		moduleTypeXZ,
		moduleTypeZSTD,
	}

	return slices.Contains(supportedTypes, typ)
}

// ModuleLoader is a [Service] that loads kernel modules on start.
//
// Each pattern is a stage. Stages are loaded in the given order, so modules
// of later stages may depend on modules of earlier ones. Failing stages are
// logged and do not prevent later stages from being loaded.
type ModuleLoader struct {
	Patterns []string

	load  loadModuleFunc
	state State
}

// NewModuleLoader creates a new [ModuleLoader] for the given glob patterns.
func NewModuleLoader(patterns ...string) *ModuleLoader {
	return &ModuleLoader{
		Patterns: patterns,
		load:     LoadModule,
	}
}

// Setup implements [Service].
func (*ModuleLoader) Setup(_ *Runtime) {}

// Start implements [Service].
func (m *ModuleLoader) Start(rt *Runtime) {
	logger := rt.Logger().With(slog.String("service", "modules"))
	m.state = StateReady

	for _, pattern := range m.Patterns {
		if err := loadModulesWith(m.load, pattern); err != nil {
			logger.Error("Loading modules failed",
				slog.String("pattern", pattern),
				slog.Any("error", err),
			)

			m.state = StateFailed
		}
	}
}

// State implements [Service].
func (m *ModuleLoader) State() State {
	return m.state
}

// Stop implements [Service]. Modules stay loaded.
func (*ModuleLoader) Stop(_ *Runtime) {}

// Event implements [Service].
func (*ModuleLoader) Event(_ *Runtime, _ Event) bool {
	return false
}
