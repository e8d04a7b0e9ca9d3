// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging sets up the structured logger of the init process.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level names.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const logFileMode = 0o644

// ErrInvalidLevel is returned for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel returns the [slog.Level] for the given level name. An empty name
// is [slog.LevelInfo].
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
}

// Sink is an [io.Writer] that writes to a set of writers that can be extended
// at any time. Early in boot only the console is available, files are added
// once their file systems are mounted.
type Sink struct {
	mu      sync.Mutex
	writers []io.Writer
	closers []io.Closer
}

// NewSink creates a new [Sink] writing to the given writers.
func NewSink(writers ...io.Writer) *Sink {
	return &Sink{writers: writers}
}

// Add adds the given writer.
func (s *Sink) Add(writer io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writers = append(s.writers, writer)
}

// AddFile opens the file at the given path for appending and adds it. Missing
// parent directories are created.
func (s *Sink) AddFile(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFileMode)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writers = append(s.writers, file)
	s.closers = append(s.closers, file)

	return nil
}

// Write writes p to all writers. Failing writers do not prevent writes to the
// others. The first error is returned.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error

	for _, writer := range s.writers {
		_, err := writer.Write(p)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}

// Close closes all files added by [Sink.AddFile].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for _, closer := range s.closers {
		errs = append(errs, closer.Close())
	}

	s.closers = nil

	return errors.Join(errs...)
}

// New returns a new text logger writing to the given writer.
func New(writer io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level: level,
		},
	))
}

// Discard returns a logger that drops all records.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
