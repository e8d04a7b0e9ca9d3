// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/bootinit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input       string
		expected    slog.Level
		expectedErr error
	}{
		{input: "", expected: slog.LevelInfo},
		{input: "info", expected: slog.LevelInfo},
		{input: " DEBUG ", expected: slog.LevelDebug},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "verbose", expectedErr: logging.ErrInvalidLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actual, err := logging.ParseLevel(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write(_ []byte) (int, error) {
	return 0, assert.AnError
}

func TestSink(t *testing.T) {
	var first, second bytes.Buffer

	sink := logging.NewSink(&first, failingWriter{})
	sink.Add(&second)

	n, err := sink.Write([]byte("line\n"))
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 5, n)
	assert.Equal(t, "line\n", first.String())
	assert.Equal(t, "line\n", second.String())
}

func TestSink_AddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "messages")

	sink := logging.NewSink()
	require.NoError(t, sink.AddFile(path))

	logger := logging.New(sink, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("initial mounts complete", slog.String("service", "init"))

	require.NoError(t, sink.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `msg="initial mounts complete" service=init`)
	assert.NotContains(t, string(content), "hidden")
}
