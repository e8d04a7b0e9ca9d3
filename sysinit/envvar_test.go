// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit_test

import (
	"os"
	"testing"

	"github.com/aibor/bootinit/sysinit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetEnv(t *testing.T) {
	t.Setenv("BOOTINIT_TEST_PATH", "")
	t.Setenv("BOOTINIT_TEST_TERM", "")

	err := sysinit.SetEnv(sysinit.EnvVars{
		"BOOTINIT_TEST_PATH": "/sbin:/bin",
		"BOOTINIT_TEST_TERM": "vt100",
	})
	require.NoError(t, err)

	assert.Equal(t, "/sbin:/bin", os.Getenv("BOOTINIT_TEST_PATH"))
	assert.Equal(t, "vt100", os.Getenv("BOOTINIT_TEST_TERM"))
}

func TestSetEnvInvalid(t *testing.T) {
	err := sysinit.SetEnv(sysinit.EnvVars{"": "value"})
	require.Error(t, err)
}
