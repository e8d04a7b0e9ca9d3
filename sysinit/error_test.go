// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aibor/bootinit/sysinit"
	"github.com/stretchr/testify/assert"
)

func TestOptionalMountError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		assert assert.BoolAssertionFunc
	}{
		{
			name:   "nil",
			assert: assert.False,
		},
		{
			name:   "plain",
			err:    sysinit.OptionalMountError{assert.AnError},
			assert: assert.True,
		},
		{
			name:   "wrapped",
			err:    fmt.Errorf("mount: %w", sysinit.OptionalMountError{}),
			assert: assert.True,
		},
		{
			name:   "other",
			err:    assert.AnError,
			assert: assert.False,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assert(t, errors.Is(tt.err, sysinit.OptionalMountError{}))
		})
	}
}

func TestOptionalMountErrorUnwrap(t *testing.T) {
	err := sysinit.OptionalMountError{assert.AnError, sysinit.ErrServiceFailed}

	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, err, sysinit.ErrServiceFailed)
	assert.Contains(t, err.Error(), "optional mount errors")
}

func TestServiceError(t *testing.T) {
	var err error = &sysinit.ServiceError{Instance: 2, State: sysinit.StateFailed}

	assert.ErrorIs(t, err, sysinit.ErrServiceFailed)
	assert.Equal(t, "service failed: instance 2 is failed", err.Error())

	var serviceErr *sysinit.ServiceError
	if assert.ErrorAs(t, fmt.Errorf("mounts: %w", err), &serviceErr) {
		assert.Equal(t, sysinit.StateFailed, serviceErr.State)
	}
}
