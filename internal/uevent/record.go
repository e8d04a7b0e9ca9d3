// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package uevent

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Well-known record keys.
const (
	KeyAction    = "ACTION"
	KeyDevPath   = "DEVPATH"
	KeySubsystem = "SUBSYSTEM"
	KeyDevName   = "DEVNAME"
	KeyDevType   = "DEVTYPE"
	KeyMajor     = "MAJOR"
	KeyMinor     = "MINOR"
	KeySeqNum    = "SEQNUM"
)

// libudevPrefix marks messages re-broadcast by udevd. They use a binary
// header and are not handled.
const libudevPrefix = "libudev"

var (
	// ErrEmpty is returned for datagrams without any content.
	ErrEmpty = errors.New("empty uevent")
	// ErrUnsupported is returned for messages that are not kernel uevents.
	ErrUnsupported = errors.New("unsupported uevent format")
)

// Action is the kind of change a [Record] describes.
type Action int

// Supported actions. Actions the kernel emits besides add, remove and change
// (move, bind, unbind, online, offline) are reported as [ActionOther].
const (
	ActionOther Action = iota
	ActionAdd
	ActionRemove
	ActionChange
)

// ParseAction returns the [Action] for the given ACTION value.
func ParseAction(s string) Action {
	switch s {
	case "add":
		return ActionAdd
	case "remove":
		return ActionRemove
	case "change":
		return ActionChange
	default:
		return ActionOther
	}
}

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionChange:
		return "change"
	default:
		return "other"
	}
}

// Record is a single kernel hotplug notification. Keys are unique.
type Record map[string]string

// Get returns the value for the given key and whether it is present.
func (r Record) Get(key string) (string, bool) {
	value, exists := r[key]
	return value, exists
}

// Action returns the action of the record.
func (r Record) Action() Action {
	return ParseAction(r[KeyAction])
}

// Subsystem returns the SUBSYSTEM value of the record.
func (r Record) Subsystem() string {
	return r[KeySubsystem]
}

// DevName returns the DEVNAME value of the record. Kernel uevents carry the
// name relative to /dev.
func (r Record) DevName() string {
	return r[KeyDevName]
}

func (r Record) String() string {
	var builder strings.Builder

	for i, key := range slices.Sorted(maps.Keys(r)) {
		if i > 0 {
			builder.WriteByte(' ')
		}

		fmt.Fprintf(&builder, "%s=%s", key, r[key])
	}

	return builder.String()
}

// Parse parses a kernel uevent datagram.
//
// The datagram consists of NUL separated fields. The first field is a header
// of the form "action@devpath" followed by KEY=VALUE fields. Later duplicate
// keys replace earlier ones.
func Parse(data []byte) (Record, error) {
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	fields := bytes.Split(data, []byte{0})

	header := string(fields[0])
	if strings.HasPrefix(header, libudevPrefix) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, libudevPrefix)
	}

	record := Record{}

	action, devPath, isHeader := strings.Cut(header, "@")
	if isHeader && !strings.Contains(action, "=") {
		record[KeyAction] = action
		record[KeyDevPath] = devPath
		fields = fields[1:]
	}

	for _, field := range fields {
		key, value, found := strings.Cut(string(field), "=")
		if !found || key == "" {
			continue
		}

		record[key] = value
	}

	if len(record) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrUnsupported)
	}

	return record, nil
}
