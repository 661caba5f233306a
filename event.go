// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import "fmt"

// Op is the kind of registry mutation an Event describes.
type Op uint8

const (
	// OpAlloc .
	OpAlloc Op = iota + 1
	// OpFree .
	OpFree
	// OpRealloc .
	OpRealloc
)

func (op Op) String() string {
	switch op {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	case OpRealloc:
		return "realloc"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// MarshalText .
func (op Op) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText .
func (op *Op) UnmarshalText(b []byte) error {
	switch string(b) {
	case "alloc":
		*op = OpAlloc
	case "free":
		*op = OpFree
	case "realloc":
		*op = OpRealloc
	default:
		return fmt.Errorf("memcheck: unknown op %q", b)
	}
	return nil
}

// Event describes one successful registry mutation.
type Event struct {
	Op         Op      `json:"op"`
	Address    uintptr `json:"address"`
	OldAddress uintptr `json:"old_address,omitempty"`
	Size       int     `json:"size"`
	Site       Site    `json:"site"`
}
