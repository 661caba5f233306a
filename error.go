// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by tracking calls outside Init/Finalize.
	ErrNotInitialized = errors.New("memcheck: registry not initialized")

	// ErrNilAddress is returned when tracking the zero address.
	ErrNilAddress = errors.New("memcheck: nil address")

	// ErrInvalidRelease marks a release of an address that is not tracked.
	ErrInvalidRelease = errors.New("memcheck: attempt to free not-malloced addr")

	// ErrInvalidRelocation marks a resize of an address that is not tracked.
	ErrInvalidRelocation = errors.New("memcheck: attempt to realloc not-malloced addr")

	// ErrOutOfMemory marks an allocation the underlying heap could not satisfy.
	ErrOutOfMemory = errors.New("memcheck: out of memory")
)

// FatalError is an unrecoverable tracking failure. The Registry only returns
// it; the Allocator's fatal handler decides to end the process.
type FatalError struct {
	Err     error
	Site    Site
	Address uintptr
	Size    int
}

func (e *FatalError) Error() string {
	if errors.Is(e.Err, ErrOutOfMemory) {
		return fmt.Sprintf("%v: %d bytes at %s", e.Err, e.Size, e.Site)
	}
	return fmt.Sprintf("%v: %#x at %s", e.Err, e.Address, e.Site)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
