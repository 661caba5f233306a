// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import (
	"os"
	"runtime/debug"

	"github.com/lesismal/memcheck/logging"
)

const (
	// DefaultName .
	DefaultName = "memcheck"

	// DefaultInitialCapacity .
	DefaultInitialCapacity = 1024
)

// Config Of Registry.
type Config struct {
	// Name prefixes the registry's log lines, it's set to "memcheck" by default.
	Name string

	// Guarded serialises every registry call behind one mutex. Leave it
	// false only when a single goroutine allocates.
	Guarded bool

	// InitialCapacity is the slot count of the address table created by
	// Init, it's set to 1024 by default.
	InitialCapacity int

	// Logger receives leak and diagnostic lines, logging.DefaultLogger by default.
	Logger logging.Logger

	// OnFatal is called by Allocator with every fatal error. By default it
	// logs the error with the current stack and exits the process with -1.
	OnFatal func(err error)

	// OnEvent observes every successful track, release and relocation.
	// It runs after the registry lock is released.
	OnEvent func(ev Event)
}

func exitOnFatal(logger logging.Logger) func(err error) {
	return func(err error) {
		logger.Error("%v\n%s", err, debug.Stack())
		os.Exit(-1)
	}
}
