// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package memcheck tracks manually managed allocations and reports the ones
// that are never released.
//
// A Registry maps every live address to the call site and size that produced
// it. An Allocator wraps a mempool.Allocator, records the caller of every
// Malloc, Calloc, Realloc, Append and Free, and treats a release of an
// address the Registry never saw as fatal:
//
//	reg := memcheck.New(memcheck.Config{Guarded: true})
//	reg.Init()
//	defer reg.Finalize()
//
//	a := memcheck.NewAllocator(mempool.NewC(), reg)
//	buf := a.Malloc(128)
//	...
//	a.Free(buf)
//	a.Check(os.Stdout)
package memcheck

import (
	"fmt"
	"runtime"
)

// Site is the source location of an allocation call.
type Site struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// String formats the site as file:line:function.
func (s Site) String() string {
	return fmt.Sprintf("%s:%d:%s", s.File, s.Line, s.Function)
}

// Caller returns the site skip frames above the function calling Caller.
func Caller(skip int) Site {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{File: "???", Function: "???"}
	}
	fn := "???"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return Site{File: file, Line: line, Function: fn}
}

// Source is the metadata the Registry keeps for one tracked address.
type Source struct {
	Site
	Size int
}

// Record is one outstanding allocation.
type Record struct {
	Address uintptr `json:"address"`
	Size    int     `json:"size"`
	Site    Site    `json:"site"`
}
