// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build cgo

package mempool

/*
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"
)

// cAllocator hands out C heap memory. The Go collector never sees these
// buffers, so a missing Free is a real leak.
type cAllocator struct {
	*debugger
}

// NewC returns an Allocator backed by the C heap.
func NewC() Allocator {
	return &cAllocator{
		debugger: &debugger{},
	}
}

// Malloc .
func (a *cAllocator) Malloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	p := C.calloc(1, C.size_t(size))
	if p == nil {
		return nil
	}
	ret := unsafe.Slice((*byte)(p), size)
	a.incrMalloc(ret)
	return ret
}

// Realloc .
func (a *cAllocator) Realloc(buf []byte, size int) []byte {
	if cap(buf) == 0 {
		return a.Malloc(size)
	}
	if size <= cap(buf) {
		return buf[:size]
	}
	p := C.realloc(unsafe.Pointer(unsafe.SliceData(buf)), C.size_t(size))
	if p == nil {
		return nil
	}
	a.incrFree(buf)
	ret := unsafe.Slice((*byte)(p), size)
	a.incrMalloc(ret)
	return ret
}

// Append .
func (a *cAllocator) Append(buf []byte, more ...byte) []byte {
	return appendBytes(a, buf, more)
}

// AppendString .
func (a *cAllocator) AppendString(buf []byte, more string) []byte {
	return appendBytes(a, buf, []byte(more))
}

// Free .
func (a *cAllocator) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	a.incrFree(buf)
	C.free(unsafe.Pointer(unsafe.SliceData(buf)))
}
