// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package mempool

import (
	"golang.org/x/sys/unix"
)

// mmapAllocator maps every buffer as its own anonymous private region, so
// buffers live outside the Go heap and a missing Free keeps the pages mapped
// for the life of the process.
type mmapAllocator struct {
	*debugger
	pageSize int
}

// NewMmap returns an Allocator backed by anonymous mmap regions.
func NewMmap() Allocator {
	return &mmapAllocator{
		debugger: &debugger{},
		pageSize: unix.Getpagesize(),
	}
}

// Malloc .
func (a *mmapAllocator) Malloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	length := (size + a.pageSize - 1) / a.pageSize * a.pageSize
	b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	ret := b[:size]
	a.incrMalloc(ret)
	return ret
}

// Realloc .
func (a *mmapAllocator) Realloc(buf []byte, size int) []byte {
	return reallocByCopy(a, buf, size)
}

// Append .
func (a *mmapAllocator) Append(buf []byte, more ...byte) []byte {
	return appendBytes(a, buf, more)
}

// AppendString .
func (a *mmapAllocator) AppendString(buf []byte, more string) []byte {
	return appendBytes(a, buf, []byte(more))
}

// Free unmaps the region. buf must keep the capacity Malloc gave it.
func (a *mmapAllocator) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	a.incrFree(buf)
	_ = unix.Munmap(buf[:cap(buf)])
}
