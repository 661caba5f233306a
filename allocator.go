// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import (
	"io"
	"unsafe"

	"github.com/lesismal/memcheck/mempool"
)

// Allocator is a mempool.Allocator that mirrors every call into a Registry,
// recording its caller as the allocation site. Invalid frees, invalid
// resizes and heap exhaustion go to the registry's fatal handler.
//
// An address is untracked before the heap may hand it out again: Free
// releases it first, and Realloc and Append detach the old address before
// resizing, restoring it if the heap fails.
//
// Zero-sized requests return nil without touching the heap, and freeing a
// nil or zero-capacity buffer is a no-op.
type Allocator struct {
	heap     mempool.Allocator
	registry *Registry
	skip     int
}

var _ mempool.Allocator = (*Allocator)(nil)

// NewAllocator tracks heap's buffers in reg.
func NewAllocator(heap mempool.Allocator, reg *Registry) *Allocator {
	return &Allocator{
		heap:     heap,
		registry: reg,
	}
}

// Registry returns the registry the allocator reports to.
func (a *Allocator) Registry() *Registry {
	return a.registry
}

// SetCallerSkip adds n frames between the allocator and the recorded site,
// for callers that wrap Allocator in their own helpers.
func (a *Allocator) SetCallerSkip(n int) {
	a.skip = n
}

func (a *Allocator) site() Site {
	return Caller(a.skip + 2)
}

func (a *Allocator) fatal(err error) {
	if err != nil {
		a.registry.onFatal(err)
	}
}

func bufferAddress(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

// Malloc .
func (a *Allocator) Malloc(size int) []byte {
	return a.malloc(size, a.site())
}

func (a *Allocator) malloc(size int, site Site) []byte {
	if size <= 0 {
		return nil
	}
	buf := a.heap.Malloc(size)
	if len(buf) < size {
		a.fatal(&FatalError{Err: ErrOutOfMemory, Site: site, Size: size})
		return nil
	}
	a.fatal(a.registry.TrackAllocation(bufferAddress(buf), size, site))
	return buf
}

// Calloc allocates count*size zeroed bytes.
func (a *Allocator) Calloc(count, size int) []byte {
	site := a.site()
	if count < 0 || size < 0 || (size != 0 && count > int(^uint(0)>>1)/size) {
		a.fatal(&FatalError{Err: ErrOutOfMemory, Site: site, Size: count * size})
		return nil
	}
	buf := a.malloc(count*size, site)
	clear(buf)
	return buf
}

// Realloc resizes buf. A nil buf allocates; a size of zero frees.
func (a *Allocator) Realloc(buf []byte, size int) []byte {
	site := a.site()
	if cap(buf) == 0 {
		return a.malloc(size, site)
	}
	if size <= 0 {
		a.free(buf, site)
		return nil
	}
	old := bufferAddress(buf)
	src, err := a.registry.detach(old, size, site)
	if err != nil {
		a.fatal(err)
		return nil
	}
	newBuf := a.heap.Realloc(buf, size)
	if len(newBuf) < size {
		a.registry.attach(old, src)
		a.fatal(&FatalError{Err: ErrOutOfMemory, Site: site, Size: size})
		return nil
	}
	a.fatal(a.registry.completeRelocation(old, bufferAddress(newBuf), size, site))
	return newBuf
}

// Append appends more to buf, tracking the move when buf's array is replaced.
func (a *Allocator) Append(buf []byte, more ...byte) []byte {
	site := a.site()
	return a.append(buf, len(more), site, func() []byte {
		return a.heap.Append(buf, more...)
	}, func(dst []byte) {
		copy(dst, more)
	})
}

// AppendString appends more to buf, tracking the move when buf's array is replaced.
func (a *Allocator) AppendString(buf []byte, more string) []byte {
	site := a.site()
	return a.append(buf, len(more), site, func() []byte {
		return a.heap.AppendString(buf, more)
	}, func(dst []byte) {
		copy(dst, more)
	})
}

func (a *Allocator) append(buf []byte, n int, site Site, grow func() []byte, fill func(dst []byte)) []byte {
	if n == 0 {
		return buf
	}
	if cap(buf) == 0 {
		newBuf := a.malloc(n, site)
		fill(newBuf)
		return newBuf
	}
	size := len(buf) + n
	old := bufferAddress(buf)
	src, err := a.registry.detach(old, size, site)
	if err != nil {
		a.fatal(err)
		return buf
	}
	newBuf := grow()
	if len(newBuf) < size {
		a.registry.attach(old, src)
		a.fatal(&FatalError{Err: ErrOutOfMemory, Site: site, Size: size})
		return buf
	}
	a.fatal(a.registry.completeRelocation(old, bufferAddress(newBuf), size, site))
	return newBuf
}

// Free releases buf. Freeing a buffer the registry does not track is fatal
// and the buffer is not handed to the heap.
func (a *Allocator) Free(buf []byte) {
	a.free(buf, a.site())
}

func (a *Allocator) free(buf []byte, site Site) {
	if cap(buf) == 0 {
		return
	}
	if err := a.registry.UntrackRelease(bufferAddress(buf), site); err != nil {
		a.fatal(err)
		return
	}
	a.heap.Free(buf)
}

// Check writes the outstanding allocations to w.
func (a *Allocator) Check(w io.Writer) error {
	return WriteReport(w, a.registry.ReportOutstanding())
}
