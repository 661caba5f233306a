// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/bytedance/gopkg/lang/mcache"
)

// mcacheAllocator delegates to bytedance's power-of-two size class cache.
type mcacheAllocator struct {
	*debugger
}

// NewMCache .
func NewMCache() Allocator {
	return &mcacheAllocator{
		debugger: &debugger{},
	}
}

// Malloc .
func (a *mcacheAllocator) Malloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	ret := mcache.Malloc(size)
	a.incrMalloc(ret)
	return ret
}

// Realloc .
func (a *mcacheAllocator) Realloc(buf []byte, size int) []byte {
	return reallocByCopy(a, buf, size)
}

// Append .
func (a *mcacheAllocator) Append(buf []byte, more ...byte) []byte {
	return appendBytes(a, buf, more)
}

// AppendString .
func (a *mcacheAllocator) AppendString(buf []byte, more string) []byte {
	return appendBytes(a, buf, []byte(more))
}

// Free .
func (a *mcacheAllocator) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	a.incrFree(buf)
	mcache.Free(buf)
}
