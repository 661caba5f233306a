// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

// stdAllocator allocates from the Go heap and leaves reclamation to the
// collector; Free only counts.
type stdAllocator struct {
	*debugger
}

// NewSTD .
func NewSTD() Allocator {
	return &stdAllocator{
		debugger: &debugger{},
	}
}

// Malloc .
func (a *stdAllocator) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	ret := make([]byte, size)
	a.incrMalloc(ret)
	return ret
}

// Realloc .
func (a *stdAllocator) Realloc(buf []byte, size int) []byte {
	return reallocByCopy(a, buf, size)
}

// Append .
func (a *stdAllocator) Append(buf []byte, more ...byte) []byte {
	return appendBytes(a, buf, more)
}

// AppendString .
func (a *stdAllocator) AppendString(buf []byte, more string) []byte {
	return appendBytes(a, buf, []byte(more))
}

// Free .
func (a *stdAllocator) Free(buf []byte) {
	a.incrFree(buf)
}
