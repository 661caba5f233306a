// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"math/bits"
	"sync"
)

const (
	minAlignedBufferSizeBits = 5
	maxAlignedBufferSizeBits = 16
	minAlignedBufferSize     = 1 << minAlignedBufferSizeBits                           // 32
	maxAlignedBufferSize     = 1 << maxAlignedBufferSizeBits                           // 64k
	alignedPoolBucketNum     = maxAlignedBufferSizeBits - minAlignedBufferSizeBits + 1 // 12
)

// AlignedAllocator serves power-of-two sized buffers from one sync.Pool per size.
type AlignedAllocator struct {
	*debugger
	pools [alignedPoolBucketNum]sync.Pool
}

// NewAligned .
func NewAligned() Allocator {
	amp := &AlignedAllocator{
		debugger: &debugger{},
	}
	for i := range amp.pools {
		size := 1 << (i + minAlignedBufferSizeBits)
		amp.pools[i].New = func() interface{} {
			b := make([]byte, size)
			return &b
		}
	}
	return amp
}

func alignedIndex(size int) int {
	if size <= minAlignedBufferSize {
		return 0
	}
	return bits.Len(uint(size-1)) - minAlignedBufferSizeBits
}

// Malloc .
func (amp *AlignedAllocator) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	var ret []byte
	if size <= maxAlignedBufferSize {
		ret = (*(amp.pools[alignedIndex(size)].Get().(*[]byte)))[:size]
	} else {
		ret = make([]byte, size)
	}
	amp.incrMalloc(ret)
	return ret
}

// Realloc .
func (amp *AlignedAllocator) Realloc(buf []byte, size int) []byte {
	return reallocByCopy(amp, buf, size)
}

// Append .
func (amp *AlignedAllocator) Append(buf []byte, more ...byte) []byte {
	return appendBytes(amp, buf, more)
}

// AppendString .
func (amp *AlignedAllocator) AppendString(buf []byte, more string) []byte {
	return appendBytes(amp, buf, []byte(more))
}

// Free .
func (amp *AlignedAllocator) Free(buf []byte) {
	amp.incrFree(buf)
	size := cap(buf)
	if size < minAlignedBufferSize || size > maxAlignedBufferSize || size&(size-1) != 0 {
		return
	}
	buf = buf[:size]
	amp.pools[alignedIndex(size)].Put(&buf)
}
