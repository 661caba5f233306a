// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
)

// MemPool recycles buffers up to freeSize bytes through a sync.Pool.
type MemPool struct {
	*debugger
	bufSize  int
	freeSize int
	pool     *sync.Pool
}

// New .
func New(bufSize, freeSize int) Allocator {
	if bufSize <= 0 {
		bufSize = 64
	}
	if freeSize <= 0 {
		freeSize = 64 * 1024
	}
	if freeSize < bufSize {
		freeSize = bufSize
	}

	mp := &MemPool{
		debugger: &debugger{},
		bufSize:  bufSize,
		freeSize: freeSize,
		pool:     &sync.Pool{},
	}
	mp.pool.New = func() interface{} {
		buf := make([]byte, bufSize)
		return &buf
	}
	return mp
}

// Malloc .
func (mp *MemPool) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	var ret []byte
	if size > mp.freeSize {
		ret = make([]byte, size)
	} else {
		pbuf := mp.pool.Get().(*[]byte)
		n := cap(*pbuf)
		if n < size {
			*pbuf = append((*pbuf)[:n], make([]byte, size-n)...)
		}
		ret = (*pbuf)[:size]
	}
	mp.incrMalloc(ret)
	return ret
}

// Realloc .
func (mp *MemPool) Realloc(buf []byte, size int) []byte {
	return reallocByCopy(mp, buf, size)
}

// Append .
func (mp *MemPool) Append(buf []byte, more ...byte) []byte {
	return appendBytes(mp, buf, more)
}

// AppendString .
func (mp *MemPool) AppendString(buf []byte, more string) []byte {
	return appendBytes(mp, buf, []byte(more))
}

// Free .
func (mp *MemPool) Free(buf []byte) {
	mp.incrFree(buf)
	if cap(buf) == 0 || cap(buf) > mp.freeSize {
		return
	}
	buf = buf[:cap(buf)]
	mp.pool.Put(&buf)
}
