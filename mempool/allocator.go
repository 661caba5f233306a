// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

// Allocator is a manually managed []byte heap: every buffer returned by
// Malloc, Realloc, Append or AppendString belongs to the caller until it is
// handed back to Free.
//
// Malloc and Realloc return nil when the heap cannot satisfy a positive
// size; the previous buffer given to a failed Realloc stays valid.
type Allocator interface {
	Malloc(size int) []byte
	Realloc(buf []byte, size int) []byte
	Append(buf []byte, more ...byte) []byte
	AppendString(buf []byte, more string) []byte
	Free(buf []byte)
}

// DebugAllocator is an Allocator that can count its own traffic.
type DebugAllocator interface {
	Allocator
	String() string
	SetDebug(bool)
}

// DefaultMemPool .
var DefaultMemPool = New(1024, 1024*1024*1024)

// Malloc exports default package method.
func Malloc(size int) []byte {
	return DefaultMemPool.Malloc(size)
}

// Realloc exports default package method.
func Realloc(buf []byte, size int) []byte {
	return DefaultMemPool.Realloc(buf, size)
}

// Append exports default package method.
func Append(buf []byte, more ...byte) []byte {
	return DefaultMemPool.Append(buf, more...)
}

// AppendString exports default package method.
func AppendString(buf []byte, more string) []byte {
	return DefaultMemPool.AppendString(buf, more)
}

// Free exports default package method.
func Free(buf []byte) {
	DefaultMemPool.Free(buf)
}

// Init replaces DefaultMemPool.
func Init(bufSize, freeSize int) {
	DefaultMemPool = New(bufSize, freeSize)
}

// appendBytes grows buf through a when its capacity is too small.
func appendBytes(a Allocator, buf []byte, more []byte) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	n := len(buf)
	newBuf := a.Realloc(buf, n+len(more))
	if newBuf == nil {
		return nil
	}
	copy(newBuf[n:], more)
	return newBuf
}

// reallocByCopy moves buf to a fresh buffer from a and frees the old one.
func reallocByCopy(a Allocator, buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := a.Malloc(size)
	if newBuf == nil {
		return nil
	}
	copy(newBuf, buf)
	if cap(buf) > 0 {
		a.Free(buf)
	}
	return newBuf
}
