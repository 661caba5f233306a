// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build !cgo

package mempool

// NewC falls back to the Go heap in builds without cgo.
func NewC() Allocator {
	return NewSTD()
}
