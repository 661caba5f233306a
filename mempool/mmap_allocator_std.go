// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package mempool

// NewMmap falls back to the Go heap where anonymous mappings are unavailable.
func NewMmap() Allocator {
	return NewSTD()
}
