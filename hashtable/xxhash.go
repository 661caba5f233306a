// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hashtable

import "github.com/bytedance/gopkg/util/xxhash3"

// XXString behaves like String but hashes with xxhash3, which spreads long
// keys sharing a prefix far better than the multiplicative hash.
type XXString struct {
	String
}

// Hash .
func (XXString) Hash(key string) uint64 {
	return xxhash3.HashString(key)
}
