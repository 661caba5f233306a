// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hashtable

import "strings"

// KeyPolicy defines how a Table treats its keys.
type KeyPolicy[K any] interface {
	// Hash returns the key's hash; the table reduces it modulo its capacity.
	Hash(key K) uint64

	// Equal reports whether two keys are the same key.
	Equal(a, b K) bool

	// Copy returns the key the table stores for a newly inserted key.
	// Policies for borrowed keys return key unchanged.
	Copy(key K) K

	// Release is called once for every stored key when it leaves the table.
	Release(key K)
}

// Integer is the set of key types usable with Identity.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Identity hashes a key to its own numeric value.
// Suited to address keys, which the table borrows.
type Identity[K Integer] struct{}

// Hash .
func (Identity[K]) Hash(key K) uint64 { return uint64(key) }

// Equal .
func (Identity[K]) Equal(a, b K) bool { return a == b }

// Copy .
func (Identity[K]) Copy(key K) K { return key }

// Release .
func (Identity[K]) Release(key K) {}

// String is the policy for text keys owned by the table.
type String struct{}

// Hash computes hash = 37*hash + b over the key's bytes.
func (String) Hash(key string) uint64 {
	var sum uint64
	for i := 0; i < len(key); i++ {
		sum = 37*sum + uint64(key[i])
	}
	return sum
}

// Equal compares key contents.
func (String) Equal(a, b string) bool { return a == b }

// Copy clones the key so the table never aliases caller memory.
func (String) Copy(key string) string { return strings.Clone(key) }

// Release drops the table's clone.
func (String) Release(key string) {}
