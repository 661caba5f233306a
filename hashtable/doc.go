// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package hashtable implements a generic chained hash table whose bucket
// array stores the first entry of every bucket inline.
//
// # Layout
//
// A Table keeps capacity slots. Each slot is an Entry value, not a pointer:
// the first key of a bucket lives directly in the slot and any further keys
// hang off it in a singly linked overflow chain. Every slot carries an
// occupancy flag, so any key value can be stored; an empty slot never has a
// chain.
//
// # Key policies
//
// Hashing, equality, copying and releasing of keys are supplied by a
// KeyPolicy at construction:
//
//	addrs := hashtable.New[uintptr, *Source](hashtable.Identity[uintptr]{}, 1024)
//	names := hashtable.New[string, int](hashtable.String{}, 16)
//
// Identity keys are borrowed, the table never copies or releases them.
// String keys are owned: the table clones them on insert and releases them
// on Remove and Destroy.
//
// # Growth
//
// After every insertion of a new key the table checks len > 0.75*cap and,
// if exceeded, doubles its slot count before Put returns. Overflow nodes
// are spliced into the new slots rather than reallocated. Tables never
// shrink.
//
// # Iteration
//
// Iterator walks slots in order and each chain front to back, yielding every
// live entry exactly once. Mutating a table invalidates its iterators.
//
// # Thread Safety
//
// Tables are not safe for concurrent use. Callers serialise access.
package hashtable
