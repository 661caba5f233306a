// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hashtable

import (
	"iter"
)

const (
	rehashThreshold = 0.75
	rehashRate      = 2
)

// Entry is one key/value pair. Head entries live inline in the slot array,
// overflow entries are heap nodes linked from their bucket's head.
type Entry[K, V any] struct {
	Key   K
	Value V

	used bool // head slots only
	next *Entry[K, V]
}

// Table is a chained hash table with inline bucket heads.
type Table[K, V any] struct {
	capacity int
	count    int
	slots    []Entry[K, V]

	policy KeyPolicy[K]
}

// New creates a Table with the given slot count; capacity below 1 is raised to 1.
func New[K, V any](policy KeyPolicy[K], capacity int) *Table[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	t := &Table[K, V]{
		capacity: capacity,
		slots:    make([]Entry[K, V], capacity),
		policy:   policy,
	}
	return t
}

func (t *Table[K, V]) bucket(slots []Entry[K, V], key K) *Entry[K, V] {
	return &slots[t.policy.Hash(key)%uint64(len(slots))]
}

// Put stores value under key, overwriting the value of an existing key in
// place. Inserting a new key may grow the table before Put returns.
func (t *Table[K, V]) Put(key K, value V) {
	head := t.bucket(t.slots, key)
	if !head.used {
		head.Key = t.policy.Copy(key)
		head.Value = value
		head.used = true
		t.added()
		return
	}
	if t.policy.Equal(head.Key, key) {
		head.Value = value
		return
	}

	prev := head
	for cur := head.next; cur != nil; cur = cur.next {
		if t.policy.Equal(cur.Key, key) {
			cur.Value = value
			return
		}
		prev = cur
	}
	prev.next = &Entry[K, V]{Key: t.policy.Copy(key), Value: value}
	t.added()
}

// added counts a new key and grows once the load factor passes the
// threshold. The check uses the capacity in effect before growth.
func (t *Table[K, V]) added() {
	t.count++
	if float64(t.count) > rehashThreshold*float64(t.capacity) {
		t.rehash()
	}
}

// Remove deletes key and reports whether it was present.
func (t *Table[K, V]) Remove(key K) bool {
	head := t.bucket(t.slots, key)
	if !head.used {
		return false
	}
	if t.policy.Equal(head.Key, key) {
		t.policy.Release(head.Key)
		if next := head.next; next != nil {
			head.Key, head.Value, head.next = next.Key, next.Value, next.next
			*next = Entry[K, V]{}
		} else {
			*head = Entry[K, V]{}
		}
		t.count--
		return true
	}

	for prev, cur := head, head.next; cur != nil; prev, cur = cur, cur.next {
		if t.policy.Equal(cur.Key, key) {
			prev.next = cur.next
			t.policy.Release(cur.Key)
			*cur = Entry[K, V]{}
			t.count--
			return true
		}
	}
	return false
}

// Entry returns the stored entry for key, or nil. The pointer is valid until
// the next Put or Remove.
func (t *Table[K, V]) Entry(key K) *Entry[K, V] {
	head := t.bucket(t.slots, key)
	if !head.used {
		return nil
	}
	if t.policy.Equal(head.Key, key) {
		return head
	}
	for cur := head.next; cur != nil; cur = cur.next {
		if t.policy.Equal(cur.Key, key) {
			return cur
		}
	}
	return nil
}

// Find returns the value stored under key.
func (t *Table[K, V]) Find(key K) (V, bool) {
	if e := t.Entry(key); e != nil {
		return e.Value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is stored.
func (t *Table[K, V]) Contains(key K) bool {
	return t.Entry(key) != nil
}

// Len returns the number of distinct keys stored.
func (t *Table[K, V]) Len() int {
	return t.count
}

// Cap returns the number of slots.
func (t *Table[K, V]) Cap() int {
	return t.capacity
}

// rehash doubles the slot array. Old heads are re-placed with their keys as
// they are, overflow nodes are spliced into the new slots.
func (t *Table[K, V]) rehash() {
	capacity := t.capacity * rehashRate
	slots := make([]Entry[K, V], capacity)
	for i := range t.slots {
		head := &t.slots[i]
		if !head.used {
			continue
		}
		t.place(slots, head.Key, head.Value)

		cur := head.next
		for cur != nil {
			next := cur.next
			t.splice(slots, cur)
			cur = next
		}
	}
	t.slots = slots
	t.capacity = capacity
}

func (t *Table[K, V]) place(slots []Entry[K, V], key K, value V) {
	head := t.bucket(slots, key)
	if !head.used {
		head.Key, head.Value, head.used = key, value, true
		return
	}
	head.next = &Entry[K, V]{Key: key, Value: value, next: head.next}
}

func (t *Table[K, V]) splice(slots []Entry[K, V], node *Entry[K, V]) {
	head := t.bucket(slots, node.Key)
	if !head.used {
		head.Key, head.Value, head.used = node.Key, node.Value, true
		*node = Entry[K, V]{}
		return
	}
	node.next = head.next
	head.next = node
}

// Iterator returns a fresh iterator positioned at the first live entry.
func (t *Table[K, V]) Iterator() *Iterator[K, V] {
	return NewIterator(t)
}

// All yields every live key and value in iteration order.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it := NewIterator(t)
		for it.HasNext() {
			e := it.Next()
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Destroy releases every key through the policy and hands every value to
// release, which may be nil. The table is left empty with a single slot.
func (t *Table[K, V]) Destroy(release func(key K, value V)) {
	for i := range t.slots {
		head := &t.slots[i]
		if !head.used {
			continue
		}
		for cur := head.next; cur != nil; cur = cur.next {
			if release != nil {
				release(cur.Key, cur.Value)
			}
			t.policy.Release(cur.Key)
		}
		if release != nil {
			release(head.Key, head.Value)
		}
		t.policy.Release(head.Key)
	}
	t.capacity = 1
	t.count = 0
	t.slots = make([]Entry[K, V], 1)
}

// Stats describes the table's shape.
type Stats struct {
	Len          int     `json:"len"`           // live keys
	Capacity     int     `json:"capacity"`      // slots
	Used         int     `json:"used"`          // non-empty slots
	Chained      int     `json:"chained"`       // overflow nodes
	LongestChain int     `json:"longest_chain"` // overflow nodes in the longest chain
	LoadFactor   float64 `json:"load_factor"`   // Len / Capacity
}

// Stats walks the table and reports its shape.
func (t *Table[K, V]) Stats() Stats {
	st := Stats{
		Len:        t.count,
		Capacity:   t.capacity,
		LoadFactor: float64(t.count) / float64(t.capacity),
	}
	for i := range t.slots {
		head := &t.slots[i]
		if !head.used {
			continue
		}
		st.Used++
		n := 0
		for cur := head.next; cur != nil; cur = cur.next {
			n++
		}
		st.Chained += n
		if n > st.LongestChain {
			st.LongestChain = n
		}
	}
	return st
}
