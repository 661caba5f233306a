// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hashtable

// Iterator is a forward-only cursor over a Table's live entries. Putting
// or removing keys while iterating leaves the iterator undefined.
type Iterator[K, V any] struct {
	slots []Entry[K, V]
	index int
	cur   *Entry[K, V]
}

// NewIterator returns an iterator positioned at t's first live entry.
func NewIterator[K, V any](t *Table[K, V]) *Iterator[K, V] {
	it := &Iterator[K, V]{slots: t.slots}
	it.seek(0)
	return it
}

// seek moves to the first non-empty slot at or after from.
func (it *Iterator[K, V]) seek(from int) {
	it.index = from
	for it.index < len(it.slots) && !it.slots[it.index].used {
		it.index++
	}
	if it.index < len(it.slots) {
		it.cur = &it.slots[it.index]
	} else {
		it.cur = nil
	}
}

// HasNext reports whether Next has an entry to return.
func (it *Iterator[K, V]) HasNext() bool {
	return it.index < len(it.slots)
}

// Next returns the current entry and advances, or nil once exhausted.
func (it *Iterator[K, V]) Next() *Entry[K, V] {
	if !it.HasNext() {
		return nil
	}
	e := it.cur
	if it.cur = e.next; it.cur == nil {
		it.seek(it.index + 1)
	}
	return e
}
