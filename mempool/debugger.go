// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/json"
	"sync"
)

type sizeCounter struct {
	MallocCount int64
	FreeCount   int64
	NeedFree    int64
}

// debugger counts an allocator's traffic per buffer capacity. It has to be
// switched on before the allocator is shared.
type debugger struct {
	mux         sync.Mutex
	on          bool
	MallocCount int64
	FreeCount   int64
	NeedFree    int64
	SizeMap     map[int]*sizeCounter
}

func (d *debugger) SetDebug(dbg bool) {
	d.on = dbg
}

func (d *debugger) incrMalloc(b []byte) {
	if d.on {
		d.count(cap(b), 1)
	}
}

func (d *debugger) incrFree(b []byte) {
	if d.on {
		d.count(cap(b), -1)
	}
}

func (d *debugger) count(size int, delta int64) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if delta > 0 {
		d.MallocCount++
	} else {
		d.FreeCount++
	}
	d.NeedFree += delta

	if d.SizeMap == nil {
		d.SizeMap = map[int]*sizeCounter{}
	}
	c, ok := d.SizeMap[size]
	if !ok {
		c = &sizeCounter{}
		d.SizeMap[size] = c
	}
	if delta > 0 {
		c.MallocCount++
	} else {
		c.FreeCount++
	}
	c.NeedFree += delta
}

func (d *debugger) String() string {
	if !d.on {
		return ""
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}
