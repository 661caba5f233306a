// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import (
	"encoding/json"
	"sync"

	"github.com/lesismal/memcheck/hashtable"
	"github.com/lesismal/memcheck/logging"
)

// Registry maps live addresses to the site and size that allocated them.
// Tracking calls require Init; Finalize ends the registry's life.
type Registry struct {
	mux     sync.Mutex
	guarded bool

	name            string
	initialCapacity int
	logger          logging.Logger
	onFatal         func(err error)
	onEvent         func(ev Event)

	ready bool
	table *hashtable.Table[uintptr, *Source]

	liveBytes   int64
	mallocs     uint64
	frees       uint64
	relocations uint64
}

// New creates an uninitialized Registry.
func New(conf Config) *Registry {
	if conf.Name == "" {
		conf.Name = DefaultName
	}
	if conf.InitialCapacity <= 0 {
		conf.InitialCapacity = DefaultInitialCapacity
	}
	if conf.Logger == nil {
		conf.Logger = logging.DefaultLogger
	}
	if conf.OnFatal == nil {
		conf.OnFatal = exitOnFatal(conf.Logger)
	}
	return &Registry{
		guarded:         conf.Guarded,
		name:            conf.Name,
		initialCapacity: conf.InitialCapacity,
		logger:          conf.Logger,
		onFatal:         conf.OnFatal,
		onEvent:         conf.OnEvent,
	}
}

// Init creates the address table. Calling Init on a ready registry is a no-op.
func (r *Registry) Init() {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if r.ready {
		return
	}
	r.table = hashtable.New[uintptr, *Source](hashtable.Identity[uintptr]{}, r.initialCapacity)
	r.liveBytes, r.mallocs, r.frees, r.relocations = 0, 0, 0, 0
	r.ready = true
	r.logger.Debug("%s: initialized with %d slots", r.name, r.initialCapacity)
}

// Finalize releases everything still tracked, logging each entry as a leak,
// and returns the registry to its uninitialized state. It returns the
// records that were outstanding.
func (r *Registry) Finalize() []Record {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return nil
	}
	leaks := r.outstanding()
	r.table.Destroy(func(addr uintptr, src *Source) {
		r.logger.Warn("%s: leak: %#x, %d bytes allocated at %s", r.name, addr, src.Size, src.Site)
	})
	r.table = nil
	r.ready = false
	r.logger.Debug("%s: finalized, %d leaks", r.name, len(leaks))
	return leaks
}

// Name returns the name the registry logs with.
func (r *Registry) Name() string {
	return r.name
}

// Ready reports whether the registry is between Init and Finalize.
func (r *Registry) Ready() bool {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	return r.ready
}

// TrackAllocation records a completed allocation of size bytes at addr.
func (r *Registry) TrackAllocation(addr uintptr, size int, site Site) error {
	ev, err := r.trackAllocation(addr, size, site)
	r.emit(ev, err)
	return err
}

func (r *Registry) trackAllocation(addr uintptr, size int, site Site) (Event, error) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Event{}, ErrNotInitialized
	}
	return r.put(addr, size, site)
}

func (r *Registry) put(addr uintptr, size int, site Site) (Event, error) {
	if addr == 0 {
		return Event{}, ErrNilAddress
	}
	if prev, ok := r.table.Find(addr); ok {
		r.logger.Warn("%s: %s: got %#x which is still tracked, allocated at %s", r.name, site, addr, prev.Site)
		r.liveBytes -= int64(prev.Size)
	}
	r.table.Put(addr, &Source{Site: site, Size: size})
	r.liveBytes += int64(size)
	r.mallocs++
	return Event{Op: OpAlloc, Address: addr, Size: size, Site: site}, nil
}

// UntrackRelease forgets addr. Releasing the zero address is a no-op;
// releasing an address that is not tracked returns a *FatalError.
func (r *Registry) UntrackRelease(addr uintptr, site Site) error {
	ev, err := r.untrackRelease(addr, site)
	r.emit(ev, err)
	return err
}

func (r *Registry) untrackRelease(addr uintptr, site Site) (Event, error) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Event{}, ErrNotInitialized
	}
	if addr == 0 {
		return Event{}, nil
	}
	src, ok := r.table.Find(addr)
	if !ok {
		return Event{}, &FatalError{Err: ErrInvalidRelease, Site: site, Address: addr}
	}
	r.table.Remove(addr)
	r.liveBytes -= int64(src.Size)
	r.frees++
	return Event{Op: OpFree, Address: addr, Size: src.Size, Site: site}, nil
}

// TrackRelocation replaces the entry of oldAddr with newAddr after a
// completed resize. A zero oldAddr tracks a fresh allocation; a zero newAddr
// only releases oldAddr. Resizing an address that is not tracked returns a
// *FatalError.
func (r *Registry) TrackRelocation(oldAddr, newAddr uintptr, newSize int, site Site) error {
	ev, err := r.trackRelocation(oldAddr, newAddr, newSize, site)
	r.emit(ev, err)
	return err
}

func (r *Registry) trackRelocation(oldAddr, newAddr uintptr, newSize int, site Site) (Event, error) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Event{}, ErrNotInitialized
	}
	if oldAddr == 0 {
		return r.put(newAddr, newSize, site)
	}
	src, ok := r.table.Find(oldAddr)
	if !ok {
		return Event{}, &FatalError{Err: ErrInvalidRelocation, Site: site, Address: oldAddr, Size: newSize}
	}
	r.table.Remove(oldAddr)
	r.liveBytes -= int64(src.Size)
	if newAddr == 0 {
		r.frees++
		return Event{Op: OpFree, Address: oldAddr, Size: src.Size, Site: site}, nil
	}
	return r.putRelocated(oldAddr, newAddr, newSize, site), nil
}

// putRelocated tracks newAddr as the resized oldAddr. The caller holds the
// lock and has already removed oldAddr.
func (r *Registry) putRelocated(oldAddr, newAddr uintptr, newSize int, site Site) Event {
	if prev, ok := r.table.Find(newAddr); ok {
		r.logger.Warn("%s: %s: got %#x which is still tracked, allocated at %s", r.name, site, newAddr, prev.Site)
		r.liveBytes -= int64(prev.Size)
	}
	r.table.Put(newAddr, &Source{Site: site, Size: newSize})
	r.liveBytes += int64(newSize)
	r.relocations++
	return Event{Op: OpRealloc, Address: newAddr, OldAddress: oldAddr, Size: newSize, Site: site}
}

// detach untracks addr ahead of a heap resize, so an allocation on another
// goroutine that is handed addr while the resize runs is tracked as its own.
// The resize then ends with either attach or completeRelocation.
func (r *Registry) detach(addr uintptr, newSize int, site Site) (Source, error) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Source{}, ErrNotInitialized
	}
	src, ok := r.table.Find(addr)
	if !ok {
		return Source{}, &FatalError{Err: ErrInvalidRelocation, Site: site, Address: addr, Size: newSize}
	}
	r.table.Remove(addr)
	r.liveBytes -= int64(src.Size)
	return *src, nil
}

// attach restores an entry removed by detach after a failed resize.
func (r *Registry) attach(addr uintptr, src Source) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return
	}
	r.table.Put(addr, &src)
	r.liveBytes += int64(src.Size)
}

// completeRelocation tracks the result of a resize started with detach.
func (r *Registry) completeRelocation(oldAddr, newAddr uintptr, newSize int, site Site) error {
	ev, err := r.finishRelocation(oldAddr, newAddr, newSize, site)
	r.emit(ev, err)
	return err
}

func (r *Registry) finishRelocation(oldAddr, newAddr uintptr, newSize int, site Site) (Event, error) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Event{}, ErrNotInitialized
	}
	if newAddr == 0 {
		return Event{}, ErrNilAddress
	}
	return r.putRelocated(oldAddr, newAddr, newSize, site), nil
}

func (r *Registry) emit(ev Event, err error) {
	if err == nil && ev.Op != 0 && r.onEvent != nil {
		r.onEvent(ev)
	}
}

// Contains reports whether addr is tracked.
func (r *Registry) Contains(addr uintptr) bool {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	return r.ready && r.table.Contains(addr)
}

// Lookup returns the metadata tracked for addr.
func (r *Registry) Lookup(addr uintptr) (Source, bool) {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return Source{}, false
	}
	src, ok := r.table.Find(addr)
	if !ok {
		return Source{}, false
	}
	return *src, true
}

// ReportOutstanding returns every tracked allocation in table order: slot
// order, then chain order. It is not chronological.
func (r *Registry) ReportOutstanding() []Record {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return nil
	}
	return r.outstanding()
}

func (r *Registry) outstanding() []Record {
	records := make([]Record, 0, r.table.Len())
	it := r.table.Iterator()
	for it.HasNext() {
		e := it.Next()
		records = append(records, Record{Address: e.Key, Size: e.Value.Size, Site: e.Value.Site})
	}
	return records
}

// Len returns the number of tracked addresses.
func (r *Registry) Len() int {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	if !r.ready {
		return 0
	}
	return r.table.Len()
}

// Stats is a snapshot of the registry's counters.
type Stats struct {
	Live        int             `json:"live"`
	LiveBytes   int64           `json:"live_bytes"`
	Mallocs     uint64          `json:"mallocs"`
	Frees       uint64          `json:"frees"`
	Relocations uint64          `json:"relocations"`
	Table       hashtable.Stats `json:"table"`
}

// String .
func (s Stats) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// Stats returns the current counters.
func (r *Registry) Stats() Stats {
	if r.guarded {
		r.mux.Lock()
		defer r.mux.Unlock()
	}
	st := Stats{
		LiveBytes:   r.liveBytes,
		Mallocs:     r.mallocs,
		Frees:       r.frees,
		Relocations: r.relocations,
	}
	if r.ready {
		st.Live = r.table.Len()
		st.Table = r.table.Stats()
	}
	return st
}
