package memcheck

import (
	"bytes"
	"sync"
	"testing"

	"github.com/lesismal/memcheck/logging"
	"github.com/lesismal/memcheck/mempool"
)

// fatalRecorder collects the errors a harness would have exited on.
type fatalRecorder struct {
	mux  sync.Mutex
	errs []error
}

func (f *fatalRecorder) record(err error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fatalRecorder) all() []error {
	f.mux.Lock()
	defer f.mux.Unlock()
	return append([]error(nil), f.errs...)
}

type testRegistry struct {
	*Registry
	fatals *fatalRecorder
	logs   *bytes.Buffer
}

func newTestRegistry(t *testing.T, conf Config) *testRegistry {
	t.Helper()
	tr := &testRegistry{fatals: &fatalRecorder{}, logs: &bytes.Buffer{}}
	l := logging.NewLogger(tr.logs, "")
	l.SetLevel(logging.LevelAll)
	conf.Logger = l
	conf.OnFatal = tr.fatals.record
	tr.Registry = New(conf)
	tr.Init()
	return tr
}

// countingHeap counts the buffers handed back to the underlying heap.
type countingHeap struct {
	mempool.Allocator
	frees int
}

func (h *countingHeap) Free(buf []byte) {
	h.frees++
	h.Allocator.Free(buf)
}

// exhaustedHeap never has memory to give.
type exhaustedHeap struct {
	mempool.Allocator
}

func (exhaustedHeap) Malloc(int) []byte { return nil }
func (exhaustedHeap) Realloc([]byte, int) []byte { return nil }
func (exhaustedHeap) Append([]byte, ...byte) []byte { return nil }

var (
	site1 = Site{File: "a.go", Line: 10, Function: "main.alloc"}
	site2 = Site{File: "b.go", Line: 20, Function: "main.release"}
)

// slabHeap reuses the most recently freed slab first, so an address released
// by Realloc is the next one Malloc hands out. afterRealloc runs once, after
// Realloc has freed the old slab and before it returns.
type slabHeap struct {
	mux          sync.Mutex
	free         [][]byte
	afterRealloc func()
}

func (h *slabHeap) Malloc(size int) []byte {
	h.mux.Lock()
	if n := len(h.free); n > 0 && cap(h.free[n-1]) >= size {
		buf := h.free[n-1]
		h.free = h.free[:n-1]
		h.mux.Unlock()
		return buf[:size]
	}
	h.mux.Unlock()
	slab := size
	if slab < 64 {
		slab = 64
	}
	return make([]byte, slab)[:size]
}

func (h *slabHeap) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := h.Malloc(size)
	copy(newBuf, buf)
	h.Free(buf)
	if hook := h.afterRealloc; hook != nil {
		h.afterRealloc = nil
		hook()
	}
	return newBuf
}

func (h *slabHeap) Append(buf []byte, more ...byte) []byte {
	n := len(buf)
	buf = h.Realloc(buf, n+len(more))
	copy(buf[n:], more)
	return buf
}

func (h *slabHeap) AppendString(buf []byte, more string) []byte {
	n := len(buf)
	buf = h.Realloc(buf, n+len(more))
	copy(buf[n:], more)
	return buf
}

func (h *slabHeap) Free(buf []byte) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.free = append(h.free, buf[:cap(buf)])
}

// stuckHeap allocates but cannot grow a buffer.
type stuckHeap struct {
	mempool.Allocator
}

func (stuckHeap) Realloc([]byte, int) []byte { return nil }
func (stuckHeap) Append([]byte, ...byte) []byte { return nil }
func (stuckHeap) AppendString([]byte, string) []byte { return nil }
