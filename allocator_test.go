package memcheck

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/lesismal/memcheck/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, heap mempool.Allocator) (*Allocator, *testRegistry) {
	t.Helper()
	reg := newTestRegistry(t, Config{Guarded: true})
	return NewAllocator(heap, reg.Registry), reg
}

func TestAllocatorMallocFree(t *testing.T) {
	heaps := map[string]mempool.Allocator{
		"std":     mempool.NewSTD(),
		"pool":    mempool.New(64, 1024),
		"aligned": mempool.NewAligned(),
		"mcache":  mempool.NewMCache(),
	}
	for name, heap := range heaps {
		t.Run(name, func(t *testing.T) {
			a, reg := newTestAllocator(t, heap)
			buf := a.Malloc(12)
			require.Len(t, buf, 12)
			assert.True(t, reg.Contains(bufferAddress(buf)))

			a.Free(buf)
			assert.Equal(t, 0, reg.Len())
			assert.Empty(t, reg.fatals.all())
		})
	}
}

func TestAllocatorRecordsCallerSite(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())
	buf := a.Malloc(8)

	src, ok := reg.Lookup(bufferAddress(buf))
	require.True(t, ok)
	assert.Equal(t, 8, src.Size)
	assert.True(t, strings.HasSuffix(src.File, "allocator_test.go"), src.File)
	assert.True(t, strings.HasSuffix(src.Function, "TestAllocatorRecordsCallerSite"), src.Function)
}

func TestAllocatorCallerSkip(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())
	a.SetCallerSkip(1)
	get := func(size int) []byte { return a.Malloc(size) }
	buf := get(8)

	src, ok := reg.Lookup(bufferAddress(buf))
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(src.Function, "TestAllocatorCallerSkip"), src.Function)
}

func TestAllocatorZeroSize(t *testing.T) {
	heap := &countingHeap{Allocator: mempool.NewSTD()}
	a, reg := newTestAllocator(t, heap)
	assert.Nil(t, a.Malloc(0))
	assert.Nil(t, a.Malloc(-1))
	a.Free(nil)
	a.Free([]byte{})
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, heap.frees)
	assert.Empty(t, reg.fatals.all())
}

func TestAllocatorDoubleFree(t *testing.T) {
	heap := &countingHeap{Allocator: mempool.NewSTD()}
	a, reg := newTestAllocator(t, heap)
	buf := a.Malloc(16)
	a.Free(buf)
	a.Free(buf)

	errs := reg.fatals.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidRelease)
	var fe *FatalError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, bufferAddress(buf), fe.Address)
	assert.True(t, strings.HasSuffix(fe.Site.Function, "TestAllocatorDoubleFree"))
	assert.Equal(t, 1, heap.frees)
}

func TestAllocatorFreeForeignBuffer(t *testing.T) {
	heap := &countingHeap{Allocator: mempool.NewSTD()}
	a, reg := newTestAllocator(t, heap)
	a.Free(make([]byte, 8))

	errs := reg.fatals.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidRelease)
	assert.Equal(t, 0, heap.frees)
}

func TestAllocatorRealloc(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())

	buf := a.Realloc(nil, 4)
	require.Len(t, buf, 4)
	copy(buf, "abcd")
	old := bufferAddress(buf)

	buf = a.Realloc(buf, 64)
	require.Len(t, buf, 64)
	assert.Equal(t, "abcd", string(buf[:4]))
	assert.False(t, reg.Contains(old))
	src, ok := reg.Lookup(bufferAddress(buf))
	require.True(t, ok)
	assert.Equal(t, 64, src.Size)

	buf = a.Realloc(buf, 8)
	require.Len(t, buf, 8)
	src, _ = reg.Lookup(bufferAddress(buf))
	assert.Equal(t, 8, src.Size)

	assert.Nil(t, a.Realloc(buf, 0))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, uint64(2), reg.Stats().Relocations)
	assert.Empty(t, reg.fatals.all())
}

func TestAllocatorReallocForeignBuffer(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())
	assert.Nil(t, a.Realloc(make([]byte, 8), 16))

	errs := reg.fatals.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidRelocation)
	assert.Equal(t, 0, reg.Len())
}

func TestAllocatorAppend(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())

	buf := a.Append(nil, 'a', 'b')
	require.Equal(t, "ab", string(buf))
	assert.Equal(t, 1, reg.Len())

	old := bufferAddress(buf)
	buf = a.AppendString(buf, strings.Repeat("c", 100))
	assert.Equal(t, "ab"+strings.Repeat("c", 100), string(buf))
	assert.False(t, reg.Contains(old))
	src, ok := reg.Lookup(bufferAddress(buf))
	require.True(t, ok)
	assert.Equal(t, 102, src.Size)

	assert.Equal(t, buf, a.Append(buf))
	a.Free(buf)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.fatals.all())
}

func TestAllocatorAppendForeignBuffer(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.NewSTD())
	foreign := []byte("xy")
	assert.Equal(t, foreign, a.AppendString(foreign, "z"))

	errs := reg.fatals.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidRelocation)
}

func TestAllocatorReallocReleasesOldAddressFirst(t *testing.T) {
	heap := &slabHeap{}
	a, reg := newTestAllocator(t, heap)

	buf := a.Malloc(16)
	old := bufferAddress(buf)
	var other []byte
	heap.afterRealloc = func() { other = a.Malloc(16) }

	buf = a.Realloc(buf, 128)
	require.Len(t, buf, 128)
	require.Len(t, other, 16)
	assert.Equal(t, old, bufferAddress(other))
	assert.True(t, reg.Contains(bufferAddress(buf)))
	src, ok := reg.Lookup(old)
	require.True(t, ok)
	assert.Equal(t, 16, src.Size)

	a.Free(other)
	a.Free(buf)
	assert.Empty(t, reg.fatals.all())
	assert.NotContains(t, reg.logs.String(), "still tracked")
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, int64(0), reg.Stats().LiveBytes)
}

func TestAllocatorAppendReleasesOldAddressFirst(t *testing.T) {
	heap := &slabHeap{}
	a, reg := newTestAllocator(t, heap)

	buf := a.Malloc(60)
	old := bufferAddress(buf)
	var other []byte
	heap.afterRealloc = func() { other = a.Malloc(8) }

	buf = a.AppendString(buf, strings.Repeat("x", 40))
	require.Len(t, buf, 100)
	assert.Equal(t, old, bufferAddress(other))
	assert.True(t, reg.Contains(old))
	assert.True(t, reg.Contains(bufferAddress(buf)))

	a.Free(other)
	a.Free(buf)
	assert.Empty(t, reg.fatals.all())
	assert.Equal(t, 0, reg.Len())
}

func TestAllocatorFailedResizeKeepsEntry(t *testing.T) {
	a, reg := newTestAllocator(t, stuckHeap{Allocator: mempool.NewSTD()})
	buf := a.Malloc(8)
	addr := bufferAddress(buf)

	assert.Nil(t, a.Realloc(buf, 64))
	assert.Equal(t, buf, a.Append(buf, make([]byte, 64)...))

	errs := reg.fatals.all()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrOutOfMemory)
	assert.ErrorIs(t, errs[1], ErrOutOfMemory)
	src, ok := reg.Lookup(addr)
	require.True(t, ok)
	assert.Equal(t, 8, src.Size)
	assert.Equal(t, int64(8), reg.Stats().LiveBytes)

	a.Free(buf)
	assert.Equal(t, 0, reg.Len())
	assert.Len(t, reg.fatals.all(), 2)
}

func TestAllocatorConcurrent(t *testing.T) {
	heaps := map[string]mempool.Allocator{
		"pool":    mempool.New(64, 1024),
		"aligned": mempool.NewAligned(),
	}
	for name, heap := range heaps {
		t.Run(name, func(t *testing.T) {
			a, reg := newTestAllocator(t, heap)
			wg := sync.WaitGroup{}
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 500; i++ {
						buf := a.Malloc(16 + i%32)
						buf = a.Realloc(buf, 256+i%512)
						buf = a.AppendString(buf, "tail")
						buf = a.Append(buf, make([]byte, 1024)...)
						a.Free(buf)
					}
				}()
			}
			wg.Wait()

			assert.Empty(t, reg.fatals.all())
			assert.NotContains(t, reg.logs.String(), "still tracked")
			assert.Equal(t, 0, reg.Len())
			assert.Equal(t, int64(0), reg.Stats().LiveBytes)
		})
	}
}

func TestAllocatorCalloc(t *testing.T) {
	a, reg := newTestAllocator(t, mempool.New(64, 1024))
	for i := 0; i < 4; i++ {
		buf := a.Malloc(16)
		for j := range buf {
			buf[j] = 0xff
		}
		a.Free(buf)
	}

	buf := a.Calloc(4, 4)
	require.Len(t, buf, 16)
	assert.Equal(t, make([]byte, 16), buf)
	assert.Equal(t, 1, reg.Len())

	assert.Nil(t, a.Calloc(-1, 4))
	assert.Nil(t, a.Calloc(int(^uint(0)>>1), 2))
	errs := reg.fatals.all()
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrOutOfMemory)
	}
}

func TestAllocatorOutOfMemory(t *testing.T) {
	a, reg := newTestAllocator(t, exhaustedHeap{Allocator: mempool.NewSTD()})
	assert.Nil(t, a.Malloc(32))

	errs := reg.fatals.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrOutOfMemory)
	var fe *FatalError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, 32, fe.Size)
	assert.Equal(t, 0, reg.Len())
}

func TestAllocatorNotInitialized(t *testing.T) {
	rec := &fatalRecorder{}
	reg := New(Config{OnFatal: rec.record})
	a := NewAllocator(mempool.NewSTD(), reg)
	buf := a.Malloc(8)
	assert.Len(t, buf, 8)

	errs := rec.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNotInitialized)
}

func TestAllocatorCheck(t *testing.T) {
	a, _ := newTestAllocator(t, mempool.NewSTD())
	freed := a.Malloc(4)
	a.Free(freed)

	var out bytes.Buffer
	require.NoError(t, a.Check(&out))
	assert.Equal(t, ReportHeader, out.String())

	leaked := a.Malloc(12)
	out.Reset()
	require.NoError(t, a.Check(&out))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.TrimSuffix(ReportHeader, "\n"), lines[0])
	assert.Contains(t, lines[1], "12 bytes allocated at")
	assert.Contains(t, lines[1], "allocator_test.go")
	assert.Contains(t, lines[1], "TestAllocatorCheck")
	a.Free(leaked)
}

func TestDefaultFatalHandlerExits(t *testing.T) {
	if os.Getenv("MEMCHECK_FATAL_CHILD") == "1" {
		reg := New(Config{})
		reg.Init()
		a := NewAllocator(mempool.NewSTD(), reg)
		a.Free(make([]byte, 8))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestDefaultFatalHandlerExits$")
	cmd.Env = append(os.Environ(), "MEMCHECK_FATAL_CHILD=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.NotEqual(t, 0, exitErr.ExitCode())
	assert.Contains(t, stderr.String(), "attempt to free not-malloced addr")
	assert.Contains(t, stderr.String(), "TestDefaultFatalHandlerExits")
}
