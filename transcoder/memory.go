package transcoder

import (
	"sync"

	wasmffi "github.com/wippyai/wasm-ffi"
)

type Memory = wasmffi.Memory
type Allocator = wasmffi.Allocator

type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns to pool. Must call after Free(); list invalid after Release.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

// FreeAndRelease frees every allocation and returns the list to the pool.
func (al *AllocationList) FreeAndRelease(allocator Allocator) {
	al.Free(allocator)
	al.Release()
}

func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
}

// Append moves the allocations of other into al.
func (al *AllocationList) Append(other *AllocationList) {
	al.allocations = append(al.allocations, other.allocations...)
	other.Reset()
}

// Free releases allocations in reverse order of allocation. Zero-size and
// null entries are skipped.
func (al *AllocationList) Free(allocator Allocator) {
	if allocator == nil {
		return
	}
	for i := len(al.allocations) - 1; i >= 0; i-- {
		a := al.allocations[i]
		if a.Ptr != 0 && a.Size != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
	al.Reset()
}

func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *AllocationList) Count() int {
	return len(al.allocations)
}

// Items returns a copy of the recorded allocations.
func (al *AllocationList) Items() []Allocation {
	return append([]Allocation(nil), al.allocations...)
}

// Buffer is an encoded argument living in module memory. Len is in code
// units: bytes for UTF-8 and byte slices, u16 units for UTF-16, elements
// for numeric slices and string arrays.
type Buffer struct {
	allocs *AllocationList
	alloc  Allocator
	Ptr    uint32
	Len    uint32
	freed  bool
}

func newBuffer(alloc Allocator, ptr, n uint32, allocs *AllocationList) *Buffer {
	return &Buffer{alloc: alloc, Ptr: ptr, Len: n, allocs: allocs}
}

// Free releases every allocation backing the buffer. Only the first call
// has an effect.
func (b *Buffer) Free() {
	if b == nil || b.freed {
		return
	}
	b.freed = true
	if b.allocs != nil {
		b.allocs.FreeAndRelease(b.alloc)
		b.allocs = nil
	}
}

// Freed reports whether Free has run.
func (b *Buffer) Freed() bool {
	return b.freed
}

// Leak drops the record of the backing allocations so Free becomes a no-op.
// Ownership of the memory passes to the module.
func (b *Buffer) Leak() {
	if b == nil || b.freed {
		return
	}
	b.freed = true
	if b.allocs != nil {
		b.allocs.Release()
		b.allocs = nil
	}
}

// Allocations returns the allocations backing the buffer, outer first.
func (b *Buffer) Allocations() []Allocation {
	if b.allocs == nil {
		return nil
	}
	return b.allocs.Items()
}

// Params returns the (ptr, len) pair as call parameters.
func (b *Buffer) Params() []uint64 {
	return []uint64{uint64(b.Ptr), uint64(b.Len)}
}
