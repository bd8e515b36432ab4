// Package testmodule is an in-process stand-in for a compiled module. It
// provides a growable linear memory, a bump allocator that records every
// allocation and free, diplomat-style write-sink exports and a registry of
// Go functions exposed as exports.
package testmodule

import (
	"context"
	"fmt"
	"sort"

	wasmffi "github.com/wippyai/wasm-ffi"
)

const (
	PageSize  = 65536
	heapStart = 1024
)

// Default export names of the allocator and write-sink surface.
const (
	AllocExport      = "diplomat_alloc"
	FreeExport       = "diplomat_free"
	SinkCreateExport = "diplomat_buffer_write_create"
	SinkBytesExport  = "diplomat_buffer_write_get_bytes"
	SinkLenExport    = "diplomat_buffer_write_len"
	SinkFreeExport   = "diplomat_buffer_write_destroy"
)

// Func is a Go implementation of an export.
type Func func(ctx context.Context, m *Module, params []uint64) ([]uint64, error)

// Allocation describes a live allocation.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

type sink struct {
	ptr uint32
	cap uint32
	len uint32
}

// Module implements wasmffi.Instance.
type Module struct {
	mem   *Memory
	funcs map[string]Func
	live  map[uint32]Allocation
	sinks map[uint32]*sink
	calls []string

	top       uint32
	allocs    int
	frees     int
	badFrees  []string
	closedErr error

	// FailAlloc makes every allocation fail with a null pointer.
	FailAlloc bool
	// NullSinkBytes makes the write-sink byte accessor return 0.
	NullSinkBytes bool
}

// New creates a module with one page of memory.
func New() *Module {
	m := &Module{
		mem:   &Memory{buf: make([]byte, PageSize)},
		funcs: make(map[string]Func),
		live:  make(map[uint32]Allocation),
		sinks: make(map[uint32]*sink),
		top:   heapStart,
	}
	m.registerBuiltins()
	return m
}

// Memory returns the live memory.
func (m *Module) Memory() wasmffi.Memory {
	return m.mem
}

// Mem returns the concrete memory for tests that need Grow.
func (m *Module) Mem() *Memory {
	return m.mem
}

// Export registers fn under name, replacing any previous export.
func (m *Module) Export(name string, fn Func) {
	m.funcs[name] = fn
}

// HasExport reports whether name is exported.
func (m *Module) HasExport(name string) bool {
	_, ok := m.funcs[name]
	return ok
}

// Exports returns all export names, sorted.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.funcs))
	for n := range m.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes an export.
func (m *Module) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if m.closedErr != nil {
		return nil, m.closedErr
	}
	fn, ok := m.funcs[name]
	if !ok {
		return nil, fmt.Errorf("testmodule: export %q not found", name)
	}
	m.calls = append(m.calls, name)
	return fn(ctx, m, params)
}

// Calls returns the names of the exports called so far, in order.
func (m *Module) Calls() []string {
	return append([]string(nil), m.calls...)
}

// Close makes every later call fail.
func (m *Module) Close() {
	m.closedErr = fmt.Errorf("testmodule: closed")
}

// Alloc allocates size bytes aligned to align, growing memory as needed.
func (m *Module) Alloc(size, align uint32) (uint32, error) {
	if m.FailAlloc {
		return 0, nil
	}
	if align == 0 {
		align = 1
	}
	ptr := (m.top + align - 1) &^ (align - 1)
	end := ptr + size
	if size == 0 {
		end = ptr + 1
	}
	for end > m.mem.Size() {
		m.mem.Grow(1)
	}
	m.top = end
	m.live[ptr] = Allocation{Ptr: ptr, Size: size, Align: align}
	m.allocs++
	return ptr, nil
}

// Free releases an allocation. Unknown pointers and size/align mismatches
// are recorded instead of panicking so tests can assert on them.
func (m *Module) Free(ptr, size, align uint32) {
	a, ok := m.live[ptr]
	if !ok {
		m.badFrees = append(m.badFrees, fmt.Sprintf("free of unknown ptr %d", ptr))
		return
	}
	if a.Size != size || a.Align != align {
		m.badFrees = append(m.badFrees, fmt.Sprintf("free ptr %d: size/align %d/%d, allocated %d/%d", ptr, size, align, a.Size, a.Align))
	}
	delete(m.live, ptr)
	m.frees++
}

// Live returns the allocations that have not been freed.
func (m *Module) Live() []Allocation {
	out := make([]Allocation, 0, len(m.live))
	for _, a := range m.live {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// IsLive reports whether ptr is a live allocation.
func (m *Module) IsLive(ptr uint32) bool {
	_, ok := m.live[ptr]
	return ok
}

// AllocCount returns the number of successful allocations.
func (m *Module) AllocCount() int { return m.allocs }

// FreeCount returns the number of successful frees.
func (m *Module) FreeCount() int { return m.frees }

// BadFrees returns double frees and mismatched frees.
func (m *Module) BadFrees() []string {
	return append([]string(nil), m.badFrees...)
}

// SinkWrite appends data to a write sink, reallocating its buffer in module
// memory like the module's own writeable does.
func (m *Module) SinkWrite(w uint32, data []byte) error {
	s, ok := m.sinks[w]
	if !ok {
		return fmt.Errorf("testmodule: unknown sink %d", w)
	}
	need := s.len + uint32(len(data))
	if need > s.cap {
		newCap := s.cap * 2
		if newCap < need {
			newCap = need
		}
		ptr, err := m.Alloc(newCap, 1)
		if err != nil || ptr == 0 {
			return fmt.Errorf("testmodule: sink realloc failed")
		}
		if s.len > 0 {
			old, _ := m.mem.Read(s.ptr, s.len)
			buf := append([]byte(nil), old...)
			_ = m.mem.Write(ptr, buf)
		}
		if s.cap > 0 {
			m.Free(s.ptr, s.cap, 1)
		}
		s.ptr, s.cap = ptr, newCap
	}
	if err := m.mem.Write(s.ptr+s.len, data); err != nil {
		return err
	}
	s.len = need
	return nil
}

// SinkCount returns the number of undestroyed sinks.
func (m *Module) SinkCount() int {
	return len(m.sinks)
}

// Bytes copies n bytes at ptr.
func (m *Module) Bytes(ptr, n uint32) []byte {
	b, err := m.mem.Read(ptr, n)
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), b...)
}

func (m *Module) registerBuiltins() {
	m.funcs[AllocExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		ptr, err := m.Alloc(uint32(p[0]), uint32(p[1]))
		return []uint64{uint64(ptr)}, err
	}
	m.funcs[FreeExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		m.Free(uint32(p[0]), uint32(p[1]), uint32(p[2]))
		return nil, nil
	}
	m.funcs[SinkCreateExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		h, err := m.Alloc(12, 4)
		if err != nil || h == 0 {
			return []uint64{0}, err
		}
		s := &sink{}
		if c := uint32(p[0]); c > 0 {
			ptr, err := m.Alloc(c, 1)
			if err != nil {
				return []uint64{0}, err
			}
			s.ptr, s.cap = ptr, c
		}
		m.sinks[h] = s
		return []uint64{uint64(h)}, nil
	}
	m.funcs[SinkBytesExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		s, ok := m.sinks[uint32(p[0])]
		if !ok {
			return nil, fmt.Errorf("testmodule: unknown sink %d", p[0])
		}
		if m.NullSinkBytes {
			return []uint64{0}, nil
		}
		if s.cap == 0 {
			return []uint64{1}, nil // dangling, never dereferenced
		}
		return []uint64{uint64(s.ptr)}, nil
	}
	m.funcs[SinkLenExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		s, ok := m.sinks[uint32(p[0])]
		if !ok {
			return nil, fmt.Errorf("testmodule: unknown sink %d", p[0])
		}
		return []uint64{uint64(s.len)}, nil
	}
	m.funcs[SinkFreeExport] = func(_ context.Context, m *Module, p []uint64) ([]uint64, error) {
		h := uint32(p[0])
		s, ok := m.sinks[h]
		if !ok {
			m.badFrees = append(m.badFrees, fmt.Sprintf("destroy of unknown sink %d", h))
			return nil, nil
		}
		if s.cap > 0 {
			m.Free(s.ptr, s.cap, 1)
		}
		m.Free(h, 12, 4)
		delete(m.sinks, h)
		return nil, nil
	}
}

var _ wasmffi.Instance = (*Module)(nil)
