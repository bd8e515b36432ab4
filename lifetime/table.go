package lifetime

import "sync"

// ID identifies a registration. The low 32 bits are a slot index, the high
// 32 bits the slot's generation, so an ID queued by the collector never
// matches a later registration that reuses the slot.
type ID uint64

func makeID(slot, gen uint32) ID { return ID(uint64(gen)<<32 | uint64(slot)) }

func (id ID) slot() uint32 { return uint32(id) }
func (id ID) gen() uint32  { return uint32(id >> 32) }

type entry struct {
	value   any
	release func()
	gen     uint32
	valid   bool
}

// table stores pending releases of live registrations.
type table struct {
	entries  []entry
	freeList []uint32
	mu       sync.Mutex
	live     int
}

func newTable() *table {
	return &table{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func (t *table) insert(value any, release func()) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live++
	if n := len(t.freeList); n > 0 {
		slot := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		e := &t.entries[slot-1]
		e.gen++
		e.value, e.release, e.valid = value, release, true
		return makeID(slot, e.gen)
	}

	t.entries = append(t.entries, entry{value: value, release: release, valid: true})
	return makeID(uint32(len(t.entries)), 0)
}

// remove takes the entry out of the table. Only the first remove of an ID
// succeeds.
func (t *table) remove(id ID) (entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := id.slot()
	if slot == 0 || int(slot) > len(t.entries) {
		return entry{}, false
	}
	e := &t.entries[slot-1]
	if !e.valid || e.gen != id.gen() {
		return entry{}, false
	}
	out := *e
	e.value, e.release, e.valid = nil, nil, false
	t.freeList = append(t.freeList, slot)
	t.live--
	return out, true
}

func (t *table) ids() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []ID
	for i, e := range t.entries {
		if e.valid {
			out = append(out, makeID(uint32(i+1), e.gen))
		}
	}
	return out
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}
