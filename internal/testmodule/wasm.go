package testmodule

// Binary is a hand-assembled core module for engine tests. It exports one
// page of memory and:
//
//	diplomat_alloc(size, align) -> ptr   bump allocator from 1024, 8-byte aligned
//	diplomat_free(ptr, size, align)      counts calls
//	free_count() -> n
//	first_byte(ptr, len) -> b
//	make_result(rb, ok)                  writes Result<u32, i32>: ok=1 -> 42, ok=0 -> err 2
//	trap()                               unreachable
//	diplomat_buffer_write_create(cap) -> w
//	diplomat_buffer_write_get_bytes(w) -> ptr
//	diplomat_buffer_write_len(w) -> n
//	diplomat_buffer_write_destroy(w)     frees data and handle
//	write_hello(w)                       writes "hi" into the sink
//
// The heap starts at the same offset as Module's allocator.
func Binary() []byte {
	return wasmBinary
}

var wasmBinary = assemble()

const (
	i32 = 0x7f

	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opSelect      = 0x1b
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opI32Load8U   = 0x2d
	opI32Store    = 0x36
	opI32Store8   = 0x3a
	opI32Store16  = 0x3b
	opI32Const    = 0x41
	opI32Add      = 0x6a
	opI32And      = 0x71

	secType   = 1
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secCode   = 10

	kindFunc   = 0
	kindMemory = 2
)

type funcType struct {
	params, results []byte
}

type wasmFunc struct {
	name   string
	typ    int
	locals uint32
	code   []byte
}

var wasmTypes = []funcType{
	{[]byte{i32, i32}, []byte{i32}}, // 0
	{[]byte{i32, i32, i32}, nil},    // 1
	{nil, []byte{i32}},              // 2
	{[]byte{i32, i32}, nil},         // 3
	{nil, nil},                      // 4
	{[]byte{i32}, []byte{i32}},      // 5
	{[]byte{i32}, nil},              // 6
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(v)...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var wasmFuncs = []wasmFunc{
	{"diplomat_alloc", 0, 1, cat(
		[]byte{opGlobalGet, 0}, i32Const(7), []byte{opI32Add},
		i32Const(-8), []byte{opI32And},
		[]byte{opLocalTee, 2, opLocalGet, 0, opI32Add, opGlobalSet, 0},
		[]byte{opLocalGet, 2},
	)},
	{"diplomat_free", 1, 0, cat(
		[]byte{opGlobalGet, 1}, i32Const(1), []byte{opI32Add, opGlobalSet, 1},
	)},
	{"free_count", 2, 0, []byte{opGlobalGet, 1}},
	{"first_byte", 0, 0, []byte{opLocalGet, 0, opI32Load8U, 0, 0}},
	{"make_result", 3, 0, cat(
		[]byte{opLocalGet, 0}, i32Const(42), i32Const(2),
		[]byte{opLocalGet, 1, opSelect, opI32Store, 2, 0},
		[]byte{opLocalGet, 0, opLocalGet, 1, opI32Store8, 0, 4},
	)},
	{"trap", 4, 0, []byte{opUnreachable}},
	{"diplomat_buffer_write_create", 5, 1, cat(
		i32Const(12), i32Const(4), []byte{opCall, 0, opLocalSet, 1},
		[]byte{opLocalGet, 0}, i32Const(16), []byte{opI32Add, opLocalSet, 0},
		[]byte{opLocalGet, 1, opLocalGet, 0}, i32Const(1), []byte{opCall, 0, opI32Store, 2, 0},
		[]byte{opLocalGet, 1}, i32Const(0), []byte{opI32Store, 2, 4},
		[]byte{opLocalGet, 1, opLocalGet, 0, opI32Store, 2, 8},
		[]byte{opLocalGet, 1},
	)},
	{"diplomat_buffer_write_get_bytes", 5, 0, []byte{opLocalGet, 0, opI32Load, 2, 0}},
	{"diplomat_buffer_write_len", 5, 0, []byte{opLocalGet, 0, opI32Load, 2, 4}},
	{"diplomat_buffer_write_destroy", 6, 0, cat(
		[]byte{opLocalGet, 0, opI32Load, 2, 0, opLocalGet, 0, opI32Load, 2, 8}, i32Const(1),
		[]byte{opCall, 1},
		[]byte{opLocalGet, 0}, i32Const(12), i32Const(4), []byte{opCall, 1},
	)},
	{"write_hello", 6, 0, cat(
		[]byte{opLocalGet, 0, opI32Load, 2, 0}, i32Const('h'|'i'<<8), []byte{opI32Store16, 1, 0},
		[]byte{opLocalGet, 0}, i32Const(2), []byte{opI32Store, 2, 4},
	)},
}

func assemble() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var sec []byte
	sec = append(sec, uleb(uint32(len(wasmTypes)))...)
	for _, t := range wasmTypes {
		sec = append(sec, 0x60)
		sec = append(sec, vec(t.params)...)
		sec = append(sec, vec(t.results)...)
	}
	out = append(out, section(secType, sec)...)

	sec = uleb(uint32(len(wasmFuncs)))
	for _, f := range wasmFuncs {
		sec = append(sec, uleb(uint32(f.typ))...)
	}
	out = append(out, section(secFunc, sec)...)

	out = append(out, section(secMemory, []byte{1, 0x00, 1})...)

	sec = []byte{2}
	sec = append(sec, cat([]byte{i32, 1}, i32Const(heapStart), []byte{opEnd})...)
	sec = append(sec, cat([]byte{i32, 1}, i32Const(0), []byte{opEnd})...)
	out = append(out, section(secGlobal, sec)...)

	sec = uleb(uint32(len(wasmFuncs) + 1))
	sec = append(sec, name("memory")...)
	sec = append(sec, kindMemory, 0)
	for i, f := range wasmFuncs {
		sec = append(sec, name(f.name)...)
		sec = append(sec, kindFunc)
		sec = append(sec, uleb(uint32(i))...)
	}
	out = append(out, section(secExport, sec)...)

	sec = uleb(uint32(len(wasmFuncs)))
	for _, f := range wasmFuncs {
		var body []byte
		if f.locals > 0 {
			body = append(body, 1)
			body = append(body, uleb(f.locals)...)
			body = append(body, i32)
		} else {
			body = append(body, 0)
		}
		body = append(body, f.code...)
		body = append(body, opEnd)
		sec = append(sec, uleb(uint32(len(body)))...)
		sec = append(sec, body...)
	}
	out = append(out, section(secCode, sec)...)
	return out
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func vec(b []byte) []byte {
	return append(uleb(uint32(len(b))), b...)
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
