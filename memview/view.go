package memview

import (
	"math"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// PtrSize is the size of a pointer-sized word in wasm32 linear memory.
const PtrSize = 4

// View reads and writes primitive values at byte offsets of a live memory.
type View struct {
	mem wasmffi.Memory
}

// New returns a view over mem. mem must be the live memory object of the
// instance, not a copy of its contents.
func New(mem wasmffi.Memory) View {
	return View{mem: mem}
}

// Memory returns the underlying memory object.
func (v View) Memory() wasmffi.Memory {
	return v.mem
}

func readErr(offset, n uint32, err error) error {
	return errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
		Detail("offset %d length %d", offset, n).
		Cause(err).
		Build()
}

func writeErr(offset, n uint32, err error) error {
	return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
		Detail("offset %d length %d", offset, n).
		Cause(err).
		Build()
}

func (v View) read(offset, n uint32) ([]byte, error) {
	if v.mem == nil {
		return nil, errors.NotInitialized(errors.PhaseDecode, "memory")
	}
	b, err := v.mem.Read(offset, n)
	if err != nil {
		return nil, readErr(offset, n, err)
	}
	return b, nil
}

func (v View) write(offset uint32, data []byte) error {
	if v.mem == nil {
		return errors.NotInitialized(errors.PhaseEncode, "memory")
	}
	if err := v.mem.Write(offset, data); err != nil {
		return writeErr(offset, uint32(len(data)), err)
	}
	return nil
}

type word interface {
	uint8 | uint16 | uint32 | uint64
}

// load reads one little-endian word of n bytes through the memory's own
// accessor. The caller checks for a nil memory before taking the method.
func load[T word](offset, n uint32, get func(uint32) (T, error)) (T, error) {
	val, err := get(offset)
	if err != nil {
		return 0, readErr(offset, n, err)
	}
	return val, nil
}

func store[T word](offset, n uint32, val T, put func(uint32, T) error) error {
	if err := put(offset, val); err != nil {
		return writeErr(offset, n, err)
	}
	return nil
}

// Bytes returns a copy of n bytes at offset.
func (v View) Bytes(offset, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	b, err := v.read(offset, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Alias returns n bytes at offset without copying. The slice is only valid
// until the next call into the module.
func (v View) Alias(offset, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	return v.read(offset, n)
}

// PutBytes copies data into memory at offset.
func (v View) PutBytes(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return v.write(offset, data)
}

func (v View) U8(offset uint32) (uint8, error) {
	if v.mem == nil {
		return 0, errors.NotInitialized(errors.PhaseDecode, "memory")
	}
	return load(offset, 1, v.mem.ReadU8)
}

func (v View) I8(offset uint32) (int8, error) {
	u, err := v.U8(offset)
	return int8(u), err
}

// Bool reads a one-byte flag. Any non-zero value is true.
func (v View) Bool(offset uint32) (bool, error) {
	u, err := v.U8(offset)
	return u != 0, err
}

func (v View) U16(offset uint32) (uint16, error) {
	if v.mem == nil {
		return 0, errors.NotInitialized(errors.PhaseDecode, "memory")
	}
	return load(offset, 2, v.mem.ReadU16)
}

func (v View) I16(offset uint32) (int16, error) {
	u, err := v.U16(offset)
	return int16(u), err
}

func (v View) U32(offset uint32) (uint32, error) {
	if v.mem == nil {
		return 0, errors.NotInitialized(errors.PhaseDecode, "memory")
	}
	return load(offset, 4, v.mem.ReadU32)
}

func (v View) I32(offset uint32) (int32, error) {
	u, err := v.U32(offset)
	return int32(u), err
}

func (v View) U64(offset uint32) (uint64, error) {
	if v.mem == nil {
		return 0, errors.NotInitialized(errors.PhaseDecode, "memory")
	}
	return load(offset, 8, v.mem.ReadU64)
}

func (v View) I64(offset uint32) (int64, error) {
	u, err := v.U64(offset)
	return int64(u), err
}

func (v View) F32(offset uint32) (float32, error) {
	u, err := v.U32(offset)
	return math.Float32frombits(u), err
}

func (v View) F64(offset uint32) (float64, error) {
	u, err := v.U64(offset)
	return math.Float64frombits(u), err
}

// Ptr reads a pointer-sized word.
func (v View) Ptr(offset uint32) (uint32, error) {
	return v.U32(offset)
}

func (v View) PutU8(offset uint32, val uint8) error {
	if v.mem == nil {
		return errors.NotInitialized(errors.PhaseEncode, "memory")
	}
	return store(offset, 1, val, v.mem.WriteU8)
}

func (v View) PutI8(offset uint32, val int8) error {
	return v.PutU8(offset, uint8(val))
}

func (v View) PutBool(offset uint32, val bool) error {
	if val {
		return v.PutU8(offset, 1)
	}
	return v.PutU8(offset, 0)
}

func (v View) PutU16(offset uint32, val uint16) error {
	if v.mem == nil {
		return errors.NotInitialized(errors.PhaseEncode, "memory")
	}
	return store(offset, 2, val, v.mem.WriteU16)
}

func (v View) PutI16(offset uint32, val int16) error {
	return v.PutU16(offset, uint16(val))
}

func (v View) PutU32(offset uint32, val uint32) error {
	if v.mem == nil {
		return errors.NotInitialized(errors.PhaseEncode, "memory")
	}
	return store(offset, 4, val, v.mem.WriteU32)
}

func (v View) PutI32(offset uint32, val int32) error {
	return v.PutU32(offset, uint32(val))
}

func (v View) PutU64(offset uint32, val uint64) error {
	if v.mem == nil {
		return errors.NotInitialized(errors.PhaseEncode, "memory")
	}
	return store(offset, 8, val, v.mem.WriteU64)
}

func (v View) PutI64(offset uint32, val int64) error {
	return v.PutU64(offset, uint64(val))
}

func (v View) PutF32(offset uint32, val float32) error {
	return v.PutU32(offset, math.Float32bits(val))
}

func (v View) PutF64(offset uint32, val float64) error {
	return v.PutU64(offset, math.Float64bits(val))
}

// PutPtr writes a pointer-sized word.
func (v View) PutPtr(offset uint32, val uint32) error {
	return v.PutU32(offset, val)
}
