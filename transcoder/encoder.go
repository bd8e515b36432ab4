package transcoder

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/memview"
	"github.com/wippyai/wasm-ffi/transcoder/internal/abi"
)

// Element is the set of Go types a numeric slice may hold.
type Element interface {
	~bool | ~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 |
		~uint64 | ~int64 | ~float32 | ~float64
}

// Encoder copies Go values into freshly allocated module memory.
type Encoder struct {
	alloc Allocator
	mem   Memory
}

func NewEncoder(alloc Allocator, mem Memory) *Encoder {
	return &Encoder{alloc: alloc, mem: mem}
}

// Allocator returns the allocator buffers are freed through.
func (e *Encoder) Allocator() Allocator {
	return e.alloc
}

func safeMul(a, b uint32) (uint32, bool) {
	return abi.SafeMulU32(a, b)
}

// allocate reserves size bytes. Zero-size requests return the dangling
// pointer and record nothing.
func (e *Encoder) allocate(allocs *AllocationList, size, align uint32) (uint32, error) {
	if !abi.ValidAlign(align) {
		return 0, errors.InvalidInput(errors.PhaseEncode, "alignment "+strconv.FormatUint(uint64(align), 10)+" is not a power of two")
	}
	if size == 0 {
		return abi.DanglingPtr(align), nil
	}
	if size > abi.MaxAlloc {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("allocation of %d bytes exceeds limit %d", size, abi.MaxAlloc).
			Build()
	}
	ptr, err := e.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("alloc(%d, %d)", size, align).
			Cause(err).
			Build()
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
	}
	allocs.Add(ptr, size, align)
	return ptr, nil
}

// place allocates len(data) bytes and copies data in, asserting the staged
// byte count matches the precomputed size.
func (e *Encoder) place(data []byte, want, align uint32) (*Buffer, uint32, error) {
	if uint32(len(data)) != want {
		return nil, 0, errors.LengthMismatch(errors.PhaseEncode, int(want), len(data))
	}
	allocs := NewAllocationList()
	ptr, err := e.allocate(allocs, want, align)
	if err != nil {
		allocs.Release()
		return nil, 0, err
	}
	if err := memview.New(e.mem).PutBytes(ptr, data); err != nil {
		allocs.FreeAndRelease(e.alloc)
		return nil, 0, err
	}
	return newBuffer(e.alloc, ptr, 0, allocs), ptr, nil
}

// EncodeText writes s in enc. The length is computed first and the encoded
// bytes must match it exactly.
func (e *Encoder) EncodeText(s string, enc Encoding) (*Buffer, error) {
	units := EncodedLen(s, enc)
	size, ok := safeMul(units, enc.Unit())
	if !ok || units > abi.MaxStringSize {
		return nil, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("string of %d units too large", units).
			Build()
	}

	staged := getBytes()
	defer putBytes(staged)
	data, err := encodeText((*staged)[:0], s, enc)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "encode "+enc.String())
	}
	*staged = data

	buf, _, err := e.place(data, size, enc.Unit())
	if err != nil {
		return nil, err
	}
	buf.Len = units
	return buf, nil
}

// EncodeUTF16 writes UTF-16 code units verbatim, unpaired surrogates included.
func (e *Encoder) EncodeUTF16(units []uint16) (*Buffer, error) {
	n := uint32(len(units))
	data := make([]byte, 0, 2*len(units))
	for _, u := range units {
		data = binary.LittleEndian.AppendUint16(data, u)
	}
	buf, _, err := e.place(data, 2*n, 2)
	if err != nil {
		return nil, err
	}
	buf.Len = n
	return buf, nil
}

// EncodeBytes copies b.
func (e *Encoder) EncodeBytes(b []byte) (*Buffer, error) {
	buf, _, err := e.place(b, uint32(len(b)), 1)
	if err != nil {
		return nil, err
	}
	buf.Len = uint32(len(b))
	return buf, nil
}

// ElementOf returns the memory element kind of T.
func ElementOf[T Element]() memview.Element {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Bool:
		return memview.ElemBool
	case reflect.Uint8:
		return memview.ElemU8
	case reflect.Int8:
		return memview.ElemI8
	case reflect.Uint16:
		return memview.ElemU16
	case reflect.Int16:
		return memview.ElemI16
	case reflect.Uint32:
		return memview.ElemU32
	case reflect.Int32:
		return memview.ElemI32
	case reflect.Uint64:
		return memview.ElemU64
	case reflect.Int64:
		return memview.ElemI64
	case reflect.Float32:
		return memview.ElemF32
	default:
		return memview.ElemF64
	}
}

func appendElement[T Element](dst []byte, elem memview.Element, v T) []byte {
	rv := reflect.ValueOf(v)
	switch elem {
	case memview.ElemBool:
		if rv.Bool() {
			return append(dst, 1)
		}
		return append(dst, 0)
	case memview.ElemU8:
		return append(dst, uint8(rv.Uint()))
	case memview.ElemI8:
		return append(dst, uint8(rv.Int()))
	case memview.ElemU16:
		return binary.LittleEndian.AppendUint16(dst, uint16(rv.Uint()))
	case memview.ElemI16:
		return binary.LittleEndian.AppendUint16(dst, uint16(rv.Int()))
	case memview.ElemU32:
		return binary.LittleEndian.AppendUint32(dst, uint32(rv.Uint()))
	case memview.ElemI32:
		return binary.LittleEndian.AppendUint32(dst, uint32(rv.Int()))
	case memview.ElemU64:
		return binary.LittleEndian.AppendUint64(dst, rv.Uint())
	case memview.ElemI64:
		return binary.LittleEndian.AppendUint64(dst, uint64(rv.Int()))
	case memview.ElemF32:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(rv.Float())))
	default:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(rv.Float()))
	}
}

// EncodeSlice writes list with the width and alignment of its element type.
func EncodeSlice[T Element](e *Encoder, list []T) (*Buffer, error) {
	elem := ElementOf[T]()
	n := uint32(len(list))
	size, ok := safeMul(n, elem.Size())
	if !ok || n > abi.MaxListLength {
		return nil, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("slice of %d %s too large", n, elem).
			Build()
	}

	staged := getBytes()
	defer putBytes(staged)
	data := (*staged)[:0]
	for _, v := range list {
		data = appendElement(data, elem, v)
	}
	*staged = data

	buf, _, err := e.place(data, size, elem.Align())
	if err != nil {
		return nil, err
	}
	buf.Len = n
	return buf, nil
}

// DecodeSlice reads n elements of T at ptr.
func DecodeSlice[T Element](mem Memory, ptr, n uint32) ([]T, error) {
	elem := ElementOf[T]()
	v := memview.New(mem)
	out := make([]T, n)
	rv := reflect.ValueOf(out)
	for i := uint32(0); i < n; i++ {
		val, err := v.Load(elem, ptr+i*elem.Size())
		if err != nil {
			return nil, err
		}
		rv.Index(int(i)).Set(reflect.ValueOf(val).Convert(rv.Type().Elem()))
	}
	return out, nil
}

// EncodeStringArray writes an outer array of (ptr, len) pairs, one per
// string, each string in its own allocation. Freeing the result releases
// the outer array and every inner string.
func (e *Encoder) EncodeStringArray(list []string, enc Encoding) (*Buffer, error) {
	n := uint32(len(list))
	size, ok := safeMul(n, 2*memview.PtrSize)
	if !ok || n > abi.MaxListLength {
		return nil, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("string array of %d too large", n).
			Build()
	}

	allocs := NewAllocationList()
	outer, err := e.allocate(allocs, size, memview.PtrSize)
	if err != nil {
		allocs.Release()
		return nil, err
	}

	v := memview.New(e.mem)
	for i, s := range list {
		inner, err := e.EncodeText(s, enc)
		if err != nil {
			allocs.FreeAndRelease(e.alloc)
			return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(strconv.Itoa(i)).
				Cause(err).
				Build()
		}
		allocs.Append(inner.allocs)
		inner.Leak()

		slot := outer + uint32(i)*2*memview.PtrSize
		if err := v.PutPtr(slot, inner.Ptr); err != nil {
			allocs.FreeAndRelease(e.alloc)
			return nil, err
		}
		if err := v.PutU32(slot+memview.PtrSize, inner.Len); err != nil {
			allocs.FreeAndRelease(e.alloc)
			return nil, err
		}
	}

	return newBuffer(e.alloc, outer, n, allocs), nil
}
