package memview

import "fmt"

// Element identifies the primitive kind of an array element or struct field.
type Element uint8

const (
	ElemBool Element = iota
	ElemU8
	ElemI8
	ElemU16
	ElemI16
	ElemU32
	ElemI32
	ElemU64
	ElemI64
	ElemF32
	ElemF64
	ElemPtr
)

// Size returns the element width in bytes.
func (e Element) Size() uint32 {
	switch e {
	case ElemBool, ElemU8, ElemI8:
		return 1
	case ElemU16, ElemI16:
		return 2
	case ElemU32, ElemI32, ElemF32, ElemPtr:
		return 4
	case ElemU64, ElemI64, ElemF64:
		return 8
	}
	return 0
}

// Align returns the natural alignment, which equals the size for primitives.
func (e Element) Align() uint32 {
	return e.Size()
}

func (e Element) String() string {
	switch e {
	case ElemBool:
		return "bool"
	case ElemU8:
		return "u8"
	case ElemI8:
		return "i8"
	case ElemU16:
		return "u16"
	case ElemI16:
		return "i16"
	case ElemU32:
		return "u32"
	case ElemI32:
		return "i32"
	case ElemU64:
		return "u64"
	case ElemI64:
		return "i64"
	case ElemF32:
		return "f32"
	case ElemF64:
		return "f64"
	case ElemPtr:
		return "ptr"
	}
	return fmt.Sprintf("element(%d)", uint8(e))
}

// Load reads one element at offset and returns it widened to its Go type:
// bool, uint8, int8, uint16, int16, uint32, int32, uint64, int64, float32
// or float64. Pointers are returned as uint32.
func (v View) Load(e Element, offset uint32) (any, error) {
	switch e {
	case ElemBool:
		return v.Bool(offset)
	case ElemU8:
		return v.U8(offset)
	case ElemI8:
		return v.I8(offset)
	case ElemU16:
		return v.U16(offset)
	case ElemI16:
		return v.I16(offset)
	case ElemU32, ElemPtr:
		return v.U32(offset)
	case ElemI32:
		return v.I32(offset)
	case ElemU64:
		return v.U64(offset)
	case ElemI64:
		return v.I64(offset)
	case ElemF32:
		return v.F32(offset)
	case ElemF64:
		return v.F64(offset)
	}
	return nil, fmt.Errorf("memview: unknown element %v", e)
}
