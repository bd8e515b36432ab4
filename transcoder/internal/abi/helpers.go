package abi

import (
	"math"
	"reflect"
)

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
	MaxAlloc      = 1 << 30 // 1 GB max single allocation
)

// ValidAlign reports whether align is a non-zero power of two.
func ValidAlign(align uint32) bool {
	return align != 0 && align&(align-1) == 0
}

// DanglingPtr is the non-null, well-aligned pointer the module uses for
// zero-sized allocations. It is never dereferenced or freed.
func DanglingPtr(align uint32) uint32 {
	if align == 0 {
		return 1
	}
	return align
}

// EnumSize is the size of a C-like enum discriminant. Enums cross the
// boundary as i32 regardless of case count.
const EnumSize = 4
