// Package layout computes size, alignment and field offsets of WIT-described
// types under the C layout rules the module's bindings use.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records: fields laid out in declared order with padding for alignment,
//     size rounded to the largest field alignment
//   - Enums: i32 discriminant
//   - Strings/Lists: (pointer, length) pair, content elsewhere
//   - Handles: one pointer word
//   - Results: payload union at offset 0, is-ok byte right after it, size
//     payload+1 with no trailing padding
//   - Options: like a result without an error payload, except options of a
//     handle, which are one pointer word where 0 means absent
//
// This package is internal to the transcoder.
package layout
