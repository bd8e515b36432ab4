// Package memview provides typed access to a module's linear memory.
//
// A View never caches the underlying byte slice. Every read and write goes
// through the live Memory object, so a View created before a call that grew
// memory keeps working afterwards. Values are little-endian and read at
// exactly their declared width.
//
//	Kind      Size  Align
//	─────────────────────
//	bool      1     1
//	u8/i8     1     1
//	u16/i16   2     2
//	u32/i32   4     4
//	f32       4     4
//	u64/i64   8     8
//	f64       8     8
//	ptr       4     4   (wasm32)
package memview
