// Package transcoder moves values across the module boundary.
//
// Arguments are encoded into freshly allocated module memory by an Encoder
// and returned as a *Buffer that owns its allocations. Results are read
// back by a Decoder from receive buffers the caller allocated.
//
//	┌────────────────────────────────────────────────────────────┐
//	│ Go value → [Encoder] → alloc + write → (ptr, len) → export │
//	│ Go value ← [Decoder] ← read ← receive buffer  ← export     │
//	└────────────────────────────────────────────────────────────┘
//
// # Memory Layout
//
// Layouts are computed from WIT type descriptions under C rules:
//
//	Type            Size            Alignment
//	─────────────────────────────────────────
//	bool/u8/s8      1               1
//	u16/s16         2               2
//	u32/s32/f32     4               4
//	u64/s64/f64     8               8
//	enum            4               4 (i32)
//	handle          4               4
//	string/list     8               4 (ptr + len)
//	record          sum + padding   max field align
//	result<T,E>     payload + 1     payload align (flag after payload)
//	option<T>       payload + 1     payload align
//	option<handle>  4               4 (0 = absent)
//
// # Text
//
// Strings are encoded as UTF-8 or UTF-16LE. The encoded length is computed
// before allocating and the written byte count must equal it; a mismatch is
// a protocol violation. Lengths are reported in code units.
//
// # Ownership
//
// Every Buffer records its allocations. Free releases them once; later
// calls do nothing. Leak hands ownership to the module. Zero-length input
// is passed as the dangling pointer for its alignment and never freed.
//
// # Errors
//
// A result's error branch decodes to *errors.DomainError carrying only the
// variant name. Ordinals outside an EnumTable, flag bytes other than 0 or 1
// and table drift are protocol violations.
package transcoder
