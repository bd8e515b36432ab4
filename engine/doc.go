// Package engine runs core WebAssembly modules on wazero and presents them
// to the marshalling layer as a wasmffi.Instance.
//
// # Architecture
//
//	WazeroEngine   - owns the wazero runtime and optional WASI host module
//	WazeroModule   - a compiled core module, can create instances
//	WazeroInstance - a running module: allocator, live memory and export calls
//
// # Allocator binding
//
// The allocator exports are looked up by name at instantiation
// (diplomat_alloc and diplomat_free unless InstanceConfig overrides them).
// Their signature is detected from the parameter count:
//
//	alloc(size)                     1 param
//	alloc(size, align)              2 params
//	cabi_realloc(0, 0, align, size) 4 params
//	free(ptr)                       1 param
//	free(ptr, size, align)          3 params
//
// # Memory
//
// WazeroInstance.Memory returns a wrapper over wazero's api.Memory, which
// always addresses the current backing buffer. Byte slices returned by Read
// alias linear memory and are invalidated by the next call that grows it.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use. WazeroInstance is
// not; use one instance per goroutine.
package engine
