// Package wasmffi is a host-side marshalling and ownership bridge for
// WebAssembly modules that expose a flat, diplomat-style ABI.
//
// The module is reached only through its linear memory and numeric exports:
// an allocator pair (alloc/free), growable write sinks for variable-length
// output, and one export per operation taking scalars and (ptr, len) pairs.
// This library moves rich Go values across that boundary and decides who
// frees every buffer that crosses it.
//
// # Architecture Overview
//
//	wasmffi/             Root package with Memory, Allocator and Instance interfaces
//	├── memview/         Typed little-endian reads/writes over live linear memory
//	├── transcoder/      Text/slice encoding, layouts, enum tables, result/option/struct decoding
//	├── writesink/       Module-owned growable output buffers
//	├── lifetime/        Ownership policies, GC-tied disposal, policy tables
//	├── handle/          Opaque handle wrapper with keep-alive edges
//	├── manifest/        YAML operation manifest (policies, error tables, export names)
//	├── bridge/          Scoped calls tying the pieces to one instance
//	├── engine/          wazero back-end
//	├── runtime/         High-level API: Runtime → Module → Instance
//	├── bindings/icu/    Sample generated-style wrappers
//	├── cmd/ffi-inspect/ Module and manifest inspector (CLI + TUI)
//	└── errors/          Structured error types
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.WithManifest(m))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadWASM(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	loc, err := icu.LocaleFromString(ctx, inst.Bridge(), "en-US")
//
// # Ownership
//
// Every buffer written into module memory gets one of four policies:
// borrowed (never freed by the host), free-after-call (freed as soon as the
// export returns), leak (the module keeps a 'static reference) or GC-tied
// (freed once a specific Go wrapper becomes unreachable). Policies are
// declared per operation and argument in the manifest rather than at call
// sites.
//
// # Thread Safety
//
// An Instance and everything derived from it is single-threaded. Callers
// running on multiple goroutines must serialize calls into the same
// instance. GC-tied releases run on the runtime's cleanup goroutine at an
// unspecified time and must never be relied upon for timely release.
package wasmffi
