// Package runtime is the high-level entry point: it loads a core module on
// the wazero engine and hands back instances wired to a marshalling bridge.
//
// # Quick Start
//
//	ctx := context.Background()
//	m, err := manifest.Load("icu.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(ctx, runtime.WithManifest(m), runtime.WithWASI(true))
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
//	s := inst.Bridge().Begin("locale_from_string")
//	defer s.End()
//
// # Manifest
//
// The manifest names the allocator and write-sink exports, the enum tables
// and the lifetime policy of every argument. Without one the diplomat
// defaults apply and every argument is freed after its call.
//
// Instantiate checks that every export the manifest refers to exists, so a
// mismatched module fails before the first call.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is not; create
// one per goroutine.
package runtime
