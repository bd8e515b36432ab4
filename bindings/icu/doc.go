// Package icu is a sample binding for an ICU4X module compiled to WASM with
// the diplomat ABI. Every wrapper goes through a bridge.Bridge, so argument
// buffers, receive buffers and write sinks are released by the manifest's
// policies and every owned object is destroyed exactly once.
//
// The embedded manifest (icu.yaml) names the exports and enum tables:
//
//	rt, _ := runtime.New(ctx, runtime.WithManifest(icu.MustManifest()), runtime.WithWASI(true))
//	mod, _ := rt.LoadFile(ctx, "icu4x.wasm")
//	inst, _ := mod.Instantiate(ctx)
//	lib := icu.New(inst.Bridge())
//
//	loc, err := lib.LocaleFromString(ctx, "en-US")
//
// Wrappers are released when closed or, failing that, after the garbage
// collector finds them unreachable. BidiInfo keeps the text it was built
// from alive, and a BidiParagraph keeps its BidiInfo alive.
package icu
