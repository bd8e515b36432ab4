package icu

import (
	_ "embed"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/handle"
	"github.com/wippyai/wasm-ffi/manifest"
)

//go:embed icu.yaml
var manifestYAML []byte

var loadManifest = sync.OnceValues(func() (*manifest.Manifest, error) {
	return manifest.Parse(manifestYAML)
})

// Manifest returns the binding's embedded manifest.
func Manifest() (*manifest.Manifest, error) {
	return loadManifest()
}

// MustManifest is like Manifest but panics on error.
func MustManifest() *manifest.Manifest {
	m, err := Manifest()
	if err != nil {
		panic(err)
	}
	return m
}

// ManifestYAML returns the raw embedded manifest.
func ManifestYAML() []byte {
	return append([]byte(nil), manifestYAML...)
}

// Lib exposes the ICU4X objects of one instance.
type Lib struct {
	b *bridge.Bridge
}

// New wraps a bridge created with the binding's manifest.
func New(b *bridge.Bridge) *Lib {
	return &Lib{b: b}
}

// Bridge returns the underlying bridge.
func (l *Lib) Bridge() *bridge.Bridge {
	return l.b
}

// object is the common part of every wrapper.
type object struct {
	lib *Lib
	obj *handle.Opaque
	typ string
}

func (l *Lib) own(h uint32, typ string, edges ...any) (object, error) {
	if h == 0 {
		return object{}, errors.OutOfMemory(errors.PhaseCall, typ)
	}
	return object{lib: l, obj: l.b.Handle(h, true, typ+".destroy", edges...), typ: typ}, nil
}

func (o object) ptr() (uint32, error) {
	if o.obj == nil {
		return 0, errors.NotInitialized(errors.PhaseCall, o.typ)
	}
	h := o.obj.Handle()
	if h == 0 {
		return 0, errors.Closed(errors.PhaseCall, o.typ)
	}
	return h, nil
}

// Close destroys the object now. Later calls do nothing.
func (o object) Close() {
	if o.obj != nil {
		o.obj.Close()
	}
}

// Closed reports whether Close has run.
func (o object) Closed() bool {
	return o.obj == nil || o.obj.Closed()
}

// Opaque returns the handle wrapper.
func (o object) Opaque() *handle.Opaque {
	return o.obj
}

func errorEnum(name string) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: &wit.Enum{}}
}
