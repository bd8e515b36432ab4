// Package writesink drives the module's growable output buffer.
//
// Operations that produce text of unknown length write into a sink object
// created by the module. The host creates the sink, passes its pointer to
// the operation, reads the bytes back and destroys the sink:
//
//	create(cap) -> w     get_bytes(w) -> ptr     len(w) -> n     destroy(w)
//
// With runs that sequence and destroys the sink on every exit path.
package writesink

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/memview"
)

// Names are the export names of the sink surface.
type Names struct {
	Create  string `yaml:"create" json:"create,omitempty"`
	Bytes   string `yaml:"get_bytes" json:"get_bytes,omitempty"`
	Len     string `yaml:"len" json:"len,omitempty"`
	Destroy string `yaml:"destroy" json:"destroy,omitempty"`
}

// DefaultNames returns the diplomat export names.
func DefaultNames() Names {
	return Names{
		Create:  "diplomat_buffer_write_create",
		Bytes:   "diplomat_buffer_write_get_bytes",
		Len:     "diplomat_buffer_write_len",
		Destroy: "diplomat_buffer_write_destroy",
	}
}

// WithDefaults fills empty names from DefaultNames.
func (n Names) WithDefaults() Names {
	d := DefaultNames()
	if n.Create == "" {
		n.Create = d.Create
	}
	if n.Bytes == "" {
		n.Bytes = d.Bytes
	}
	if n.Len == "" {
		n.Len = d.Len
	}
	if n.Destroy == "" {
		n.Destroy = d.Destroy
	}
	return n
}

// All returns the four export names.
func (n Names) All() []string {
	return []string{n.Create, n.Bytes, n.Len, n.Destroy}
}

// Sink is a live module-side write buffer.
type Sink struct {
	inst      wasmffi.Instance
	names     Names
	ptr       uint32
	destroyed bool
}

func call1(ctx context.Context, inst wasmffi.Instance, name string, params ...uint64) (uint32, error) {
	res, err := inst.Call(ctx, name, params...)
	if err != nil {
		return 0, errors.Trap(name, err)
	}
	if len(res) == 0 {
		return 0, errors.New(errors.PhaseCall, errors.KindLayout).
			Op(name).
			Detail("expected one result").
			Build()
	}
	return uint32(res[0]), nil
}

// Create asks the module for a zero-capacity sink.
func Create(ctx context.Context, inst wasmffi.Instance, names Names) (*Sink, error) {
	names = names.WithDefaults()
	ptr, err := call1(ctx, inst, names.Create, 0)
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, errors.OutOfMemory(errors.PhaseCall, names.Create)
	}
	return &Sink{inst: inst, names: names, ptr: ptr}, nil
}

// Ptr returns the sink pointer passed to operations.
func (s *Sink) Ptr() uint32 {
	return s.ptr
}

// Bytes copies the sink's contents. A null data pointer means the module
// ran out of memory while writing.
func (s *Sink) Bytes(ctx context.Context) ([]byte, error) {
	if s.destroyed {
		return nil, errors.Closed(errors.PhaseDecode, "write sink")
	}
	ptr, err := call1(ctx, s.inst, s.names.Bytes, uint64(s.ptr))
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, errors.OutOfMemory(errors.PhaseDecode, s.names.Bytes)
	}
	n, err := call1(ctx, s.inst, s.names.Len, uint64(s.ptr))
	if err != nil {
		return nil, err
	}
	return memview.New(s.inst.Memory()).Bytes(ptr, n)
}

// Text returns the sink's contents as a string. Invalid UTF-8 is replaced
// with U+FFFD.
func (s *Sink) Text(ctx context.Context) (string, error) {
	b, err := s.Bytes(ctx)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	}
	return string(b), nil
}

// Destroy frees the sink. Later calls do nothing.
func (s *Sink) Destroy(ctx context.Context) error {
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	if _, err := s.inst.Call(ctx, s.names.Destroy, uint64(s.ptr)); err != nil {
		return errors.Trap(s.names.Destroy, err)
	}
	return nil
}

// With creates a sink, runs call with its pointer and returns what call
// wrote. The sink is destroyed whether call succeeds, fails or panics.
func With(ctx context.Context, inst wasmffi.Instance, names Names, call func(w uint32) error) (out string, err error) {
	s, err := Create(ctx, inst, names)
	if err != nil {
		return "", err
	}
	defer func() {
		if derr := s.Destroy(ctx); derr != nil {
			Logger().Warn("write sink destroy failed", zap.Error(derr))
			if err == nil {
				err = derr
			}
		}
	}()

	if err := call(s.ptr); err != nil {
		return "", err
	}
	return s.Text(ctx)
}
