package bridge

import (
	"context"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/handle"
	"github.com/wippyai/wasm-ffi/lifetime"
	"github.com/wippyai/wasm-ffi/manifest"
	"github.com/wippyai/wasm-ffi/transcoder"
	"github.com/wippyai/wasm-ffi/writesink"
)

// Bridge binds the encoder, decoder, write sink and lifetime tracker to one
// instance. It is not safe for concurrent use.
type Bridge struct {
	inst     wasmffi.Instance
	enc      *transcoder.Encoder
	dec      *transcoder.Decoder
	tracker  *lifetime.Tracker
	manifest *manifest.Manifest
	policies *lifetime.PolicyTable
	enums    map[string]*transcoder.EnumTable
	logger   *zap.Logger
	exports  manifest.Exports
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTracker sets the lifetime tracker. By default each bridge gets its
// own tracker backed by the garbage collector.
func WithTracker(t *lifetime.Tracker) Option {
	return func(b *Bridge) { b.tracker = t }
}

// WithManifest supplies operation declarations.
func WithManifest(m *manifest.Manifest) Option {
	return func(b *Bridge) { b.manifest = m }
}

// WithLogger sets the bridge's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// New creates a bridge over inst.
func New(inst wasmffi.Instance, opts ...Option) (*Bridge, error) {
	if inst == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	b := &Bridge{inst: inst}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = Logger()
	}
	if b.tracker == nil {
		b.tracker = lifetime.NewTracker(lifetime.WithLogger(b.logger))
	}

	mem := inst.Memory()
	b.enc = transcoder.NewEncoder(inst, mem)
	b.dec = transcoder.NewDecoder(mem)

	if b.manifest != nil {
		var err error
		if b.policies, err = b.manifest.Policies(); err != nil {
			return nil, err
		}
		if b.enums, err = b.manifest.EnumTables(); err != nil {
			return nil, err
		}
		b.exports = b.manifest.Exports.WithDefaults()
	} else {
		b.policies = lifetime.NewPolicyTable()
		b.enums = map[string]*transcoder.EnumTable{}
		b.exports = manifest.Exports{}.WithDefaults()
	}
	return b, nil
}

func (b *Bridge) Instance() wasmffi.Instance { return b.inst }
func (b *Bridge) Encoder() *transcoder.Encoder { return b.enc }
func (b *Bridge) Decoder() *transcoder.Decoder { return b.dec }
func (b *Bridge) Tracker() *lifetime.Tracker { return b.tracker }
func (b *Bridge) Manifest() *manifest.Manifest { return b.manifest }
func (b *Bridge) Policies() *lifetime.PolicyTable { return b.policies }

// Export returns the export an operation calls. Operations missing from the
// manifest call the export of the same name.
func (b *Bridge) Export(op string) string {
	if b.manifest != nil {
		if o, ok := b.manifest.Operation(op); ok {
			return o.Export
		}
	}
	return op
}

// EnumTable returns a declared enum table.
func (b *Bridge) EnumTable(name string) (*transcoder.EnumTable, bool) {
	t, ok := b.enums[name]
	return t, ok
}

// ErrorTable returns the error enum declared for op, or nil.
func (b *Bridge) ErrorTable(op string) *transcoder.EnumTable {
	if b.manifest == nil {
		return nil
	}
	o, ok := b.manifest.Operation(op)
	if !ok || o.Error == "" {
		return nil
	}
	return b.enums[o.Error]
}

// Call invokes op with numeric parameters only. Queued releases run first.
func (b *Bridge) Call(ctx context.Context, op string, params ...uint64) ([]uint64, error) {
	b.tracker.Drain()
	return b.call(ctx, op, params)
}

func (b *Bridge) call(ctx context.Context, op string, params []uint64) ([]uint64, error) {
	export := b.Export(op)
	b.logger.Debug("call", zap.String("op", op), zap.String("export", export), zap.Int("params", len(params)))
	res, err := b.inst.Call(ctx, export, params...)
	if err != nil {
		return nil, errors.Trap(op, err)
	}
	return res, nil
}

// WithWriteSink runs call with a fresh write sink and returns its text.
func (b *Bridge) WithWriteSink(ctx context.Context, call func(w uint32) error) (string, error) {
	b.tracker.Drain()
	return writesink.With(ctx, b.inst, b.exports.Sink, call)
}

// Enum maps a discriminant returned by a call through the named table.
func (b *Bridge) Enum(ret uint64, table string) (string, error) {
	t, ok := b.enums[table]
	if !ok {
		return "", errors.NotFound(errors.PhaseDecode, "enum", table)
	}
	return transcoder.EnumValue(ret, t)
}

// Struct decodes a record at ptr using the declared enum tables.
func (b *Bridge) Struct(ptr uint32, l transcoder.Layout) (transcoder.Record, error) {
	return b.dec.DecodeStruct(ptr, l, transcoder.EnumSet(b.enums))
}

// Handle wraps a handle returned by the module. When owned, destroyOp is
// called with it exactly once.
func (b *Bridge) Handle(h uint32, owned bool, destroyOp string, edges ...any) *handle.Opaque {
	export := b.Export(destroyOp)
	inst, logger := b.inst, b.logger
	destroy := func(h uint32) {
		if _, err := inst.Call(context.Background(), export, uint64(h)); err != nil {
			logger.Warn("destroy failed", zap.String("export", export), zap.Uint32("handle", h), zap.Error(err))
		}
	}
	return handle.New(b.tracker, h, owned, destroy, edges...)
}

// VerifyExports checks that every export the manifest refers to exists.
func (b *Bridge) VerifyExports() error {
	if b.manifest == nil {
		return nil
	}
	var missing []string
	for _, name := range b.manifest.ExportNames() {
		if !b.inst.HasExport(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.PhaseLoad, errors.KindNotFound).
			Detail("missing exports: %s", strings.Join(missing, ", ")).
			Value(missing).
			Build()
	}
	return nil
}

// VerifyEnums checks declared enum tables against the enums the module
// declares, keyed by table name. Tables without a declaration are skipped.
func (b *Bridge) VerifyEnums(decls map[string]*wit.TypeDef) error {
	names := make([]string, 0, len(decls))
	for n := range decls {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		t, ok := b.enums[n]
		if !ok {
			continue
		}
		if err := t.Verify(decls[n]); err != nil {
			return err
		}
	}
	return nil
}

// Drain runs releases queued by the garbage collector.
func (b *Bridge) Drain() int {
	return b.tracker.Drain()
}

// Close releases everything the tracker still holds.
func (b *Bridge) Close() {
	b.tracker.Close()
}
