package runtime

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/engine"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/manifest"
)

type config struct {
	logger           *zap.Logger
	manifest         *manifest.Manifest
	stdout           io.Writer
	stderr           io.Writer
	memoryLimitPages uint32
	wasi             bool
}

// Option configures a Runtime.
type Option func(*config)

// WithLogger sets the logger threaded into every bridge and tracker.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMemoryLimitPages caps linear memory per instance, in 64KB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithWASI instantiates wasi_snapshot_preview1 for modules built for wasm32-wasi.
func WithWASI(enabled bool) Option {
	return func(c *config) {
		c.wasi = enabled
	}
}

// WithStdio sets where WASI output goes. Nil discards it.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(c *config) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithManifest declares exports, enum tables and argument policies.
func WithManifest(m *manifest.Manifest) Option {
	return func(c *config) {
		c.manifest = m
	}
}

type Runtime struct {
	engine *engine.WazeroEngine
	cfg    config
}

func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: cfg.memoryLimitPages,
		WASI:             cfg.wasi,
		Stdout:           cfg.stdout,
		Stderr:           cfg.stderr,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		cfg:    cfg,
	}, nil
}

// Manifest returns the configured manifest, or nil.
func (r *Runtime) Manifest() *manifest.Manifest {
	return r.cfg.manifest
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// LoadWASM compiles a core WebAssembly module.
func (r *Runtime) LoadWASM(ctx context.Context, wasm []byte) (*Module, error) {
	wazeroModule, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		if errors.IsKind(err, errors.KindInvalidInput) || errors.IsKind(err, errors.KindUnsupported) {
			return nil, err
		}
		return nil, errors.Load("load module", err)
	}

	r.cfg.logger.Debug("module loaded",
		zap.Int("bytes", len(wasm)),
		zap.Int("exports", len(wazeroModule.ExportNames())))

	return &Module{
		runtime:      r,
		wazeroModule: wazeroModule,
	}, nil
}

// LoadFile reads and compiles a module from disk.
func (r *Runtime) LoadFile(ctx context.Context, path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return r.LoadWASM(ctx, wasm)
}
