package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Default allocator exports of a diplomat module.
const (
	DefaultAlloc = "diplomat_alloc"
	DefaultFree  = "diplomat_free"
)

var (
	wasmMagic   = []byte{0x00, 0x61, 0x73, 0x6d}
	coreVersion = []byte{0x01, 0x00, 0x00, 0x00}
)

// WazeroEngine compiles and instantiates core modules on a wazero runtime.
type WazeroEngine struct {
	runtime      wazero.Runtime
	cfg          Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// WASI instantiates wasi_snapshot_preview1 before the first module so that
	// modules built for wasm32-wasi resolve their imports.
	WASI bool

	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	e := &WazeroEngine{}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if e.cfg.WASI {
		if err := e.InitWASI(ctx); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, err
		}
	}
	return e, nil
}

// Config returns the configuration the engine was created with.
func (e *WazeroEngine) Config() Config {
	return e.cfg
}

// LoadModule compiles a core module. Component binaries are rejected.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	if len(wasmBytes) < 8 || !bytes.Equal(wasmBytes[:4], wasmMagic) {
		return nil, errors.InvalidInput(errors.PhaseLoad, "not a wasm binary")
	}
	if !bytes.Equal(wasmBytes[4:8], coreVersion) {
		return nil, errors.Unsupported(errors.PhaseLoad, "component binaries")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}

	return &WazeroModule{
		engine:   e,
		compiled: compiled,
	}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasiModuleName) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := InstantiateWASI(ctx, e.runtime); err != nil {
		if e.runtime.Module(wasiModuleName) == nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// WazeroModule is a compiled WASM module
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	// Name is the module name in the runtime. Empty names allow several
	// instances of the same module.
	Name string
	// Alloc and Free name the allocator exports. Empty means the diplomat defaults.
	Alloc string
	Free  string
}

// ExportNames returns the names of all exported functions, sorted.
func (m *WazeroModule) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImportNames returns "module.name" for every imported function.
func (m *WazeroModule) ImportNames() []string {
	defs := m.compiled.ImportedFunctions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		mod, name, _ := def.Import()
		names = append(names, mod+"."+name)
	}
	sort.Strings(names)
	return names
}

func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	return m.InstantiateWithConfig(ctx, nil)
}

func (m *WazeroModule) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*WazeroInstance, error) {
	var ic InstanceConfig
	if cfg != nil {
		ic = *cfg
	}
	if ic.Alloc == "" {
		ic.Alloc = DefaultAlloc
	}
	if ic.Free == "" {
		ic.Free = DefaultFree
	}

	modCfg := wazero.NewModuleConfig().
		WithName(ic.Name).
		WithStartFunctions("_initialize")
	if out := m.engine.cfg.Stdout; out != nil {
		modCfg = modCfg.WithStdout(out)
	}
	if out := m.engine.cfg.Stderr; out != nil {
		modCfg = modCfg.WithStderr(out)
	}

	inst, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	wazInst := &WazeroInstance{
		instance:  inst,
		funcCache: make(map[string]api.Function),
		stackBuf:  make([]uint64, 16),
	}
	if mem := inst.Memory(); mem != nil {
		wazInst.memory = &WazeroMemory{mem: mem}
	}

	allocFn := inst.ExportedFunction(ic.Alloc)
	freeFn := inst.ExportedFunction(ic.Free)
	if allocFn == nil {
		Logger().Debug("module exports no allocator", zap.String("export", ic.Alloc))
	}
	wazInst.alloc = &wazeroAllocator{
		allocFn:  allocFn,
		freeFn:   freeFn,
		stackBuf: wazInst.stackBuf,
	}
	if allocFn != nil {
		wazInst.alloc.allocParams = len(allocFn.Definition().ParamTypes())
	}
	if freeFn != nil {
		wazInst.alloc.freeParams = len(freeFn.Definition().ParamTypes())
	}

	return wazInst, nil
}

// WazeroInstance is a running WASM instance.
// It is NOT safe for concurrent use from multiple goroutines.
// Each goroutine should have its own Instance, or access must be synchronized externally.
type WazeroInstance struct {
	instance  api.Module
	memory    *WazeroMemory
	alloc     *wazeroAllocator
	funcCache map[string]api.Function
	stackBuf  []uint64
	cacheMu   sync.RWMutex
}

// ExportedFunction returns an exported function, caching lookups.
func (i *WazeroInstance) ExportedFunction(name string) api.Function {
	i.cacheMu.RLock()
	fn, ok := i.funcCache[name]
	i.cacheMu.RUnlock()
	if ok {
		return fn
	}
	if i.instance == nil {
		return nil
	}
	fn = i.instance.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	i.cacheMu.Lock()
	i.funcCache[name] = fn
	i.cacheMu.Unlock()
	return fn
}

// HasExport reports whether the module exports a function named name.
func (i *WazeroInstance) HasExport(name string) bool {
	return i.ExportedFunction(name) != nil
}

// Call invokes an export with flattened numeric arguments.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.instance == nil {
		return nil, errors.Closed(errors.PhaseCall, "instance")
	}
	fn := i.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
	i.alloc.setContext(ctx)
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Trap(name, err)
	}
	return res, nil
}

// Memory returns the live linear memory, or nil if the module exports none.
func (i *WazeroInstance) Memory() wasmffi.Memory {
	if i.memory == nil {
		return nil
	}
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

func (i *WazeroInstance) Alloc(size, align uint32) (uint32, error) {
	if i.alloc == nil {
		return 0, errors.Closed(errors.PhaseEncode, "instance")
	}
	return i.alloc.Alloc(size, align)
}

// Free releases memory through the module's free export. Calls after Close
// are ignored.
func (i *WazeroInstance) Free(ptr, size, align uint32) {
	if i.alloc == nil {
		Logger().Debug("free after close ignored", zap.Uint32("ptr", ptr))
		return
	}
	i.alloc.Free(ptr, size, align)
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	var err error
	if i.instance != nil {
		err = i.instance.Close(ctx)
		i.instance = nil
	}
	// Clear references to help GC
	i.cacheMu.Lock()
	i.funcCache = nil
	i.cacheMu.Unlock()
	i.memory = nil
	i.alloc = nil
	i.stackBuf = nil
	return err
}

// wazeroAllocator implements wasmffi.Allocator using the module's exports.
// It accepts alloc(size), alloc(size, align) and cabi_realloc(0, 0, align, size)
// signatures, and free(ptr) or free(ptr, size, align).
type wazeroAllocator struct {
	allocFn     api.Function
	freeFn      api.Function
	currentCtx  context.Context
	stackBuf    []uint64
	allocParams int
	freeParams  int
	stackMutex  sync.Mutex
}

func (a *wazeroAllocator) setContext(ctx context.Context) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()
	a.currentCtx = ctx
}

func (a *wazeroAllocator) callContext() context.Context {
	if a.currentCtx == nil {
		return context.Background()
	}
	return a.currentCtx
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.NotInitialized(errors.PhaseEncode, "allocator")
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	var n int
	switch a.allocParams {
	case 1:
		a.stackBuf[0] = uint64(size)
		n = 1
	case 2:
		a.stackBuf[0] = uint64(size)
		a.stackBuf[1] = uint64(align)
		n = 2
	case 4:
		a.stackBuf[0] = 0
		a.stackBuf[1] = 0
		a.stackBuf[2] = uint64(align)
		a.stackBuf[3] = uint64(size)
		n = 4
	default:
		return 0, errors.Unsupported(errors.PhaseEncode, fmt.Sprintf("allocator with %d params", a.allocParams))
	}
	if err := a.allocFn.CallWithStack(a.callContext(), a.stackBuf[:n]); err != nil {
		return 0, errors.Trap("alloc", err)
	}
	return uint32(a.stackBuf[0]), nil
}

func (a *wazeroAllocator) Free(ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	var n int
	switch a.freeParams {
	case 1:
		a.stackBuf[0] = uint64(ptr)
		n = 1
	case 3:
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(size)
		a.stackBuf[2] = uint64(align)
		n = 3
	default:
		Logger().Warn("Free: unsupported free signature", zap.Int("params", a.freeParams))
		return
	}
	if err := a.freeFn.CallWithStack(a.callContext(), a.stackBuf[:n]); err != nil {
		Logger().Warn("Free: failed to call free export",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// Compile-time check that WazeroInstance implements wasmffi.Instance
var _ wasmffi.Instance = (*WazeroInstance)(nil)

// Compile-time check that wazeroAllocator implements wasmffi.Allocator
var _ wasmffi.Allocator = (*wazeroAllocator)(nil)
