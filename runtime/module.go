package runtime

import (
	"context"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/engine"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/lifetime"
)

type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
}

// Exports returns the module's exported function names, sorted.
func (m *Module) Exports() []string {
	return m.wazeroModule.ExportNames()
}

// Imports returns the module's imported functions as "module.name", sorted.
func (m *Module) Imports() []string {
	return m.wazeroModule.ImportNames()
}

// Instantiate creates an instance and binds a bridge to it. The instance
// gets its own lifetime tracker.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	cfg := m.runtime.cfg

	ic := &engine.InstanceConfig{}
	if cfg.manifest != nil {
		exp := cfg.manifest.Exports.WithDefaults()
		ic.Alloc = exp.Alloc
		ic.Free = exp.Free
	}

	wazeroInstance, err := m.wazeroModule.InstantiateWithConfig(ctx, ic)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	opts := []bridge.Option{
		bridge.WithLogger(cfg.logger),
		bridge.WithTracker(lifetime.NewTracker(lifetime.WithLogger(cfg.logger))),
	}
	if cfg.manifest != nil {
		opts = append(opts, bridge.WithManifest(cfg.manifest))
	}

	b, err := bridge.New(wazeroInstance, opts...)
	if err == nil {
		err = b.VerifyExports()
	}
	if err != nil {
		_ = wazeroInstance.Close(ctx)
		return nil, err
	}

	return &Instance{
		module:         m,
		wazeroInstance: wazeroInstance,
		bridge:         b,
	}, nil
}
