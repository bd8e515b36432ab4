package runtime

import (
	"context"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/engine"
)

type Instance struct {
	module         *Module
	wazeroInstance *engine.WazeroInstance
	bridge         *bridge.Bridge
	closed         bool
}

// Bridge returns the marshalling bridge bound to this instance.
func (i *Instance) Bridge() *bridge.Bridge {
	return i.bridge
}

// Engine returns the underlying wazero instance.
func (i *Instance) Engine() *engine.WazeroInstance {
	return i.wazeroInstance
}

// Close releases every tracked handle and buffer, then the module instance.
// Releases the garbage collector queues after Close are dropped. Close is
// idempotent.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.bridge.Close()
	return i.wazeroInstance.Close(ctx)
}
