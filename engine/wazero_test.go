package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/internal/testmodule"
)

func newInstance(t *testing.T, cfg *InstanceConfig) (*WazeroEngine, *WazeroInstance) {
	t.Helper()
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	mod, err := eng.LoadModule(ctx, testmodule.Binary())
	require.NoError(t, err)

	inst, err := mod.InstantiateWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })
	return eng, inst
}

func freeCount(t *testing.T, inst *WazeroInstance) uint32 {
	t.Helper()
	res, err := inst.Call(context.Background(), "free_count")
	require.NoError(t, err)
	return uint32(res[0])
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{WASI: true}, "wasi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			require.NoError(t, err)
			defer engine.Close(ctx)

			assert.NotNil(t, engine.runtime)
			if tc.cfg != nil {
				assert.Equal(t, *tc.cfg, engine.Config())
			}
		})
	}
}

func TestWazeroEngine_InitWASIIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	require.NoError(t, err)
	defer engine.Close(ctx)

	require.NoError(t, engine.InitWASI(ctx))
	require.NoError(t, engine.InitWASI(ctx))
	assert.NotNil(t, engine.runtime.Module(wasiModuleName))
}

func TestLoadModule_Rejects(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	require.NoError(t, err)
	defer engine.Close(ctx)

	_, err = engine.LoadModule(ctx, []byte("not wasm"))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	component := []byte{0x00, 0x61, 0x73, 0x6d, 0x0d, 0x00, 0x01, 0x00}
	_, err = engine.LoadModule(ctx, component)
	assert.True(t, errors.IsKind(err, errors.KindUnsupported))

	_, err = engine.LoadModule(ctx, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0xff})
	assert.Error(t, err)
}

func TestWazeroModule_ExportNames(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	require.NoError(t, err)
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, testmodule.Binary())
	require.NoError(t, err)

	names := mod.ExportNames()
	assert.Contains(t, names, DefaultAlloc)
	assert.Contains(t, names, DefaultFree)
	assert.Contains(t, names, "write_hello")
	assert.NotContains(t, names, "memory")
	assert.IsIncreasing(t, names)
	assert.Empty(t, mod.ImportNames())
}

func TestWazeroInstance_Allocator(t *testing.T) {
	_, inst := newInstance(t, nil)

	p1, err := inst.Alloc(13, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), p1)

	p2, err := inst.Alloc(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1040), p2)

	inst.Free(p1, 13, 4)
	inst.Free(0, 0, 1)
	assert.Equal(t, uint32(1), freeCount(t, inst))
}

func TestWazeroInstance_CustomAllocatorNames(t *testing.T) {
	_, inst := newInstance(t, &InstanceConfig{Alloc: "missing_alloc", Free: "missing_free"})

	_, err := inst.Alloc(8, 4)
	assert.True(t, errors.IsKind(err, errors.KindNotInitialized))

	// No free export: nothing is called.
	inst.Free(1024, 8, 4)
	assert.Equal(t, uint32(0), freeCount(t, inst))
}

func TestWazeroInstance_Memory(t *testing.T) {
	_, inst := newInstance(t, nil)
	mem := inst.Memory()
	require.NotNil(t, mem)
	assert.Equal(t, uint32(65536), inst.MemorySize())

	require.NoError(t, mem.Write(2048, []byte{0xaa, 0xbb}))
	require.NoError(t, mem.WriteU16(2050, 0x1234))
	require.NoError(t, mem.WriteU32(2052, 0xdeadbeef))
	require.NoError(t, mem.WriteU64(2056, 0x0102030405060708))
	require.NoError(t, mem.WriteU8(2064, 7))

	u8, err := mem.ReadU8(2064)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)
	u16, err := mem.ReadU16(2050)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)
	u32, err := mem.ReadU32(2052)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)
	u64, err := mem.ReadU64(2056)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	res, err := inst.Call(context.Background(), "first_byte", 2048, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xaa), res[0])

	_, err = mem.Read(65535, 2)
	assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))
	assert.True(t, errors.IsKind(mem.WriteU32(65534, 1), errors.KindOutOfBounds))
}

func TestWazeroInstance_MemoryIsLive(t *testing.T) {
	_, inst := newInstance(t, nil)
	mem := inst.Memory().(*WazeroMemory)

	prev, ok := mem.Grow(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), prev)

	// The wrapper obtained before growth addresses the new pages.
	require.NoError(t, inst.Memory().WriteU32(70000, 99))
	v, err := mem.ReadU32(70000)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)
}

func TestWazeroInstance_ResultBuffer(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()
	mem := inst.Memory()

	rb, err := inst.Alloc(5, 4)
	require.NoError(t, err)

	_, err = inst.Call(ctx, "make_result", uint64(rb), 1)
	require.NoError(t, err)
	v, _ := mem.ReadU32(rb)
	flag, _ := mem.ReadU8(rb + 4)
	assert.Equal(t, uint32(42), v)
	assert.Equal(t, uint8(1), flag)

	_, err = inst.Call(ctx, "make_result", uint64(rb), 0)
	require.NoError(t, err)
	v, _ = mem.ReadU32(rb)
	flag, _ = mem.ReadU8(rb + 4)
	assert.Equal(t, uint32(2), v)
	assert.Equal(t, uint8(0), flag)
}

func TestWazeroInstance_CallErrors(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()

	_, err := inst.Call(ctx, "trap")
	assert.True(t, errors.IsKind(err, errors.KindTrap))

	_, err = inst.Call(ctx, "nope")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.False(t, inst.HasExport("nope"))
	assert.True(t, inst.HasExport("trap"))
}

func TestWazeroInstance_Close(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))

	_, err := inst.Call(ctx, "free_count")
	assert.True(t, errors.IsKind(err, errors.KindClosed))
	_, err = inst.Alloc(4, 4)
	assert.True(t, errors.IsKind(err, errors.KindClosed))
	assert.NotPanics(t, func() { inst.Free(1024, 4, 4) })
	assert.Nil(t, inst.Memory())
	assert.False(t, inst.HasExport("trap"))
}

func TestWazeroModule_SeveralInstances(t *testing.T) {
	eng, first := newInstance(t, nil)
	ctx := context.Background()

	mod, err := eng.LoadModule(ctx, testmodule.Binary())
	require.NoError(t, err)
	second, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer second.Close(ctx)

	p1, err := first.Alloc(8, 8)
	require.NoError(t, err)
	p2, err := second.Alloc(8, 8)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "instances have separate heaps")
}
