package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/internal/testmodule"
	"github.com/wippyai/wasm-ffi/manifest"
)

const demoManifest = `
module: demo
enums:
  - name: MakeError
    cases:
      - {name: Unknown, ordinal: 0}
      - {name: Bad, ordinal: 1}
      - {name: Range, ordinal: 2}
operations:
  - name: Thing.make
    export: make_result
    error: MakeError
  - name: Thing.first
    export: first_byte
    args:
      - {name: data}
  - name: Thing.hello
    export: write_hello
    sink: true
`

func writeFixtures(t *testing.T) (wasmPath, manifestPath string) {
	t.Helper()
	dir := t.TempDir()
	wasmPath = filepath.Join(dir, "demo.wasm")
	manifestPath = filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(wasmPath, testmodule.Binary(), 0o600))
	require.NoError(t, os.WriteFile(manifestPath, []byte(demoManifest), 0o600))
	return wasmPath, manifestPath
}

func TestRun_List(t *testing.T) {
	wasmPath, manifestPath := writeFixtures(t)
	var out bytes.Buffer

	err := run(context.Background(), &out, options{wasmFile: wasmPath, manifestFile: manifestPath, list: true}, zaptest.NewLogger(t))
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "Imports: 0")
	assert.Contains(t, s, "diplomat_alloc")
	assert.Contains(t, s, "Operations (demo):")
	assert.Contains(t, s, "Thing.make(&result, ...ints) -> result<u32, MakeError>")
	assert.Contains(t, s, "Thing.hello(...ints, &sink)")
	assert.NotContains(t, s, "missing")
	assert.NotContains(t, s, "Calling")
}

func TestRun_ListICUReportsMissing(t *testing.T) {
	wasmPath, _ := writeFixtures(t)
	var out bytes.Buffer

	err := run(context.Background(), &out, options{wasmFile: wasmPath, icu: true, list: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Operations (icu4x):")
	assert.Contains(t, out.String(), "missing")
}

func TestRun_Operations(t *testing.T) {
	wasmPath, manifestPath := writeFixtures(t)

	tests := []struct {
		name  string
		op    string
		texts string
		ints  string
		want  string
	}{
		{"result ok", "Thing.make", "", "1", "Result: ok(42)"},
		{"string arg", "Thing.first", "A", "", "Result: 65"},
		{"write sink", "Thing.hello", "", "", "Result: hi"},
		{"raw export", "first_byte", "z", "", "Result: 122"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			o := options{wasmFile: wasmPath, manifestFile: manifestPath, op: tt.op, texts: tt.texts, ints: tt.ints}
			require.NoError(t, run(context.Background(), &out, o, zaptest.NewLogger(t)))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRun_DomainError(t *testing.T) {
	wasmPath, manifestPath := writeFixtures(t)
	var out bytes.Buffer

	o := options{wasmFile: wasmPath, manifestFile: manifestPath, op: "Thing.make", ints: "0"}
	err := run(context.Background(), &out, o, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.Domain("MakeError", "Range"))
}

func TestRun_Errors(t *testing.T) {
	wasmPath, manifestPath := writeFixtures(t)
	ctx := context.Background()

	err := run(ctx, &bytes.Buffer{}, options{wasmFile: wasmPath, manifestFile: manifestPath, icu: true}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "exclusive")

	err = run(ctx, &bytes.Buffer{}, options{wasmFile: filepath.Join(t.TempDir(), "none.wasm")}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "load module")

	err = run(ctx, &bytes.Buffer{}, options{wasmFile: wasmPath, op: "trap"}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTrap))

	err = run(ctx, &bytes.Buffer{}, options{wasmFile: wasmPath, op: "first_byte", ints: "x"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `integer parameter "x"`)
}

func TestParseInts(t *testing.T) {
	got, err := parseInts("1, -1,0x10,18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, ^uint64(0), 16, ^uint64(0)}, got)

	got, err = parseInts("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewCall(t *testing.T) {
	man, err := manifest.Parse([]byte(demoManifest))
	require.NoError(t, err)

	c := newCall(man, "Thing.first")
	assert.Equal(t, "first_byte", c.op.Export)
	assert.Equal(t, "Thing.first(data: utf8, ...ints)", c.describe())

	raw := newCall(man, "free_count")
	assert.Equal(t, "free_count", raw.op.Export)
	assert.Equal(t, "free_count(...ints)", raw.describe())

	assert.Equal(t, "()", formatResults(nil))
	assert.Equal(t, "(1, 2)", formatResults([]uint64{1, 2}))
}
