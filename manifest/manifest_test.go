package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/lifetime"
	"github.com/wippyai/wasm-ffi/transcoder"
)

const sample = `
module: icu4x
exports:
  sink:
    create: make_sink
enums:
  - name: CalendarError
    cases:
      - {name: Unknown, ordinal: 0}
      - {name: OutOfRange, ordinal: 1}
      - {name: UnknownMonthCode, ordinal: 2}
      - {name: UnknownEra, ordinal: 3}
operations:
  - name: Date.from_codes
    export: icu4x_Date_from_codes_in_calendar_mv1
    error: CalendarError
    args:
      - {name: era_code}
      - {name: month_code, policy: borrowed}
  - name: BidiInfo.create
    export: icu4x_Bidi_for_text_mv1
    args:
      - {name: text, policy: gc_tied, encoding: utf16}
  - name: Locale.to_string
    export: icu4x_Locale_to_string_mv1
    sink: true
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "icu4x", m.Module)
	require.Len(t, m.Operations, 3)

	op, ok := m.Operation("BidiInfo.create")
	require.True(t, ok)
	arg, ok := op.Arg("text")
	require.True(t, ok)
	assert.Equal(t, transcoder.UTF16, arg.TextEncoding())

	_, ok = m.Operation("missing")
	assert.False(t, ok)
}

func TestPolicies(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	pt, err := m.Policies()
	require.NoError(t, err)
	assert.Equal(t, lifetime.GCTied, pt.Lookup("BidiInfo.create", "text"))
	assert.Equal(t, lifetime.Borrowed, pt.Lookup("Date.from_codes", "month_code"))
	assert.Equal(t, lifetime.FreeAfterCall, pt.Lookup("Date.from_codes", "era_code"))
}

func TestEnumTables(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	tables, err := m.EnumTables()
	require.NoError(t, err)
	name, err := tables["CalendarError"].Name(2)
	require.NoError(t, err)
	assert.Equal(t, "UnknownMonthCode", name)
}

func TestExportNames(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	names := m.ExportNames()
	assert.Contains(t, names, "make_sink")
	assert.Contains(t, names, "diplomat_buffer_write_destroy")
	assert.Contains(t, names, DefaultAlloc)
	assert.Contains(t, names, "icu4x_Bidi_for_text_mv1")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no module", "operations: [{name: a, export: b}]"},
		{"no operations", "module: m"},
		{"bad policy", "module: m\noperations: [{name: a, export: b, args: [{name: x, policy: forever}]}]"},
		{"bad encoding", "module: m\noperations: [{name: a, export: b, args: [{name: x, encoding: latin1}]}]"},
		{"duplicate op", "module: m\noperations: [{name: a, export: b}, {name: a, export: c}]"},
		{"duplicate arg", "module: m\noperations: [{name: a, export: b, args: [{name: x}, {name: x}]}]"},
		{"unknown error enum", "module: m\noperations: [{name: a, export: b, error: Nope}]"},
		{"duplicate ordinal", "module: m\nenums: [{name: E, cases: [{name: A, ordinal: 1}, {name: B, ordinal: 1}]}]\noperations: [{name: a, export: b}]"},
		{"malformed yaml", "module: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var e *errors.Error
			assert.ErrorAs(t, err, &e)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "icu4x", m.Module)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "operations")
	assert.Contains(t, props, "module")
}
