// Package manifest declares how a module's operations cross the boundary:
// which export each operation calls, the lifetime policy of every argument,
// the text encoding of string arguments, the error enum of fallible
// operations, and the enum tables themselves.
//
// Manifests are YAML documents validated on load. Schema returns the JSON
// Schema of the format.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/lifetime"
	"github.com/wippyai/wasm-ffi/transcoder"
	"github.com/wippyai/wasm-ffi/writesink"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Manifest is the root document.
type Manifest struct {
	Module     string      `yaml:"module" json:"module" validate:"required" jsonschema:"description=Module name used in logs"`
	Exports    Exports     `yaml:"exports,omitempty" json:"exports,omitempty"`
	Enums      []Enum      `yaml:"enums,omitempty" json:"enums,omitempty" validate:"dive"`
	Operations []Operation `yaml:"operations" json:"operations" validate:"required,min=1,dive"`
}

// Exports names the allocator and write-sink exports. Empty names take
// the diplomat defaults.
type Exports struct {
	Alloc string          `yaml:"alloc,omitempty" json:"alloc,omitempty"`
	Free  string          `yaml:"free,omitempty" json:"free,omitempty"`
	Sink  writesink.Names `yaml:"sink,omitempty" json:"sink,omitempty"`
}

// Enum is an enum table with explicit ordinals.
type Enum struct {
	Name  string     `yaml:"name" json:"name" validate:"required"`
	Cases []EnumCase `yaml:"cases" json:"cases" validate:"required,min=1,dive"`
}

type EnumCase struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Ordinal int32  `yaml:"ordinal" json:"ordinal"`
}

// Operation binds a logical operation to an export.
type Operation struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Export string `yaml:"export" json:"export" validate:"required"`
	Args   []Arg  `yaml:"args,omitempty" json:"args,omitempty" validate:"dive"`
	// Error names the enum of the result's error branch.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
	// Sink marks operations that write their output into a write sink.
	Sink bool `yaml:"sink,omitempty" json:"sink,omitempty"`
}

// Arg declares one buffer argument.
type Arg struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Policy   string `yaml:"policy,omitempty" json:"policy,omitempty" validate:"omitempty,oneof=free_after_call borrowed leak gc_tied" jsonschema:"enum=free_after_call,enum=borrowed,enum=leak,enum=gc_tied"`
	Encoding string `yaml:"encoding,omitempty" json:"encoding,omitempty" validate:"omitempty,oneof=utf8 utf16" jsonschema:"enum=utf8,enum=utf16"`
}

// DefaultAlloc and DefaultFree are the diplomat allocator exports.
const (
	DefaultAlloc = "diplomat_alloc"
	DefaultFree  = "diplomat_free"
)

// WithDefaults fills empty export names.
func (e Exports) WithDefaults() Exports {
	if e.Alloc == "" {
		e.Alloc = DefaultAlloc
	}
	if e.Free == "" {
		e.Free = DefaultFree
	}
	e.Sink = e.Sink.WithDefaults()
	return e
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("parse manifest").
			Cause(err).
			Build()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks field constraints and cross references: unique operation
// and enum names, well-formed enum tables, and error enums that exist.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("manifest validation failed").
			Cause(err).
			Build()
	}

	enums := make(map[string]bool, len(m.Enums))
	for _, e := range m.Enums {
		if enums[e.Name] {
			return errors.InvalidInput(errors.PhaseConfig, "duplicate enum "+e.Name)
		}
		enums[e.Name] = true
		if _, err := e.Table(); err != nil {
			return err
		}
	}

	ops := make(map[string]bool, len(m.Operations))
	for _, op := range m.Operations {
		if ops[op.Name] {
			return errors.InvalidInput(errors.PhaseConfig, "duplicate operation "+op.Name)
		}
		ops[op.Name] = true
		if op.Error != "" && !enums[op.Error] {
			return errors.New(errors.PhaseConfig, errors.KindNotFound).
				Op(op.Name).
				Detail("error enum %q is not declared", op.Error).
				Build()
		}
		args := make(map[string]bool, len(op.Args))
		for _, a := range op.Args {
			if args[a.Name] {
				return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s: duplicate argument %s", op.Name, a.Name))
			}
			args[a.Name] = true
		}
	}
	return nil
}

// Table builds the enum table.
func (e Enum) Table() (*transcoder.EnumTable, error) {
	cases := make([]transcoder.EnumCase, len(e.Cases))
	for i, c := range e.Cases {
		cases[i] = transcoder.EnumCase{Name: c.Name, Ordinal: c.Ordinal}
	}
	return transcoder.NewEnumTable(e.Name, cases...)
}

// EnumTables builds every declared enum table, keyed by name.
func (m *Manifest) EnumTables() (map[string]*transcoder.EnumTable, error) {
	out := make(map[string]*transcoder.EnumTable, len(m.Enums))
	for _, e := range m.Enums {
		t, err := e.Table()
		if err != nil {
			return nil, err
		}
		out[e.Name] = t
	}
	return out, nil
}

// Policies returns the declared argument policies.
func (m *Manifest) Policies() (*lifetime.PolicyTable, error) {
	pt := lifetime.NewPolicyTable()
	for _, op := range m.Operations {
		for _, a := range op.Args {
			p, err := lifetime.ParsePolicy(a.Policy)
			if err != nil {
				return nil, errors.InvalidInput(errors.PhaseConfig, err.Error())
			}
			pt.Set(op.Name, a.Name, p)
		}
	}
	return pt, nil
}

// Operation looks up an operation by name.
func (m *Manifest) Operation(name string) (Operation, bool) {
	for _, op := range m.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Arg looks up an argument declaration.
func (op Operation) Arg(name string) (Arg, bool) {
	for _, a := range op.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// TextEncoding returns the declared encoding of a string argument, UTF-8
// when undeclared.
func (a Arg) TextEncoding() transcoder.Encoding {
	if a.Encoding == "utf16" {
		return transcoder.UTF16
	}
	return transcoder.UTF8
}

// ExportNames returns every export the manifest refers to, sorted and
// without duplicates.
func (m *Manifest) ExportNames() []string {
	ex := m.Exports.WithDefaults()
	set := map[string]bool{ex.Alloc: true, ex.Free: true}
	for _, op := range m.Operations {
		set[op.Export] = true
		if op.Sink {
			for _, n := range ex.Sink.All() {
				set[n] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Schema returns the JSON Schema of the manifest format.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Manifest{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}
