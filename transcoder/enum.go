package transcoder

import (
	"fmt"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/errors"
)

// EnumCase is one enum variant with its explicit ordinal.
type EnumCase struct {
	Name    string
	Ordinal int32
}

// EnumTable maps ordinals to variant names and back. Ordinals need not be
// contiguous.
type EnumTable struct {
	byOrd  map[int32]string
	byName map[string]int32
	name   string
	cases  []EnumCase
}

// NewEnumTable builds a table. Duplicate ordinals or names are rejected.
func NewEnumTable(name string, cases ...EnumCase) (*EnumTable, error) {
	t := &EnumTable{
		name:   name,
		byOrd:  make(map[int32]string, len(cases)),
		byName: make(map[string]int32, len(cases)),
	}
	for _, c := range cases {
		if _, dup := t.byOrd[c.Ordinal]; dup {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s: duplicate ordinal %d", name, c.Ordinal))
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s: duplicate case %q", name, c.Name))
		}
		t.byOrd[c.Ordinal] = c.Name
		t.byName[c.Name] = c.Ordinal
	}
	t.cases = append([]EnumCase(nil), cases...)
	sort.Slice(t.cases, func(i, j int) bool { return t.cases[i].Ordinal < t.cases[j].Ordinal })
	return t, nil
}

// MustEnumTable is NewEnumTable for package-level declarations.
func MustEnumTable(name string, cases ...EnumCase) *EnumTable {
	t, err := NewEnumTable(name, cases...)
	if err != nil {
		panic(err)
	}
	return t
}

// EnumFromWIT builds a table with ordinals 0..n-1 from a WIT enum. Case
// names are converted from kebab-case to PascalCase.
func EnumFromWIT(td *wit.TypeDef) (*EnumTable, error) {
	e, err := witEnum(td)
	if err != nil {
		return nil, err
	}
	cases := make([]EnumCase, len(e.Cases))
	for i, c := range e.Cases {
		cases[i] = EnumCase{Name: pascal(c.Name), Ordinal: int32(i)}
	}
	return NewEnumTable(pascal(typeName(td)), cases...)
}

func witEnum(td *wit.TypeDef) (*wit.Enum, error) {
	if td == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "nil enum type")
	}
	e, ok := td.Kind.(*wit.Enum)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseConfig, typeName(td)+" is not an enum")
	}
	return e, nil
}

// TypeName returns the enum's name.
func (t *EnumTable) TypeName() string {
	return t.name
}

// Len returns the number of cases.
func (t *EnumTable) Len() int {
	return len(t.cases)
}

// Cases returns the cases in ordinal order.
func (t *EnumTable) Cases() []EnumCase {
	return append([]EnumCase(nil), t.cases...)
}

// Name maps an ordinal read from memory to its variant name. An unknown
// ordinal is a protocol violation.
func (t *EnumTable) Name(ord int32) (string, error) {
	name, ok := t.byOrd[ord]
	if !ok {
		return "", errors.InvalidDiscriminant(errors.PhaseDecode, t.name, ord)
	}
	return name, nil
}

// Ordinal maps a variant name to the ordinal written to memory.
func (t *EnumTable) Ordinal(name string) (int32, error) {
	ord, ok := t.byName[name]
	if !ok {
		return 0, errors.New(errors.PhaseEncode, errors.KindInvalidEnum).
			WireType(t.name).
			Detail("unknown case %q", name).
			Build()
	}
	return ord, nil
}

// Verify checks the table against the enum the module declares. A WIT
// enum's discriminants are its case positions, so case i must carry
// ordinal i and a matching name, compared ignoring case and separators.
// Tables with offset or sparse ordinals never verify against a WIT enum.
func (t *EnumTable) Verify(td *wit.TypeDef) error {
	e, err := witEnum(td)
	if err != nil {
		return err
	}
	if len(e.Cases) != len(t.cases) {
		return errors.New(errors.PhaseLoad, errors.KindTableDrift).
			WireType(t.name).
			Detail("module declares %d cases, table has %d", len(e.Cases), len(t.cases)).
			Build()
	}
	for i, c := range e.Cases {
		if t.cases[i].Ordinal != int32(i) {
			return errors.New(errors.PhaseLoad, errors.KindTableDrift).
				WireType(t.name).
				Detail("case %d: module discriminant is %d, table ordinal of %q is %d", i, i, t.cases[i].Name, t.cases[i].Ordinal).
				Build()
		}
		if normalize(c.Name) != normalize(t.cases[i].Name) {
			return errors.New(errors.PhaseLoad, errors.KindTableDrift).
				WireType(t.name).
				Detail("case %d: module declares %q, table has %q", i, c.Name, t.cases[i].Name).
				Build()
		}
	}
	return nil
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

func pascal(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '-' || r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}
