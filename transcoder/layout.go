package transcoder

import (
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/transcoder/internal/abi"
	"github.com/wippyai/wasm-ffi/transcoder/internal/layout"
)

type LayoutInfo = layout.Info

// Layout is the memory shape of a struct, result, option or primitive.
type Layout struct {
	Type     wit.Type
	Fields   []FieldLayout
	Size     uint32
	Align    uint32
	FlagOffs uint32
	Nullable bool
}

// FieldLayout is one struct field.
type FieldLayout struct {
	Type   wit.Type
	Name   string
	Offset uint32
	Size   uint32
	Align  uint32
}

// Field returns the named field.
func (l Layout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

type LayoutCalculator struct {
	calc *layout.Calculator
	mu   sync.Mutex
}

func NewLayoutCalculator() *LayoutCalculator {
	return &LayoutCalculator{
		calc: layout.NewCalculator(),
	}
}

func (lc *LayoutCalculator) Calculate(t wit.Type) LayoutInfo {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.calc.Calculate(t)
}

func fromInfo(t wit.Type, info LayoutInfo) Layout {
	l := Layout{
		Type:     t,
		Size:     info.Size,
		Align:    info.Align,
		FlagOffs: info.FlagOffs,
		Nullable: info.Nullable,
	}
	for _, f := range info.Fields {
		l.Fields = append(l.Fields, FieldLayout{
			Type:   f.Type,
			Name:   f.Name,
			Offset: f.Offset,
			Size:   f.Info.Size,
			Align:  f.Info.Align,
		})
	}
	return l
}

// Of returns the layout of t.
func (lc *LayoutCalculator) Of(t wit.Type) (Layout, error) {
	info := lc.Calculate(t)
	if info.Unsupported {
		return Layout{}, errors.Unsupported(errors.PhaseDecode, "type "+typeName(t)+" has no memory representation")
	}
	return fromInfo(t, info), nil
}

// Struct returns the layout of a record type.
func (lc *LayoutCalculator) Struct(td *wit.TypeDef) (Layout, error) {
	if td == nil {
		return Layout{}, errors.InvalidInput(errors.PhaseDecode, "nil struct type")
	}
	if _, ok := td.Kind.(*wit.Record); !ok {
		return Layout{}, errors.InvalidInput(errors.PhaseDecode, typeName(td)+" is not a record")
	}
	return lc.Of(td)
}

// Result returns the receive-buffer layout of result<ok, err>. A nil side
// carries no payload.
func (lc *LayoutCalculator) Result(ok, err wit.Type) Layout {
	r := &wit.Result{OK: ok, Err: err}
	lc.mu.Lock()
	info := lc.calc.ResultOf(r)
	lc.mu.Unlock()
	return fromInfo(&wit.TypeDef{Kind: r}, info)
}

// Option returns the layout of option<inner>.
func (lc *LayoutCalculator) Option(inner wit.Type) Layout {
	o := &wit.Option{Type: inner}
	lc.mu.Lock()
	info := lc.calc.OptionOf(o)
	lc.mu.Unlock()
	return fromInfo(&wit.TypeDef{Kind: o}, info)
}

var defaultLayouts = NewLayoutCalculator()

// StructLayout computes the layout of a record with the shared calculator.
func StructLayout(td *wit.TypeDef) (Layout, error) {
	return defaultLayouts.Struct(td)
}

// ResultLayout computes a result receive-buffer layout with the shared calculator.
func ResultLayout(ok, err wit.Type) Layout {
	return defaultLayouts.Result(ok, err)
}

// OptionLayout computes an option layout with the shared calculator.
func OptionLayout(inner wit.Type) Layout {
	return defaultLayouts.Option(inner)
}

// MustStructLayout is StructLayout for package-level declarations.
func MustStructLayout(td *wit.TypeDef) Layout {
	l, err := StructLayout(td)
	if err != nil {
		panic(err)
	}
	return l
}

// Handle returns the type of an owned opaque handle named name.
func Handle(name string) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: &wit.Own{}}
}

// BorrowedHandle returns the type of a borrowed opaque handle named name.
func BorrowedHandle(name string) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: &wit.Borrow{}}
}

func typeName(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return abi.TypeName(t)
}
