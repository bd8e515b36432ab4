package layout

import (
	"github.com/wippyai/wasm-ffi/transcoder/internal/abi"
	"go.bytecodealliance.org/wit"
)

// Info is the in-memory shape of a type.
type Info struct {
	Fields    []Field
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
	// FlagOffs is the offset of the is-ok/is-some byte of a result or
	// flag-byte option. It equals the payload size.
	FlagOffs uint32
	// Nullable marks an option carried as a single pointer word.
	Nullable bool
	// Unsupported is set when the type, or a type nested in it, has no
	// representation on this boundary.
	Unsupported bool
}

// Field is one record field in declaration order.
type Field struct {
	Type   wit.Type
	Name   string
	Offset uint32
	Info   Info
}

type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1, Unsupported: true}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Enum:
		info = Info{Size: abi.EnumSize, Align: abi.EnumSize}
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Own, *wit.Borrow:
		info = Info{Size: 4, Align: 4}
	case *wit.Option:
		info = c.calculateOption(kind)
	case *wit.Result:
		info = c.calculateResult(kind)
	case *wit.Tuple:
		info = c.calculateTuple(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1, Unsupported: true}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1, FieldOffs: map[string]uint32{}}
	}

	fields := make([]Field, 0, len(r.Fields))
	fieldOffs := make(map[string]uint32, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)
	unsupported := false

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)
		unsupported = unsupported || fieldLayout.Unsupported

		offset = abi.AlignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset
		fields = append(fields, Field{Name: field.Name, Offset: offset, Type: field.Type, Info: fieldLayout})

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		offset += fieldLayout.Size
	}

	return Info{
		Size:        abi.AlignTo(offset, maxAlign),
		Align:       maxAlign,
		Fields:      fields,
		FieldOffs:   fieldOffs,
		Unsupported: unsupported,
	}
}

// isPointer reports whether t is carried as a single non-null pointer word.
func isPointer(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return false
	}
	switch td.Kind.(type) {
	case *wit.Own, *wit.Borrow:
		return true
	}
	return false
}

func (c *Calculator) calculateOption(o *wit.Option) Info {
	if isPointer(o.Type) {
		return Info{Size: 4, Align: 4, Nullable: true}
	}

	inner := c.Calculate(o.Type)
	payload := abi.AlignTo(inner.Size, inner.Align)

	return Info{
		Size:        payload + 1,
		Align:       max(inner.Align, 1),
		FlagOffs:    payload,
		Unsupported: inner.Unsupported,
	}
}

// calculateResult lays out a payload union at offset 0 followed by the
// is-ok byte. The size is payload+1 with no trailing padding.
func (c *Calculator) calculateResult(r *wit.Result) Info {
	okSize, okAlign := uint32(0), uint32(1)
	unsupported := false
	if r.OK != nil {
		okLayout := c.Calculate(r.OK)
		okSize, okAlign = okLayout.Size, okLayout.Align
		unsupported = okLayout.Unsupported
	}

	errSize, errAlign := uint32(0), uint32(1)
	if r.Err != nil {
		errLayout := c.Calculate(r.Err)
		errSize, errAlign = errLayout.Size, errLayout.Align
		unsupported = unsupported || errLayout.Unsupported
	}

	maxAlign := max(okAlign, errAlign)
	payload := abi.AlignTo(max(okSize, errSize), maxAlign)

	return Info{
		Size:        payload + 1,
		Align:       maxAlign,
		FlagOffs:    payload,
		Unsupported: unsupported,
	}
}

func (c *Calculator) calculateTuple(t *wit.Tuple) Info {
	if len(t.Types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	maxAlign := uint32(1)
	offset := uint32(0)
	unsupported := false

	for _, typ := range t.Types {
		elemLayout := c.Calculate(typ)
		unsupported = unsupported || elemLayout.Unsupported
		offset = abi.AlignTo(offset, elemLayout.Align)

		if elemLayout.Align > maxAlign {
			maxAlign = elemLayout.Align
		}

		offset += elemLayout.Size
	}

	return Info{
		Size:        abi.AlignTo(offset, maxAlign),
		Align:       maxAlign,
		Unsupported: unsupported,
	}
}

// ResultOf lays out r without caching.
func (c *Calculator) ResultOf(r *wit.Result) Info {
	return c.calculateResult(r)
}

// OptionOf lays out o without caching.
func (c *Calculator) OptionOf(o *wit.Option) Info {
	return c.calculateOption(o)
}
