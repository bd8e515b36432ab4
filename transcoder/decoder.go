package transcoder

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/memview"
)

// Decoder reads results out of module memory.
type Decoder struct {
	mem     Memory
	layouts *LayoutCalculator
}

func NewDecoder(mem Memory) *Decoder {
	return &Decoder{mem: mem, layouts: defaultLayouts}
}

// View returns a view over the live memory.
func (d *Decoder) View() memview.View {
	return memview.New(d.mem)
}

// PayloadFunc decodes the payload of a result or option found at base.
type PayloadFunc[T any] func(v memview.View, base uint32) (T, error)

// HandlePayload decodes a pointer-word payload.
func HandlePayload(v memview.View, base uint32) (uint32, error) {
	return v.Ptr(base)
}

// UnitPayload decodes an empty payload.
func UnitPayload(memview.View, uint32) (struct{}, error) {
	return struct{}{}, nil
}

// UnitError names the error branch of a result whose error carries no value.
const UnitError = "Error"

func readFlag(v memview.View, ptr uint32, l Layout) (uint8, error) {
	flag, err := v.U8(ptr + l.FlagOffs)
	if err != nil {
		return 0, err
	}
	if flag > 1 {
		return 0, errors.New(errors.PhaseDecode, errors.KindLayout).
			WireType(typeName(l.Type)).
			Detail("flag byte at +%d is %d", l.FlagOffs, flag).
			Value(flag).
			Build()
	}
	return flag, nil
}

// DecodeResult reads a result receive buffer at ptr. On the ok branch the
// payload is decoded by ok. On the error branch the i32 discriminant is
// mapped through errs into a *errors.DomainError. A nil errs means the
// error carries no value.
func DecodeResult[T any](d *Decoder, ptr uint32, l Layout, errs *EnumTable, ok PayloadFunc[T]) (T, error) {
	var zero T
	v := d.View()
	flag, err := readFlag(v, ptr, l)
	if err != nil {
		return zero, err
	}
	if flag == 1 {
		return ok(v, ptr)
	}
	if errs == nil {
		return zero, errors.Domain(typeName(l.Type), UnitError)
	}
	disc, err := v.I32(ptr)
	if err != nil {
		return zero, err
	}
	name, err := errs.Name(disc)
	if err != nil {
		return zero, err
	}
	return zero, errors.Domain(errs.TypeName(), name)
}

// DecodeOptionFlag reads a flag-byte option at ptr.
func DecodeOptionFlag[T any](d *Decoder, ptr uint32, l Layout, some PayloadFunc[T]) (T, bool, error) {
	var zero T
	v := d.View()
	flag, err := readFlag(v, ptr, l)
	if err != nil || flag == 0 {
		return zero, false, err
	}
	val, err := some(v, ptr)
	if err != nil {
		return zero, false, err
	}
	return val, true, nil
}

// OptionHandle interprets a pointer-word option. Zero means absent.
func OptionHandle(ptr uint32) (uint32, bool) {
	return ptr, ptr != 0
}

// DecodeEnum reads an i32 at offset and maps it through table.
func (d *Decoder) DecodeEnum(offset uint32, table *EnumTable) (string, error) {
	disc, err := d.View().I32(offset)
	if err != nil {
		return "", err
	}
	return table.Name(disc)
}

// EnumValue maps a discriminant returned directly by a call.
func EnumValue(ret uint64, table *EnumTable) (string, error) {
	return table.Name(int32(uint32(ret)))
}

// RecordField is one decoded struct field.
type RecordField struct {
	Value any
	Name  string
}

// Record is a decoded struct with fields in declaration order.
type Record []RecordField

// Get returns the named field value.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns field names in order.
func (r Record) Names() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}

// EnumSet supplies tables for enum fields, keyed by enum type name. Enums
// missing from the set are decoded with a table built from their WIT cases.
type EnumSet map[string]*EnumTable

// DecodeStruct reads a record laid out by l at ptr. Primitive fields decode
// to their Go type, enums to their case name, strings to string, handles
// to uint32, options to nil or the value, nested records to Record.
func (d *Decoder) DecodeStruct(ptr uint32, l Layout, enums EnumSet) (Record, error) {
	out := make(Record, 0, len(l.Fields))
	for _, f := range l.Fields {
		val, err := d.decodeValue(ptr+f.Offset, f.Type, enums)
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(f.Name).
				Cause(err).
				Build()
		}
		out = append(out, RecordField{Name: f.Name, Value: val})
	}
	return out, nil
}

func primitive(t wit.Type) (memview.Element, bool) {
	switch t.(type) {
	case wit.Bool:
		return memview.ElemBool, true
	case wit.U8:
		return memview.ElemU8, true
	case wit.S8:
		return memview.ElemI8, true
	case wit.U16:
		return memview.ElemU16, true
	case wit.S16:
		return memview.ElemI16, true
	case wit.U32:
		return memview.ElemU32, true
	case wit.S32, wit.Char:
		return memview.ElemI32, true
	case wit.U64:
		return memview.ElemU64, true
	case wit.S64:
		return memview.ElemI64, true
	case wit.F32:
		return memview.ElemF32, true
	case wit.F64:
		return memview.ElemF64, true
	}
	return 0, false
}

func (d *Decoder) decodeValue(addr uint32, t wit.Type, enums EnumSet) (any, error) {
	v := d.View()
	if elem, ok := primitive(t); ok {
		return v.Load(elem, addr)
	}

	if _, ok := t.(wit.String); ok {
		ptr, err := v.Ptr(addr)
		if err != nil {
			return nil, err
		}
		n, err := v.U32(addr + memview.PtrSize)
		if err != nil {
			return nil, err
		}
		return DecodeText(d.mem, ptr, n, UTF8)
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseDecode, "field type "+typeName(t))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		l, err := d.layouts.Struct(td)
		if err != nil {
			return nil, err
		}
		return d.DecodeStruct(addr, l, enums)
	case *wit.Enum:
		table := enums[pascal(typeName(td))]
		if table == nil {
			table = enums[typeName(td)]
		}
		if table == nil {
			var err error
			if table, err = EnumFromWIT(td); err != nil {
				return nil, err
			}
		}
		return d.DecodeEnum(addr, table)
	case *wit.Own, *wit.Borrow:
		return v.Ptr(addr)
	case *wit.Option:
		l := d.layouts.Option(kind.Type)
		if l.Nullable {
			ptr, err := v.Ptr(addr)
			if err != nil || ptr == 0 {
				return nil, err
			}
			return ptr, nil
		}
		val, present, err := DecodeOptionFlag(d, addr, l, func(_ memview.View, base uint32) (any, error) {
			return d.decodeValue(base, kind.Type, enums)
		})
		if err != nil || !present {
			return nil, err
		}
		return val, nil
	case wit.Type:
		return d.decodeValue(addr, kind, enums)
	}
	return nil, errors.Unsupported(errors.PhaseDecode, "field type "+typeName(td))
}
