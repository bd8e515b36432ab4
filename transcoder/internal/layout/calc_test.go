package layout

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestCalculatePrimitives(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		typ   wit.Type
		name  string
		size  uint32
		align uint32
	}{
		{wit.Bool{}, "bool", 1, 1},
		{wit.U8{}, "u8", 1, 1},
		{wit.S8{}, "s8", 1, 1},
		{wit.U16{}, "u16", 2, 2},
		{wit.S16{}, "s16", 2, 2},
		{wit.U32{}, "u32", 4, 4},
		{wit.S32{}, "s32", 4, 4},
		{wit.U64{}, "u64", 8, 8},
		{wit.S64{}, "s64", 8, 8},
		{wit.F32{}, "f32", 4, 4},
		{wit.F64{}, "f64", 8, 8},
		{wit.Char{}, "char", 4, 4},
		{wit.String{}, "string", 8, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if info.Align != tc.align {
				t.Errorf("align: got %d, want %d", info.Align, tc.align)
			}
		})
	}
}

func TestCalculateRecord(t *testing.T) {
	c := NewCalculator()

	t.Run("empty", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Record{}})
		if info.Size != 0 || info.Align != 1 {
			t.Errorf("got size=%d align=%d, want 0/1", info.Size, info.Align)
		}
	})

	t.Run("iso_date_fields", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "year", Type: wit.S32{}},
				{Name: "month", Type: wit.U8{}},
				{Name: "day", Type: wit.U8{}},
			},
		}})
		if info.Size != 8 || info.Align != 4 {
			t.Errorf("got size=%d align=%d, want 8/4", info.Size, info.Align)
		}
		want := []uint32{0, 4, 5}
		for i, f := range info.Fields {
			if f.Offset != want[i] {
				t.Errorf("field %s offset = %d, want %d", f.Name, f.Offset, want[i])
			}
		}
	})

	t.Run("padding", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "a", Type: wit.U8{}},
				{Name: "b", Type: wit.U64{}},
				{Name: "c", Type: wit.U16{}},
			},
		}})
		if info.FieldOffs["a"] != 0 || info.FieldOffs["b"] != 8 || info.FieldOffs["c"] != 16 {
			t.Errorf("offsets = %v", info.FieldOffs)
		}
		if info.Size != 24 || info.Align != 8 {
			t.Errorf("got size=%d align=%d, want 24/8", info.Size, info.Align)
		}
	})

	t.Run("nested", func(t *testing.T) {
		inner := &wit.TypeDef{Kind: &wit.Record{
			Fields: []wit.Field{{Name: "x", Type: wit.U16{}}},
		}}
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "flag", Type: wit.Bool{}},
				{Name: "inner", Type: inner},
				{Name: "name", Type: wit.String{}},
			},
		}})
		if info.FieldOffs["inner"] != 2 || info.FieldOffs["name"] != 4 {
			t.Errorf("offsets = %v", info.FieldOffs)
		}
		if info.Size != 12 {
			t.Errorf("size = %d, want 12", info.Size)
		}
	})
}

func TestCalculateEnum(t *testing.T) {
	c := NewCalculator()
	info := c.Calculate(&wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}}}})
	if info.Size != 4 || info.Align != 4 {
		t.Errorf("got size=%d align=%d, want 4/4", info.Size, info.Align)
	}
}

func TestCalculateResult(t *testing.T) {
	c := NewCalculator()
	handle := &wit.TypeDef{Kind: &wit.Own{}}
	errEnum := &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "unknown"}}}}

	tests := []struct {
		name  string
		r     *wit.Result
		size  uint32
		align uint32
		flag  uint32
	}{
		{"handle_or_enum", &wit.Result{OK: handle, Err: errEnum}, 5, 4, 4},
		{"unit_or_enum", &wit.Result{Err: errEnum}, 5, 4, 4},
		{"u64_or_enum", &wit.Result{OK: wit.U64{}, Err: errEnum}, 9, 8, 8},
		{"u8_or_unit", &wit.Result{OK: wit.U8{}}, 2, 1, 1},
		{"unit_or_unit", &wit.Result{}, 1, 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(&wit.TypeDef{Kind: tc.r})
			if info.Size != tc.size || info.Align != tc.align || info.FlagOffs != tc.flag {
				t.Errorf("got size=%d align=%d flag=%d, want %d/%d/%d",
					info.Size, info.Align, info.FlagOffs, tc.size, tc.align, tc.flag)
			}
		})
	}
}

func TestCalculateOption(t *testing.T) {
	c := NewCalculator()

	t.Run("u32", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}})
		if info.Size != 5 || info.Align != 4 || info.FlagOffs != 4 || info.Nullable {
			t.Errorf("got %+v", info)
		}
	})

	t.Run("handle", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Option{Type: &wit.TypeDef{Kind: &wit.Borrow{}}}})
		if info.Size != 4 || info.Align != 4 || !info.Nullable {
			t.Errorf("got %+v", info)
		}
	})
}

func TestCalculateUnsupported(t *testing.T) {
	c := NewCalculator()
	variant := &wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{{Name: "a"}}}}

	if info := c.Calculate(variant); !info.Unsupported {
		t.Error("variant should be unsupported")
	}

	rec := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "v", Type: variant}}}}
	if info := c.Calculate(rec); !info.Unsupported {
		t.Error("record with variant field should be unsupported")
	}
}

func TestCaching(t *testing.T) {
	c := NewCalculator()
	td := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "x", Type: wit.U32{}}}}}

	first := c.Calculate(td)
	td.Kind = &wit.Record{}
	second := c.Calculate(td)
	if first.Size != second.Size {
		t.Errorf("cache miss: %d != %d", first.Size, second.Size)
	}
}
