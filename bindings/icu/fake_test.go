package icu

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"

	"github.com/wippyai/wasm-ffi/internal/testmodule"
)

// fakeICU implements the manifest's exports in Go on top of a testmodule.
// Objects are 8-byte allocations so leaks and double frees show up in the
// module's bookkeeping.
type fakeICU struct {
	m         *testmodule.Module
	objects   map[uint32]any
	destroyed map[string]int
}

type (
	fakeLocale   struct{ tag string }
	fakeDate     struct{ t time.Time }
	fakeDecimal  struct{ s string }
	fakeBidi     struct{}
	fakeBidiInfo struct{ ptr, n uint32 }
	fakePara     struct {
		info       uint32
		start, end uint32
	}
	fakeCollator struct{}
	fakeSet      struct{}
	fakeList     struct{ length ListLength }
)

var (
	languageRe = regexp.MustCompile(`^[A-Za-z]{2,3}$`)
	scriptRe   = regexp.MustCompile(`^[A-Za-z]{4}$`)
	regionRe   = regexp.MustCompile(`^([A-Za-z]{2}|[0-9]{3})$`)
	decimalRe  = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)
)

func installFake(m *testmodule.Module) *fakeICU {
	f := &fakeICU{m: m, objects: make(map[uint32]any), destroyed: make(map[string]int)}

	f.export("icu4x_Locale_from_string_mv1", func(p []uint64) (uint64, error) {
		tag, code := parseLocale(f.str(p[1], p[2]))
		if code >= 0 {
			f.writeErr(p[0], code)
			return 0, nil
		}
		f.writeOk(p[0], f.newObject(&fakeLocale{tag: tag}))
		return 0, nil
	})
	f.export("icu4x_Locale_to_string_mv1", func(p []uint64) (uint64, error) {
		loc, err := get[*fakeLocale](f, p[0])
		if err != nil {
			return 0, err
		}
		return 0, f.m.SinkWrite(uint32(p[1]), []byte(loc.tag))
	})
	f.export("icu4x_Locale_clone_mv1", func(p []uint64) (uint64, error) {
		loc, err := get[*fakeLocale](f, p[0])
		if err != nil {
			return 0, err
		}
		return uint64(f.newObject(&fakeLocale{tag: loc.tag})), nil
	})
	f.destructor("icu4x_Locale_destroy_mv1", "Locale")

	f.export("icu4x_Date_from_codes_in_calendar_mv1", func(p []uint64) (uint64, error) {
		era := f.str(p[1], p[2])
		year := int32(uint32(p[3]))
		mc := f.str(p[4], p[5])
		day := int(p[6])
		switch {
		case era == "":
			f.writeErr(p[0], 0)
		case era != "gregory" && era != "ce":
			f.writeErr(p[0], 3)
		default:
			month, ok := parseMonthCode(mc)
			if !ok {
				f.writeErr(p[0], 2)
				return 0, nil
			}
			t := time.Date(int(year), time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if day < 1 || t.Day() != day {
				f.writeErr(p[0], 1)
				return 0, nil
			}
			f.writeOk(p[0], f.newObject(&fakeDate{t: t}))
		}
		return 0, nil
	})
	f.export("icu4x_Date_month_code_mv1", func(p []uint64) (uint64, error) {
		d, err := get[*fakeDate](f, p[0])
		if err != nil {
			return 0, err
		}
		return 0, f.m.SinkWrite(uint32(p[1]), []byte(fmt.Sprintf("M%02d", int(d.t.Month()))))
	})
	f.export("icu4x_Date_iso_fields_mv1", func(p []uint64) (uint64, error) {
		d, err := get[*fakeDate](f, p[1])
		if err != nil {
			return 0, err
		}
		rb := uint32(p[0])
		mem := f.m.Mem()
		_ = mem.WriteU32(rb, uint32(int32(d.t.Year())))
		_ = mem.WriteU8(rb+4, uint8(d.t.Month()))
		_ = mem.WriteU8(rb+5, uint8(d.t.Day()))
		return 0, nil
	})
	f.export("icu4x_Date_day_of_week_mv1", func(p []uint64) (uint64, error) {
		d, err := get[*fakeDate](f, p[0])
		if err != nil {
			return 0, err
		}
		wd := int(d.t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return uint64(wd), nil
	})
	f.destructor("icu4x_Date_destroy_mv1", "Date")

	f.export("icu4x_FixedDecimal_from_int64_mv1", func(p []uint64) (uint64, error) {
		return uint64(f.newObject(&fakeDecimal{s: strconv.FormatInt(int64(p[0]), 10)})), nil
	})
	f.export("icu4x_FixedDecimal_from_string_mv1", func(p []uint64) (uint64, error) {
		s := f.str(p[1], p[2])
		switch {
		case len(s) > 32:
			f.writeErr(p[0], 1)
		case !decimalRe.MatchString(s):
			f.writeErr(p[0], 2)
		default:
			f.writeOk(p[0], f.newObject(&fakeDecimal{s: strings.TrimPrefix(s, "+")}))
		}
		return 0, nil
	})
	f.export("icu4x_FixedDecimal_to_string_mv1", func(p []uint64) (uint64, error) {
		d, err := get[*fakeDecimal](f, p[0])
		if err != nil {
			return 0, err
		}
		return 0, f.m.SinkWrite(uint32(p[1]), []byte(d.s))
	})
	f.export("icu4x_FixedDecimal_sign_mv1", func(p []uint64) (uint64, error) {
		d, err := get[*fakeDecimal](f, p[0])
		if err != nil {
			return 0, err
		}
		switch {
		case strings.HasPrefix(d.s, "-"):
			return 1, nil
		case strings.Trim(d.s, "0.") == "":
			return 0, nil
		}
		return 2, nil
	})
	f.destructor("icu4x_FixedDecimal_destroy_mv1", "FixedDecimal")

	f.export("icu4x_Bidi_create_mv1", func([]uint64) (uint64, error) {
		return uint64(f.newObject(&fakeBidi{})), nil
	})
	f.export("icu4x_Bidi_for_text_utf8_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeBidi](f, p[0]); err != nil {
			return 0, err
		}
		return uint64(f.newObject(&fakeBidiInfo{ptr: uint32(p[1]), n: uint32(p[2])})), nil
	})
	f.destructor("icu4x_Bidi_destroy_mv1", "Bidi")
	f.export("icu4x_BidiInfo_paragraph_count_mv1", func(p []uint64) (uint64, error) {
		ranges, err := f.paragraphs(uint32(p[0]))
		return uint64(len(ranges)), err
	})
	f.export("icu4x_BidiInfo_size_mv1", func(p []uint64) (uint64, error) {
		info, err := get[*fakeBidiInfo](f, p[0])
		if err != nil {
			return 0, err
		}
		return uint64(info.n), nil
	})
	f.export("icu4x_BidiInfo_paragraph_at_mv1", func(p []uint64) (uint64, error) {
		ranges, err := f.paragraphs(uint32(p[0]))
		if err != nil {
			return 0, err
		}
		n := int(p[1])
		if n >= len(ranges) {
			return 0, nil
		}
		return uint64(f.newObject(&fakePara{info: uint32(p[0]), start: ranges[n][0], end: ranges[n][1]})), nil
	})
	f.destructor("icu4x_BidiInfo_destroy_mv1", "BidiInfo")
	f.export("icu4x_BidiParagraph_direction_mv1", func(p []uint64) (uint64, error) {
		para, err := get[*fakePara](f, p[0])
		if err != nil {
			return 0, err
		}
		text, err := f.bidiText(para.info)
		if err != nil {
			return 0, err
		}
		return uint64(direction(text[para.start:para.end])), nil
	})
	f.export("icu4x_BidiParagraph_range_start_mv1", func(p []uint64) (uint64, error) {
		para, err := get[*fakePara](f, p[0])
		if err != nil {
			return 0, err
		}
		return uint64(para.start), nil
	})
	f.export("icu4x_BidiParagraph_range_end_mv1", func(p []uint64) (uint64, error) {
		para, err := get[*fakePara](f, p[0])
		if err != nil {
			return 0, err
		}
		return uint64(para.end), nil
	})
	f.destructor("icu4x_BidiParagraph_destroy_mv1", "BidiParagraph")

	f.export("icu4x_Collator_create_v1_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeLocale](f, p[0]); err != nil {
			return 0, err
		}
		return uint64(f.newObject(&fakeCollator{})), nil
	})
	f.export("icu4x_Collator_compare_utf16_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeCollator](f, p[0]); err != nil {
			return 0, err
		}
		left := strings.ToLower(f.utf16(p[1], p[2]))
		right := strings.ToLower(f.utf16(p[3], p[4]))
		return uint64(uint32(int32(strings.Compare(left, right)))), nil
	})
	f.destructor("icu4x_Collator_destroy_mv1", "Collator")

	f.export("icu4x_CodePointSetData_create_ascii_hex_digit_mv1", func([]uint64) (uint64, error) {
		return uint64(f.newObject(&fakeSet{})), nil
	})
	f.export("icu4x_CodePointSetData_contains_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeSet](f, p[0]); err != nil {
			return 0, err
		}
		return boolWord(isHexDigit(uint32(p[1]))), nil
	})
	f.export("icu4x_CodePointSetData_contains_all_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeSet](f, p[0]); err != nil {
			return 0, err
		}
		raw := f.m.Bytes(uint32(p[1]), uint32(p[2])*4)
		for i := 0; i < len(raw); i += 4 {
			if !isHexDigit(binary.LittleEndian.Uint32(raw[i:])) {
				return 0, nil
			}
		}
		return 1, nil
	})
	f.destructor("icu4x_CodePointSetData_destroy_mv1", "CodePointSetData")

	f.export("icu4x_ListFormatter_create_and_with_length_mv1", func(p []uint64) (uint64, error) {
		if _, err := get[*fakeLocale](f, p[0]); err != nil {
			return 0, err
		}
		return uint64(f.newObject(&fakeList{length: ListLength(p[1])})), nil
	})
	f.export("icu4x_ListFormatter_format_utf8_mv1", func(p []uint64) (uint64, error) {
		lf, err := get[*fakeList](f, p[0])
		if err != nil {
			return 0, err
		}
		pairs := f.m.Bytes(uint32(p[1]), uint32(p[2])*8)
		items := make([]string, 0, p[2])
		for i := 0; i < len(pairs); i += 8 {
			ptr := binary.LittleEndian.Uint32(pairs[i:])
			n := binary.LittleEndian.Uint32(pairs[i+4:])
			items = append(items, string(f.m.Bytes(ptr, n)))
		}
		return 0, f.m.SinkWrite(uint32(p[3]), []byte(joinList(items, lf.length)))
	})
	f.destructor("icu4x_ListFormatter_destroy_mv1", "ListFormatter")

	return f
}

func (f *fakeICU) export(name string, fn func(p []uint64) (uint64, error)) {
	f.m.Export(name, func(_ context.Context, _ *testmodule.Module, p []uint64) ([]uint64, error) {
		r, err := fn(p)
		if err != nil {
			return nil, err
		}
		return []uint64{r}, nil
	})
}

func (f *fakeICU) destructor(name, typ string) {
	f.export(name, func(p []uint64) (uint64, error) {
		h := uint32(p[0])
		if _, ok := f.objects[h]; !ok {
			return 0, fmt.Errorf("%s: destroy of unknown object %d", typ, h)
		}
		delete(f.objects, h)
		f.m.Free(h, 8, 4)
		f.destroyed[typ]++
		return 0, nil
	})
}

func (f *fakeICU) newObject(v any) uint32 {
	h, err := f.m.Alloc(8, 4)
	if err != nil || h == 0 {
		panic("fake: object allocation failed")
	}
	f.objects[h] = v
	return h
}

func get[T any](f *fakeICU, h uint64) (T, error) {
	v, ok := f.objects[uint32(h)].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("fake: bad handle %d", h)
	}
	return v, nil
}

// buffers returns live allocations that are not objects.
func (f *fakeICU) buffers() []testmodule.Allocation {
	var out []testmodule.Allocation
	for _, a := range f.m.Live() {
		if _, ok := f.objects[a.Ptr]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeICU) str(ptr, n uint64) string {
	return string(f.m.Bytes(uint32(ptr), uint32(n)))
}

func (f *fakeICU) utf16(ptr, n uint64) string {
	raw := f.m.Bytes(uint32(ptr), uint32(n)*2)
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units))
}

func (f *fakeICU) writeOk(rb uint64, h uint32) {
	mem := f.m.Mem()
	_ = mem.WriteU32(uint32(rb), h)
	_ = mem.WriteU8(uint32(rb)+4, 1)
}

func (f *fakeICU) writeErr(rb uint64, code int32) {
	mem := f.m.Mem()
	_ = mem.WriteU32(uint32(rb), uint32(code))
	_ = mem.WriteU8(uint32(rb)+4, 0)
}

// bidiText reads the borrowed text of a BidiInfo. It fails if the host has
// already freed the buffer.
func (f *fakeICU) bidiText(h uint32) (string, error) {
	info, err := get[*fakeBidiInfo](f, uint64(h))
	if err != nil {
		return "", err
	}
	if info.n > 0 && !f.m.IsLive(info.ptr) {
		return "", fmt.Errorf("fake: borrowed text at %d was freed", info.ptr)
	}
	return string(f.m.Bytes(info.ptr, info.n)), nil
}

func (f *fakeICU) paragraphs(h uint32) ([][2]uint32, error) {
	text, err := f.bidiText(h)
	if err != nil {
		return nil, err
	}
	var out [][2]uint32
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if i > start || i < len(text) {
				out = append(out, [2]uint32{uint32(start), uint32(i)})
			}
			start = i + 1
		}
	}
	return out, nil
}

func parseLocale(s string) (string, int32) {
	if strings.ContainsRune(s, 0) {
		return "", 0
	}
	parts := strings.Split(s, "-")
	if !languageRe.MatchString(parts[0]) {
		return "", 1
	}
	out := []string{strings.ToLower(parts[0])}
	for _, p := range parts[1:] {
		switch {
		case len(p) == 1:
			return "", 3
		case scriptRe.MatchString(p):
			out = append(out, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
		case regionRe.MatchString(p):
			out = append(out, strings.ToUpper(p))
		default:
			return "", 2
		}
	}
	return strings.Join(out, "-"), -1
}

func parseMonthCode(s string) (int, bool) {
	if len(s) != 3 || s[0] != 'M' {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return n, true
}

func direction(text string) int {
	var ltr, rtl bool
	for _, r := range text {
		switch {
		case r >= 0x0590 && r <= 0x08ff:
			rtl = true
		case unicode.IsLetter(r):
			ltr = true
		}
	}
	switch {
	case rtl && ltr:
		return 2
	case rtl:
		return 1
	}
	return 0
}

func isHexDigit(cp uint32) bool {
	return (cp >= '0' && cp <= '9') || (cp >= 'a' && cp <= 'f') || (cp >= 'A' && cp <= 'F')
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func joinList(items []string, length ListLength) string {
	conj := ", and "
	pair := " and "
	switch length {
	case ListShort:
		conj, pair = ", & ", " & "
	case ListNarrow:
		conj, pair = ", ", ", "
	}
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + pair + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + conj + items[len(items)-1]
}
