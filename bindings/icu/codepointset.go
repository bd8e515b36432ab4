package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/bridge"
)

// CodePointSet is a set of code points backed by property data.
type CodePointSet struct {
	object
}

// ASCIIHexDigit returns the ASCII_Hex_Digit property set.
func (l *Lib) ASCIIHexDigit(ctx context.Context) (*CodePointSet, error) {
	res, err := l.b.Call(ctx, "CodePointSetData.ascii_hex_digit")
	if err != nil {
		return nil, err
	}
	obj, err := l.own(uint32(res[0]), "CodePointSetData")
	if err != nil {
		return nil, err
	}
	return &CodePointSet{obj}, nil
}

func (c *CodePointSet) Contains(ctx context.Context, cp rune) (bool, error) {
	h, err := c.ptr()
	if err != nil {
		return false, err
	}
	res, err := c.lib.b.Call(ctx, "CodePointSetData.contains", uint64(h), uint64(uint32(cp)))
	if err != nil {
		return false, err
	}
	return res[0]&0xff != 0, nil
}

// ContainsAll reports whether every code point is in the set. The list is
// passed as a slice of u32.
func (c *CodePointSet) ContainsAll(ctx context.Context, cps []uint32) (bool, error) {
	h, err := c.ptr()
	if err != nil {
		return false, err
	}
	s := c.lib.b.Begin("CodePointSetData.contains_all")
	defer s.End()

	buf, err := bridge.ScopeSlice(s, "code_points", cps)
	if err != nil {
		return false, err
	}
	ret, err := s.Invoke1(ctx, uint64(h), uint64(buf.Ptr), uint64(buf.Len))
	if err != nil {
		return false, err
	}
	return ret&0xff != 0, nil
}
