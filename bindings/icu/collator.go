package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/transcoder"
)

// Collator compares strings in a locale's order.
type Collator struct {
	object
}

// NewCollator creates a collator for loc. loc is only borrowed for the call.
func (l *Lib) NewCollator(ctx context.Context, loc *Locale) (*Collator, error) {
	lh, err := loc.ptr()
	if err != nil {
		return nil, err
	}
	res, err := l.b.Call(ctx, "Collator.create", uint64(lh))
	if err != nil {
		return nil, err
	}
	obj, err := l.own(uint32(res[0]), "Collator")
	if err != nil {
		return nil, err
	}
	return &Collator{obj}, nil
}

// CompareUTF16 orders two UTF-16 strings: -1, 0 or 1.
func (c *Collator) CompareUTF16(ctx context.Context, left, right []uint16) (int, error) {
	h, err := c.ptr()
	if err != nil {
		return 0, err
	}
	s := c.lib.b.Begin("Collator.compare_utf16")
	defer s.End()

	lb, err := s.UTF16("left", left)
	if err != nil {
		return 0, err
	}
	rb, err := s.UTF16("right", right)
	if err != nil {
		return 0, err
	}
	ret, err := s.Invoke1(ctx, uint64(h), uint64(lb.Ptr), uint64(lb.Len), uint64(rb.Ptr), uint64(rb.Len))
	if err != nil {
		return 0, err
	}
	return int(int8(ret)), nil
}

// Compare orders two Go strings, transcoding them to UTF-16.
func (c *Collator) Compare(ctx context.Context, left, right string) (int, error) {
	h, err := c.ptr()
	if err != nil {
		return 0, err
	}
	s := c.lib.b.Begin("Collator.compare_utf16")
	defer s.End()

	lb, err := s.Text("left", left, transcoder.UTF16)
	if err != nil {
		return 0, err
	}
	rb, err := s.Text("right", right, transcoder.UTF16)
	if err != nil {
		return 0, err
	}
	ret, err := s.Invoke1(ctx, uint64(h), uint64(lb.Ptr), uint64(lb.Len), uint64(rb.Ptr), uint64(rb.Len))
	if err != nil {
		return 0, err
	}
	return int(int8(ret)), nil
}
