package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/transcoder"
)

// Bidi runs the Unicode bidirectional algorithm.
type Bidi struct {
	object
}

// BidiInfo is the result of running Bidi over a text. It borrows the text
// buffer, which stays allocated until the BidiInfo is released.
type BidiInfo struct {
	object
}

// BidiParagraph is one paragraph of a BidiInfo. It keeps the BidiInfo alive.
type BidiParagraph struct {
	object
}

func (l *Lib) NewBidi(ctx context.Context) (*Bidi, error) {
	res, err := l.b.Call(ctx, "Bidi.create")
	if err != nil {
		return nil, err
	}
	obj, err := l.own(uint32(res[0]), "Bidi")
	if err != nil {
		return nil, err
	}
	return &Bidi{obj}, nil
}

// ForText analyses text with the given default paragraph level.
func (b *Bidi) ForText(ctx context.Context, text string, defaultLevel uint8) (*BidiInfo, error) {
	h, err := b.ptr()
	if err != nil {
		return nil, err
	}
	s := b.lib.b.Begin("Bidi.for_text")
	defer s.End()

	buf, err := s.Text("text", text, transcoder.UTF8)
	if err != nil {
		return nil, err
	}
	ret, err := s.Invoke1(ctx, uint64(h), uint64(buf.Ptr), uint64(buf.Len), uint64(defaultLevel))
	if err != nil {
		return nil, err
	}
	obj, err := b.lib.own(uint32(ret), "BidiInfo")
	if err != nil {
		return nil, err
	}
	if err := s.Tie(obj.obj); err != nil {
		obj.Close()
		return nil, err
	}
	return &BidiInfo{obj}, nil
}

func (bi *BidiInfo) call1(ctx context.Context, op string, params ...uint64) (uint32, error) {
	h, err := bi.ptr()
	if err != nil {
		return 0, err
	}
	res, err := bi.lib.b.Call(ctx, op, append([]uint64{uint64(h)}, params...)...)
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (bi *BidiInfo) ParagraphCount(ctx context.Context) (uint32, error) {
	return bi.call1(ctx, "BidiInfo.paragraph_count")
}

// Size returns the length of the text in bytes.
func (bi *BidiInfo) Size(ctx context.Context) (uint32, error) {
	return bi.call1(ctx, "BidiInfo.size")
}

// ParagraphAt returns paragraph n, or false when n is out of range.
func (bi *BidiInfo) ParagraphAt(ctx context.Context, n uint32) (*BidiParagraph, bool, error) {
	ret, err := bi.call1(ctx, "BidiInfo.paragraph_at", uint64(n))
	if err != nil {
		return nil, false, err
	}
	p, ok := transcoder.OptionHandle(ret)
	if !ok {
		return nil, false, nil
	}
	obj, err := bi.lib.own(p, "BidiParagraph", bi.obj)
	if err != nil {
		return nil, false, err
	}
	return &BidiParagraph{obj}, true, nil
}

func (bp *BidiParagraph) call1(ctx context.Context, op string) (uint64, error) {
	h, err := bp.ptr()
	if err != nil {
		return 0, err
	}
	res, err := bp.lib.b.Call(ctx, op, uint64(h))
	if err != nil {
		return 0, err
	}
	return res[0], nil
}

// Direction returns "Ltr", "Rtl" or "Mixed".
func (bp *BidiParagraph) Direction(ctx context.Context) (string, error) {
	ret, err := bp.call1(ctx, "BidiParagraph.direction")
	if err != nil {
		return "", err
	}
	return bp.lib.b.Enum(ret, "BidiDirection")
}

// Range returns the paragraph's byte range in the text.
func (bp *BidiParagraph) Range(ctx context.Context) (start, end uint32, err error) {
	s, err := bp.call1(ctx, "BidiParagraph.range_start")
	if err != nil {
		return 0, 0, err
	}
	e, err := bp.call1(ctx, "BidiParagraph.range_end")
	if err != nil {
		return 0, 0, err
	}
	return uint32(s), uint32(e), nil
}
