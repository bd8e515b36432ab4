package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/transcoder"
)

var decimalResult = transcoder.ResultLayout(transcoder.Handle("FixedDecimal"), errorEnum("FixedDecimalParseError"))

// FixedDecimal is an arbitrary-precision decimal.
type FixedDecimal struct {
	object
}

func (l *Lib) NewFixedDecimal(ctx context.Context, v int64) (*FixedDecimal, error) {
	res, err := l.b.Call(ctx, "FixedDecimal.from_int64", uint64(v))
	if err != nil {
		return nil, err
	}
	obj, err := l.own(uint32(res[0]), "FixedDecimal")
	if err != nil {
		return nil, err
	}
	return &FixedDecimal{obj}, nil
}

// FixedDecimalFromString parses a decimal such as "-12.50".
func (l *Lib) FixedDecimalFromString(ctx context.Context, v string) (*FixedDecimal, error) {
	s := l.b.Begin("FixedDecimal.from_string")
	defer s.End()

	buf, err := s.Text("v", v, transcoder.UTF8)
	if err != nil {
		return nil, err
	}
	rb, err := s.Receive(decimalResult)
	if err != nil {
		return nil, err
	}
	if _, err := s.Invoke(ctx, uint64(rb), uint64(buf.Ptr), uint64(buf.Len)); err != nil {
		return nil, err
	}
	h, err := bridge.Result(s, rb, decimalResult, transcoder.HandlePayload)
	if err != nil {
		return nil, err
	}
	obj, err := l.own(h, "FixedDecimal")
	if err != nil {
		return nil, err
	}
	return &FixedDecimal{obj}, nil
}

func (f *FixedDecimal) String(ctx context.Context) (string, error) {
	h, err := f.ptr()
	if err != nil {
		return "", err
	}
	b := f.lib.b
	return b.WithWriteSink(ctx, func(w uint32) error {
		_, err := b.Call(ctx, "FixedDecimal.to_string", uint64(h), uint64(w))
		return err
	})
}

// Sign returns "None", "Negative" or "Positive".
func (f *FixedDecimal) Sign(ctx context.Context) (string, error) {
	h, err := f.ptr()
	if err != nil {
		return "", err
	}
	res, err := f.lib.b.Call(ctx, "FixedDecimal.sign", uint64(h))
	if err != nil {
		return "", err
	}
	return f.lib.b.Enum(res[0], "FixedDecimalSign")
}
