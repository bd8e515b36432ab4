package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/transcoder"
)

// ListLength selects the list pattern width.
type ListLength uint32

const (
	ListWide ListLength = iota
	ListShort
	ListNarrow
)

// ListFormatter joins lists such as "a, b, and c".
type ListFormatter struct {
	object
}

// NewAndListFormatter creates a conjunction formatter for loc.
func (l *Lib) NewAndListFormatter(ctx context.Context, loc *Locale, length ListLength) (*ListFormatter, error) {
	lh, err := loc.ptr()
	if err != nil {
		return nil, err
	}
	res, err := l.b.Call(ctx, "ListFormatter.create_and", uint64(lh), uint64(length))
	if err != nil {
		return nil, err
	}
	obj, err := l.own(uint32(res[0]), "ListFormatter")
	if err != nil {
		return nil, err
	}
	return &ListFormatter{obj}, nil
}

// Format joins list. The strings are passed as an array of (ptr, len) pairs.
func (f *ListFormatter) Format(ctx context.Context, list []string) (string, error) {
	h, err := f.ptr()
	if err != nil {
		return "", err
	}
	s := f.lib.b.Begin("ListFormatter.format")
	defer s.End()

	arr, err := s.Strings("list", list, transcoder.UTF8)
	if err != nil {
		return "", err
	}
	return f.lib.b.WithWriteSink(ctx, func(w uint32) error {
		_, err := s.Invoke(ctx, uint64(h), uint64(arr.Ptr), uint64(arr.Len), uint64(w))
		return err
	})
}
