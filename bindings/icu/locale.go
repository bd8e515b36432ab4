package icu

import (
	"context"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/transcoder"
)

var localeResult = transcoder.ResultLayout(transcoder.Handle("Locale"), errorEnum("LocaleParseError"))

// Locale is an ICU4X locale such as "en-US".
type Locale struct {
	object
}

// LocaleFromString parses a BCP-47 locale identifier. Parse failures are
// *errors.DomainError values of the LocaleParseError table.
func (l *Lib) LocaleFromString(ctx context.Context, name string) (*Locale, error) {
	s := l.b.Begin("Locale.from_string")
	defer s.End()

	buf, err := s.Text("name", name, transcoder.UTF8)
	if err != nil {
		return nil, err
	}
	rb, err := s.Receive(localeResult)
	if err != nil {
		return nil, err
	}
	if _, err := s.Invoke(ctx, uint64(rb), uint64(buf.Ptr), uint64(buf.Len)); err != nil {
		return nil, err
	}
	h, err := bridge.Result(s, rb, localeResult, transcoder.HandlePayload)
	if err != nil {
		return nil, err
	}
	obj, err := l.own(h, "Locale")
	if err != nil {
		return nil, err
	}
	return &Locale{obj}, nil
}

// String writes the canonical form of the locale.
func (loc *Locale) String(ctx context.Context) (string, error) {
	h, err := loc.ptr()
	if err != nil {
		return "", err
	}
	b := loc.lib.b
	return b.WithWriteSink(ctx, func(w uint32) error {
		_, err := b.Call(ctx, "Locale.to_string", uint64(h), uint64(w))
		return err
	})
}

// Clone returns an independent copy.
func (loc *Locale) Clone(ctx context.Context) (*Locale, error) {
	h, err := loc.ptr()
	if err != nil {
		return nil, err
	}
	res, err := loc.lib.b.Call(ctx, "Locale.clone", uint64(h))
	if err != nil {
		return nil, err
	}
	obj, err := loc.lib.own(uint32(res[0]), "Locale")
	if err != nil {
		return nil, err
	}
	return &Locale{obj}, nil
}
