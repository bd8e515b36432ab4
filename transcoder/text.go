package transcoder

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/memview"
)

// Encoding selects the text encoding a parameter expects.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16
)

func (e Encoding) String() string {
	if e == UTF16 {
		return "utf16"
	}
	return "utf8"
}

// Unit returns the code unit size in bytes, which is also the alignment.
func (e Encoding) Unit() uint32 {
	if e == UTF16 {
		return 2
	}
	return 1
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// sanitize replaces invalid UTF-8 with U+FFFD so the module only ever sees
// well-formed text.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// EncodedLen returns the number of code units s occupies in enc.
func EncodedLen(s string, enc Encoding) uint32 {
	s = sanitize(s)
	if enc == UTF8 {
		return uint32(len(s))
	}
	var n uint32
	for _, r := range s {
		n += uint32(utf16.RuneLen(r))
	}
	return n
}

// encodeText appends the encoded form of s to dst.
func encodeText(dst []byte, s string, enc Encoding) ([]byte, error) {
	s = sanitize(s)
	if enc == UTF8 {
		return append(dst, s...), nil
	}
	b, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}

// DecodeText reads n code units at ptr and decodes them. Unpaired
// surrogates in UTF-16 input decode to U+FFFD.
func DecodeText(mem Memory, ptr, n uint32, enc Encoding) (string, error) {
	if n == 0 {
		return "", nil
	}
	size, ok := safeMul(n, enc.Unit())
	if !ok {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("text length %d overflows", n).
			Build()
	}
	raw, err := memview.New(mem).Alias(ptr, size)
	if err != nil {
		return "", err
	}
	if enc == UTF8 {
		return string(raw), nil
	}
	out, err := utf16LE.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "utf16 decode")
	}
	return string(out), nil
}

// DecodeUTF16Units reads n UTF-16 code units verbatim.
func DecodeUTF16Units(mem Memory, ptr, n uint32) ([]uint16, error) {
	v := memview.New(mem)
	out := make([]uint16, n)
	for i := uint32(0); i < n; i++ {
		u, err := v.U16(ptr + 2*i)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}
