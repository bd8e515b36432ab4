package main

import (
	"context"
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/manifest"
	"github.com/wippyai/wasm-ffi/memview"
	"github.com/wippyai/wasm-ffi/transcoder"
)

// opCall invokes one operation generically. String arguments become
// (ptr, len) pairs, a declared error enum adds a leading result buffer
// with a u32 payload, and sink operations get the sink as last parameter.
type opCall struct {
	op manifest.Operation
}

var u32Result = transcoder.ResultLayout(wit.U32{}, &wit.TypeDef{Kind: &wit.Enum{}})

func newCall(man *manifest.Manifest, name string) opCall {
	if man != nil {
		if op, ok := man.Operation(name); ok {
			return opCall{op: op}
		}
	}
	return opCall{op: manifest.Operation{Name: name, Export: name}}
}

func (c opCall) describe() string {
	var params []string
	if c.op.Error != "" {
		params = append(params, "&result")
	}
	for _, a := range c.op.Args {
		p := a.Name + ": " + a.TextEncoding().String()
		if a.Policy != "" {
			p += " [" + a.Policy + "]"
		}
		params = append(params, p)
	}
	params = append(params, "...ints")
	if c.op.Sink {
		params = append(params, "&sink")
	}
	out := c.op.Name + "(" + strings.Join(params, ", ") + ")"
	if c.op.Error != "" {
		out += " -> result<u32, " + c.op.Error + ">"
	}
	return out
}

func (c opCall) run(ctx context.Context, b *bridge.Bridge, texts []string, ints []uint64) (string, error) {
	if len(texts) > len(c.op.Args) && len(c.op.Args) > 0 {
		return "", fmt.Errorf("%d strings given, %s declares %d", len(texts), c.op.Name, len(c.op.Args))
	}

	s := b.Begin(c.op.Name)
	defer s.End()

	var params []uint64
	var rb uint32
	if c.op.Error != "" {
		var err error
		if rb, err = s.Receive(u32Result); err != nil {
			return "", err
		}
		params = append(params, uint64(rb))
	}
	for i, text := range texts {
		arg := fmt.Sprintf("arg%d", i)
		enc := transcoder.UTF8
		if i < len(c.op.Args) {
			arg = c.op.Args[i].Name
			enc = c.op.Args[i].TextEncoding()
		}
		buf, err := s.Text(arg, text, enc)
		if err != nil {
			return "", err
		}
		params = append(params, uint64(buf.Ptr), uint64(buf.Len))
	}
	params = append(params, ints...)

	if c.op.Sink {
		return b.WithWriteSink(ctx, func(w uint32) error {
			_, err := s.Invoke(ctx, append(params, uint64(w))...)
			return err
		})
	}

	res, err := s.Invoke(ctx, params...)
	if err != nil {
		return "", err
	}
	if c.op.Error != "" {
		v, err := bridge.Result(s, rb, u32Result, func(v memview.View, base uint32) (uint32, error) {
			return v.U32(base)
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ok(%d)", v), nil
	}
	return formatResults(res), nil
}

func formatResults(res []uint64) string {
	switch len(res) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("%d", res[0])
	}
	parts := make([]string, len(res))
	for i, r := range res {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
