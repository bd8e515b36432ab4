package bridge

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/lifetime"
	"github.com/wippyai/wasm-ffi/transcoder"
)

type argument struct {
	buf    *transcoder.Buffer
	name   string
	policy lifetime.Policy
	tied   bool
}

// Scope gathers the buffers of one call. End must run after the call,
// usually deferred, and releases them according to their policies.
type Scope struct {
	b     *Bridge
	recv  *transcoder.AllocationList
	op    string
	args  []argument
	ended bool
}

// Begin starts a call of op. Releases queued by the collector run first.
func (b *Bridge) Begin(op string) *Scope {
	b.tracker.Drain()
	return &Scope{b: b, op: op, recv: transcoder.NewAllocationList()}
}

// Op returns the operation name.
func (s *Scope) Op() string { return s.op }

func (s *Scope) add(arg string, buf *transcoder.Buffer) *transcoder.Buffer {
	s.args = append(s.args, argument{
		buf:    buf,
		name:   arg,
		policy: s.b.policies.Lookup(s.op, arg),
	})
	return buf
}

func (s *Scope) wrap(arg string, err error) error {
	if errors.IsProtocolViolation(err) {
		return err
	}
	return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
		Op(s.op).
		Path(arg).
		Cause(err).
		Build()
}

// Text encodes a string argument.
func (s *Scope) Text(arg, v string, enc transcoder.Encoding) (*transcoder.Buffer, error) {
	buf, err := s.b.enc.EncodeText(v, enc)
	if err != nil {
		return nil, s.wrap(arg, err)
	}
	return s.add(arg, buf), nil
}

// UTF16 encodes raw UTF-16 code units.
func (s *Scope) UTF16(arg string, units []uint16) (*transcoder.Buffer, error) {
	buf, err := s.b.enc.EncodeUTF16(units)
	if err != nil {
		return nil, s.wrap(arg, err)
	}
	return s.add(arg, buf), nil
}

// Bytes encodes a byte slice argument.
func (s *Scope) Bytes(arg string, v []byte) (*transcoder.Buffer, error) {
	buf, err := s.b.enc.EncodeBytes(v)
	if err != nil {
		return nil, s.wrap(arg, err)
	}
	return s.add(arg, buf), nil
}

// Strings encodes a string array argument.
func (s *Scope) Strings(arg string, list []string, enc transcoder.Encoding) (*transcoder.Buffer, error) {
	buf, err := s.b.enc.EncodeStringArray(list, enc)
	if err != nil {
		return nil, s.wrap(arg, err)
	}
	return s.add(arg, buf), nil
}

// ScopeSlice encodes a numeric slice argument.
func ScopeSlice[T transcoder.Element](s *Scope, arg string, list []T) (*transcoder.Buffer, error) {
	buf, err := transcoder.EncodeSlice(s.b.enc, list)
	if err != nil {
		return nil, s.wrap(arg, err)
	}
	return s.add(arg, buf), nil
}

// Receive allocates a receive buffer for l. It is freed by End.
func (s *Scope) Receive(l transcoder.Layout) (uint32, error) {
	return s.ReceiveRaw(l.Size, l.Align)
}

// ReceiveRaw allocates a receive buffer of size bytes.
func (s *Scope) ReceiveRaw(size, align uint32) (uint32, error) {
	ptr, err := s.b.inst.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseCall, errors.KindAllocation).
			Op(s.op).
			Cause(err).
			Build()
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, align)
	}
	s.recv.Add(ptr, size, align)
	return ptr, nil
}

// Invoke calls the operation's export.
func (s *Scope) Invoke(ctx context.Context, params ...uint64) ([]uint64, error) {
	if s.ended {
		return nil, errors.Closed(errors.PhaseCall, "scope "+s.op)
	}
	return s.b.call(ctx, s.op, params)
}

// Invoke1 calls the export and returns its single result.
func (s *Scope) Invoke1(ctx context.Context, params ...uint64) (uint64, error) {
	res, err := s.Invoke(ctx, params...)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseCall, errors.KindLayout).
			Op(s.op).
			Detail("expected 1 result, got %d", len(res)).
			Build()
	}
	return res[0], nil
}

// Tie registers the scope's GC-tied buffers against owner, which then
// keeps them alive through its edges.
func (s *Scope) Tie(owner lifetime.Anchor) error {
	for i := range s.args {
		a := &s.args[i]
		if a.policy != lifetime.GCTied || a.tied {
			continue
		}
		if err := s.b.tracker.Apply(lifetime.GCTied, a.buf, owner); err != nil {
			return err
		}
		a.tied = true
	}
	return nil
}

// End releases argument buffers by policy and frees receive buffers. GC-tied
// buffers that were never tied are freed, since nothing can borrow them.
// Only the first call has an effect.
func (s *Scope) End() {
	if s.ended {
		return
	}
	s.ended = true

	for _, a := range s.args {
		policy := a.policy
		switch {
		case a.tied:
			continue
		case policy == lifetime.GCTied:
			s.b.logger.Debug("gc_tied argument without owner freed",
				zap.String("op", s.op), zap.String("arg", a.name))
			policy = lifetime.FreeAfterCall
		}
		if err := s.b.tracker.Apply(policy, a.buf, nil); err != nil {
			s.b.logger.Warn("argument release failed",
				zap.String("op", s.op), zap.String("arg", a.name), zap.Error(err))
		}
	}
	s.args = nil
	s.recv.FreeAndRelease(s.b.inst)
	s.recv = nil
}

// Result decodes a result receive buffer using the operation's declared
// error enum.
func Result[T any](s *Scope, rb uint32, l transcoder.Layout, ok transcoder.PayloadFunc[T]) (T, error) {
	v, err := transcoder.DecodeResult(s.b.dec, rb, l, s.b.ErrorTable(s.op), ok)
	if err != nil {
		var de *errors.DomainError
		if stderrors.As(err, &de) {
			de.Op = s.op
		}
	}
	return v, err
}

// OptionFlag decodes a flag-byte option receive buffer. Absent yields the
// zero value and false.
func OptionFlag[T any](s *Scope, rb uint32, l transcoder.Layout, some transcoder.PayloadFunc[T]) (T, bool, error) {
	return transcoder.DecodeOptionFlag(s.b.dec, rb, l, some)
}
