// Package handle wraps opaque module objects.
//
// An Opaque holds a handle (a pointer word into module memory) and, when
// owned, the destructor that frees it. Owned wrappers are released exactly
// once: by Close, or after they become unreachable through the tracker's
// finalizer. Borrowed wrappers never release. Edges keep the objects a
// wrapper borrows from alive for as long as the wrapper is.
//
// A wrapper that other live wrappers borrow from is never destroyed while
// they are: Close on it only marks it closed, and the destructor runs once
// the last borrower has been released.
package handle

import (
	"sync"

	"github.com/wippyai/wasm-ffi/lifetime"
)

// state is the part of a wrapper its release needs. The tracker holds it,
// so it must not reference the Opaque.
type state struct {
	destroy   func(uint32)
	sources   []*state
	mu        sync.Mutex
	handle    uint32
	borrowers int
	closing   bool
	released  bool
}

// borrow records a new borrower. It fails once s has been released.
func (s *state) borrow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.borrowers++
	return true
}

func (s *state) unborrow() {
	s.mu.Lock()
	s.borrowers--
	fire := s.borrowers == 0 && s.closing && !s.released
	if fire {
		s.released = true
	}
	s.mu.Unlock()

	if fire {
		s.finish()
	}
}

// request asks for the release. It is deferred while borrowers remain and
// reports whether the release ran now.
func (s *state) request() bool {
	s.mu.Lock()
	s.closing = true
	if s.released || s.borrowers > 0 {
		s.mu.Unlock()
		return false
	}
	s.released = true
	s.mu.Unlock()

	s.finish()
	return true
}

func (s *state) finish() {
	if s.destroy != nil {
		s.destroy(s.handle)
	}
	s.mu.Lock()
	sources := s.sources
	s.sources = nil
	s.mu.Unlock()
	for _, src := range sources {
		src.unborrow()
	}
}

// Opaque is a host-side wrapper around a module object handle.
type Opaque struct {
	tracker *lifetime.Tracker
	st      *state
	reg     *lifetime.Registration
	edges   []any
	mu      sync.Mutex
	owned   bool
	closed  bool
}

// New wraps h. When owned, destroy runs once with h, either on Close or
// after the wrapper is collected. destroy must not reference the wrapper.
func New(tracker *lifetime.Tracker, h uint32, owned bool, destroy func(uint32), edges ...any) *Opaque {
	st := &state{handle: h}
	if owned {
		st.destroy = destroy
	}
	o := &Opaque{tracker: tracker, st: st, owned: owned}
	for _, e := range edges {
		o.addEdge(e)
	}
	if st.destroy != nil {
		o.track()
	}
	return o
}

// track registers the release with the tracker. Called with o.mu held or
// before o is shared.
func (o *Opaque) track() {
	if o.reg != nil || o.tracker == nil {
		return
	}
	st := o.st
	o.reg = o.tracker.Track(o, func() { st.request() })
}

func (o *Opaque) addEdge(target any) {
	o.edges = append(o.edges, target)
	src, ok := target.(*Opaque)
	if !ok || src == o {
		return
	}
	if !src.st.borrow() {
		return
	}
	o.st.mu.Lock()
	o.st.sources = append(o.st.sources, src.st)
	o.st.mu.Unlock()
	// a borrower must give its sources back even if nothing destroys it
	o.track()
}

// Handle returns the raw handle. It is 0 after Close.
func (o *Opaque) Handle() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0
	}
	return o.st.handle
}

// Owned reports whether the wrapper releases the handle.
func (o *Opaque) Owned() bool {
	return o.owned
}

// Edges returns the values this wrapper keeps alive.
func (o *Opaque) Edges() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]any(nil), o.edges...)
}

// AddEdge keeps target alive for the wrapper's lifetime. A target that is
// itself an Opaque is not destroyed before this wrapper is released.
func (o *Opaque) AddEdge(target any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.edges = append(o.edges, target)
		return
	}
	o.addEdge(target)
}

// Borrowers returns the number of live wrappers borrowing from o.
func (o *Opaque) Borrowers() int {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	return o.st.borrowers
}

// Close releases the handle. While other wrappers borrow from o the
// destructor is deferred until the last of them is released; o reads as
// closed either way. Later calls do nothing.
func (o *Opaque) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	reg := o.reg
	o.reg = nil
	o.mu.Unlock()

	var now bool
	if reg != nil {
		// the tracker runs request; a deferred release is finished by the
		// last borrower instead
		reg.Release()
		now = o.Released()
	} else {
		now = o.st.request()
	}
	if now {
		o.mu.Lock()
		o.edges = nil
		o.mu.Unlock()
	}
}

// Closed reports whether Close has run.
func (o *Opaque) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Released reports whether the release has run, so the destructor (if
// any) has been called and borrowed sources given back.
func (o *Opaque) Released() bool {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	return o.st.released
}

var (
	_ lifetime.Anchor = (*Opaque)(nil)
	_ lifetime.Edger  = (*Opaque)(nil)
)
