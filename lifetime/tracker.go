package lifetime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
)

// Registration ties a pending release to an owner. The owner must keep
// the registration reachable; once it is not, the finalizer queues the
// release.
type Registration struct {
	tracker *Tracker
	stop    func()
	value   any
	id      ID
}

// ID returns the registration's identifier.
func (r *Registration) ID() ID {
	return r.id
}

// Value returns the value the registration releases, if any.
func (r *Registration) Value() any {
	return r.value
}

// Release runs the release now and cancels the finalizer watch. It reports
// whether this call ran the release.
func (r *Registration) Release() bool {
	if r == nil {
		return false
	}
	r.cancel()
	return r.tracker.release(r.id, false)
}

// Stop cancels the registration without releasing. It reports whether the
// registration was still pending.
func (r *Registration) Stop() bool {
	if r == nil {
		return false
	}
	r.cancel()
	e, ok := r.tracker.table.remove(r.id)
	if ok {
		r.tracker.stats.stopped.Add(1)
		r.tracker.notify(Event{Type: EventStopped, ID: r.id, Value: e.value, Policy: GCTied})
	}
	return ok
}

func (r *Registration) cancel() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}

type counters struct {
	disposed   atomic.Int64
	leaked     atomic.Int64
	registered atomic.Int64
	released   atomic.Int64
	collected  atomic.Int64
	stopped    atomic.Int64
}

// Tracker applies lifetime policies and owns GC-tied registrations of one
// instance.
//
// Releases triggered by the collector are only queued. They run when Drain
// is called, which the bridge does before every call, so the module is
// never entered from the cleanup goroutine.
type Tracker struct {
	finalizer Finalizer
	logger    *zap.Logger
	table     *table
	observers []Observer
	pending   []ID
	stats     counters
	pendMu    sync.Mutex
	obsMu     sync.RWMutex
	closed    atomic.Bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithFinalizer sets the finalizer back-end. The default is RuntimeFinalizer.
func WithFinalizer(f Finalizer) Option {
	return func(t *Tracker) { t.finalizer = f }
}

// WithLogger sets the tracker's logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		finalizer: RuntimeFinalizer{},
		table:     newTable(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = Logger()
	}
	return t
}

// Apply carries out policy p for d once the call that used it has
// returned. owner is required for GCTied and receives the registration
// as an edge.
func (t *Tracker) Apply(p Policy, d Disposable, owner Anchor) error {
	switch p {
	case FreeAfterCall:
		d.Free()
		t.stats.disposed.Add(1)
		t.notify(Event{Type: EventDisposed, Value: d, Policy: p})
	case Borrowed:
	case Leak:
		if l, ok := d.(interface{ Leak() }); ok {
			l.Leak()
		}
		t.stats.leaked.Add(1)
		t.logger.Debug("buffer leaked to module", zap.Any("value", d))
		t.notify(Event{Type: EventLeaked, Value: d, Policy: p})
	case GCTied:
		if owner == nil {
			return errors.InvalidInput(errors.PhaseLifetime, "gc_tied policy needs an owner")
		}
		reg := t.register(owner, d, d.Free)
		owner.AddEdge(reg)
	default:
		return errors.InvalidInput(errors.PhaseLifetime, "unknown policy "+p.String())
	}
	return nil
}

// Track registers release to run when owner becomes unreachable. The owner
// must store the returned registration.
func (t *Tracker) Track(owner any, release func()) *Registration {
	return t.register(owner, nil, release)
}

func (t *Tracker) register(owner, value any, release func()) *Registration {
	reg := &Registration{tracker: t, value: value}
	reg.id = t.table.insert(value, release)
	reg.stop = t.finalizer.Watch(reg, owner, t.enqueue)
	t.stats.registered.Add(1)
	t.notify(Event{Type: EventRegistered, ID: reg.id, Value: value, Policy: GCTied})
	return reg
}

// enqueue runs on the finalizer's goroutine.
func (t *Tracker) enqueue(id ID) {
	t.pendMu.Lock()
	t.pending = append(t.pending, id)
	t.pendMu.Unlock()
}

// Pending returns the number of queued releases.
func (t *Tracker) Pending() int {
	t.pendMu.Lock()
	defer t.pendMu.Unlock()
	return len(t.pending)
}

// Drain runs queued releases on the calling goroutine and returns how many
// ran.
func (t *Tracker) Drain() int {
	t.pendMu.Lock()
	ids := t.pending
	t.pending = nil
	t.pendMu.Unlock()

	n := 0
	for _, id := range ids {
		if t.release(id, true) {
			n++
		}
	}
	return n
}

func (t *Tracker) release(id ID, collected bool) bool {
	e, ok := t.table.remove(id)
	if !ok {
		return false
	}
	if t.closed.Load() {
		t.logger.Debug("release after close skipped", zap.Uint64("id", uint64(id)))
		return true
	}
	t.run(id, e.release)
	t.stats.released.Add(1)
	if collected {
		t.stats.collected.Add(1)
	}
	t.notify(Event{Type: EventReleased, ID: id, Value: e.value, Policy: GCTied, Collected: collected})
	return true
}

func (t *Tracker) run(id ID, release func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("release panicked", zap.Uint64("id", uint64(id)), zap.Any("panic", r))
		}
	}()
	if release != nil {
		release()
	}
}

// Close releases every live registration and stops accepting releases.
// Registrations collected after Close are dropped.
func (t *Tracker) Close() {
	t.Drain()
	for _, id := range t.table.ids() {
		t.release(id, false)
	}
	t.closed.Store(true)
}

// Live returns the number of pending registrations.
func (t *Tracker) Live() int {
	return t.table.len()
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Disposed:   t.stats.disposed.Load(),
		Leaked:     t.stats.leaked.Load(),
		Registered: t.stats.registered.Load(),
		Released:   t.stats.released.Load(),
		Collected:  t.stats.collected.Load(),
		Stopped:    t.stats.stopped.Load(),
		Pending:    int64(t.Pending()),
		Live:       t.Live(),
	}
}

// Subscribe adds an observer.
func (t *Tracker) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

func (t *Tracker) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnLifetimeEvent(e)
	}
}
