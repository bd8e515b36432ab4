package lifetime

// Disposable is anything that releases module memory when freed.
type Disposable interface {
	Free()
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func()

func (f DisposeFunc) Free() { f() }

// Anchor is a wrapper that can keep other values alive by referencing them.
type Anchor interface {
	AddEdge(target any)
}

// Edger exposes the keep-alive references of a wrapper.
type Edger interface {
	Edges() []any
}

// EventType identifies a lifetime event.
type EventType uint8

const (
	EventDisposed EventType = iota
	EventLeaked
	EventRegistered
	EventReleased
	EventStopped
)

func (e EventType) String() string {
	switch e {
	case EventDisposed:
		return "disposed"
	case EventLeaked:
		return "leaked"
	case EventRegistered:
		return "registered"
	case EventReleased:
		return "released"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event describes one transition of a tracked value.
type Event struct {
	Value  any
	ID     ID
	Type   EventType
	Policy Policy
	// Collected is set on releases triggered by the garbage collector.
	Collected bool
}

// Observer receives lifetime events.
type Observer interface {
	OnLifetimeEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnLifetimeEvent(e Event) { f(e) }

// Stats counts tracker activity.
type Stats struct {
	Disposed   int64
	Leaked     int64
	Registered int64
	Released   int64
	Collected  int64
	Stopped    int64
	Pending    int64
	Live       int
}
