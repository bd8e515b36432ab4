package lifetime

import (
	"reflect"
	"runtime"
	"sync"
)

// Finalizer reports when a registration's token becomes unreachable.
//
// Watch arranges for fire(id) to be called at most once after token can no
// longer be reached. owner is the wrapper holding token; back-ends that
// cannot observe the collector use it to compute reachability. fire may be
// called from any goroutine. The returned function cancels the watch.
type Finalizer interface {
	Watch(token *Registration, owner any, fire func(ID)) (stop func())
}

// RuntimeFinalizer uses the Go garbage collector. Cleanups run on the
// runtime's cleanup goroutine at an unspecified time, or never.
type RuntimeFinalizer struct{}

func (RuntimeFinalizer) Watch(token *Registration, _ any, fire func(ID)) func() {
	c := runtime.AddCleanup(token, fire, token.id)
	return c.Stop
}

type watch struct {
	owner any
	fire  func(ID)
	id    ID
}

// ManualFinalizer is a deterministic Finalizer for tests. It keeps owners
// alive itself and fires only when Collect finds them unreachable from the
// given roots through Edges.
type ManualFinalizer struct {
	watches map[ID]watch
	mu      sync.Mutex
}

func NewManualFinalizer() *ManualFinalizer {
	return &ManualFinalizer{watches: make(map[ID]watch)}
}

func (f *ManualFinalizer) Watch(token *Registration, owner any, fire func(ID)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches[token.id] = watch{owner: owner, fire: fire, id: token.id}
	return func() {
		f.mu.Lock()
		delete(f.watches, token.id)
		f.mu.Unlock()
	}
}

// Watching returns the number of active watches.
func (f *ManualFinalizer) Watching() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

// Collect fires every watch whose owner is not reachable from roots and
// returns how many fired.
func (f *ManualFinalizer) Collect(roots ...any) int {
	reached := Reachable(roots...)

	f.mu.Lock()
	var dead []watch
	for id, w := range f.watches {
		if key, ok := identity(w.owner); ok && reached[key] {
			continue
		}
		dead = append(dead, w)
		delete(f.watches, id)
	}
	f.mu.Unlock()

	for _, w := range dead {
		w.fire(w.id)
	}
	return len(dead)
}

// Reachable returns the set of values reachable from roots by following
// Edges. Values that are not comparable are skipped.
func Reachable(roots ...any) map[any]bool {
	seen := make(map[any]bool)
	queue := append([]any(nil), roots...)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		key, ok := identity(v)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		if e, ok := v.(Edger); ok {
			queue = append(queue, e.Edges()...)
		}
	}
	return seen
}

func identity(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	t := reflect.TypeOf(v)
	if !t.Comparable() {
		return nil, false
	}
	if t.Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil() {
		return nil, false
	}
	return v, true
}
