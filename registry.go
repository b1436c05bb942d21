package mockfn

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// Default is the process-wide registry used by Method.
var Default = New()

// Option configures a Registry.
type Option func(*Registry)

// Options combines several options into one.
func Options(opts ...Option) Option {
	return func(r *Registry) {
		for _, opt := range opts {
			if opt != nil {
				opt(r)
			}
		}
	}
}

// WithLogger sets the logger for diagnostics.  The default is the logrus
// standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// Registry tracks the slots that hold one of its mocks and the originals they
// held before.  Slot ownership is shared by every registry in the process, so
// at most one mock is installed per slot whichever registry installed it.
type Registry struct {
	log logrus.FieldLogger
}

type entry struct {
	registry *Registry
	owner    any
	original any
	restore  func()
}

// slots holds every replaced slot, keyed by the slot pointer.
var slots = struct {
	mu      sync.Mutex
	entries map[any]*entry
}{entries: make(map[any]*entry)}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log: logrus.StandardLogger(),
	}
	Options(opts...)(r)
	return r
}

// Replace installs a new mock in slot and returns it.  Calls go to impl when it
// is not nil, otherwise to the function the slot held before.  A slot that
// already holds a mock, from r or from any other registry, is restored first,
// so the original captured is always the function that was there before any
// mock.  The slot then belongs to r.
//
// Replace fails with an InvalidTargetError if slot is nil, if F is not a func
// type, or if the slot holds nil and impl is nil as well.
func Replace[F any](r *Registry, slot *F, impl F) (*Mock[F], error) {
	typ := reflect.TypeOf(slot)
	if slot == nil {
		return nil, &InvalidTargetError{Type: typ.String(), Reason: "nil slot"}
	}
	if typ.Elem().Kind() != reflect.Func {
		return nil, &InvalidTargetError{Type: typ.String(), Reason: "not a func type"}
	}

	slots.mu.Lock()
	defer slots.mu.Unlock()

	original := *slot
	prev, replacing := slots.entries[slot]
	if replacing {
		original = prev.original.(F)
	}
	if !isFunc(reflect.ValueOf(original)) && !isFunc(reflect.ValueOf(impl)) {
		return nil, &InvalidTargetError{Type: typ.String(), Reason: "slot is nil and no implementation was given"}
	}

	m, err := newMock[F](reflect.ValueOf(original), r.log)
	if err != nil {
		return nil, err
	}
	m.plan.Default(reflect.ValueOf(impl))

	if replacing {
		prev.restore()
		r.log.WithFields(logrus.Fields{
			"slot":          typ.String(),
			"same_registry": prev.registry == r,
		}).Debug("mockfn: replacing mocked slot")
	}
	e := &entry{
		registry: r,
		owner:    m,
		original: original,
	}
	e.restore = func() {
		*slot = original
		m.mu.Lock()
		m.restore = nil
		m.mu.Unlock()
	}
	m.restore = func() {
		r.release(slot, m)
	}
	slots.entries[slot] = e
	*slot = m.Func()
	return m, nil
}

// Spy installs a mock in slot that passes every call through to the function
// the slot holds.
func Spy[F any](r *Registry, slot *F) (*Mock[F], error) {
	var impl F
	return Replace(r, slot, impl)
}

// Restore puts back the function slot held before it was replaced.  Restoring
// a slot that holds no mock of r does nothing besides logging an
// UnmatchedRestoreWarning.
func (r *Registry) Restore(slot any) {
	slots.mu.Lock()
	e, ok := slots.entries[slot]
	ok = ok && e.registry == r
	if ok {
		delete(slots.entries, slot)
		e.restore()
	}
	slots.mu.Unlock()

	if !ok {
		warning := UnmatchedRestoreWarning{Type: fmt.Sprintf("%T", slot)}
		r.log.WithError(warning).Warn("mockfn: unmatched restore")
	}
}

// release restores slot only if it still holds owner.
func (r *Registry) release(slot, owner any) {
	slots.mu.Lock()
	defer slots.mu.Unlock()
	if e, ok := slots.entries[slot]; ok && e.owner == owner {
		delete(slots.entries, slot)
		e.restore()
	}
}

// RestoreAll restores every slot holding a mock of r.  Slots are independent,
// so the order is unspecified.  Calling RestoreAll on an empty registry does
// nothing.
func (r *Registry) RestoreAll() {
	slots.mu.Lock()
	defer slots.mu.Unlock()
	for slot, e := range slots.entries {
		if e.registry != r {
			continue
		}
		delete(slots.entries, slot)
		e.restore()
	}
}

// Len returns the number of slots holding a mock of r.
func (r *Registry) Len() int {
	slots.mu.Lock()
	defer slots.mu.Unlock()
	n := 0
	for _, e := range slots.entries {
		if e.registry == r {
			n++
		}
	}
	return n
}

// Active reports whether slot holds a mock of r.
func (r *Registry) Active(slot any) bool {
	slots.mu.Lock()
	defer slots.mu.Unlock()
	e, ok := slots.entries[slot]
	return ok && e.registry == r
}

// Method replaces slot in the Default registry for the duration of the test.
// The test fails immediately if the slot cannot be replaced.
func Method[F any](t testing.TB, slot *F, impl F) *Mock[F] {
	t.Helper()
	m, err := Replace(Default, slot, impl)
	if err != nil {
		t.Fatal(err)
		return nil
	}
	t.Cleanup(m.Restore)
	return m
}

// Cleanup restores every slot of r when the test and its subtests complete.
func Cleanup(t testing.TB, r *Registry) {
	t.Cleanup(r.RestoreAll)
}
