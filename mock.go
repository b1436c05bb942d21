// Package mockfn provides mocks and spies for function-typed slots in Go
// tests.
//
// A slot is anything of func type that code under test calls through: a struct
// field, a package variable, a method value bound at construction.  Replace
// installs a Mock in a slot, the Mock records every call in its CallLog and
// dispatches to one-shot implementations, a default implementation, the
// original function, or nothing at all, in that order.  Restore puts the
// original back.
package mockfn

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Deferred is implemented by results that complete after the call returns.  A
// mock whose first result type implements Deferred records the settled value
// or error once it is available.
type Deferred interface {
	Observe(onResolve func(any), onReject func(error))
}

var (
	deferredType = reflect.TypeOf((*Deferred)(nil)).Elem()
	errType      = reflect.TypeOf((*error)(nil)).Elem()
)

// Mock is a function of type F that records its calls.
type Mock[F any] struct {
	mu   sync.Mutex
	id   uuid.UUID
	name string
	typ  reflect.Type
	log  logrus.FieldLogger

	plan  *plan
	calls CallLog
	fn    F

	deferred bool
	errOut   bool

	// restore is set when the mock is installed in a registry slot.
	restore func()
}

// Fn creates a mock function that is not installed anywhere.  Calls go to impl
// when it is not nil, otherwise to original, otherwise they return zero
// values.  Panics if F is not a func type.
func Fn[F any](original F, impl F) *Mock[F] {
	m, err := newMock[F](reflect.ValueOf(original), logrus.StandardLogger())
	if err != nil {
		panic(err.Error())
	}
	m.Implement(impl)
	return m
}

func newMock[F any](original reflect.Value, log logrus.FieldLogger) (*Mock[F], error) {
	typ := reflect.TypeOf((*F)(nil)).Elem()
	if typ.Kind() != reflect.Func {
		return nil, &InvalidTargetError{Type: "*" + typ.String(), Reason: "not a func type"}
	}
	out := make([]reflect.Type, typ.NumOut())
	for i := range out {
		out[i] = typ.Out(i)
	}
	m := &Mock[F]{
		id:   uuid.New(),
		name: typ.String(),
		typ:  typ,
		log:  log,
		plan: newPlan(original, out),
	}
	if n := typ.NumOut(); n > 0 {
		m.deferred = typ.Out(0).Implements(deferredType)
		m.errOut = typ.Out(n - 1).Implements(errType)
	}
	m.fn = reflect.MakeFunc(typ, m.invoke).Interface().(F)
	return m, nil
}

// Func returns the function that records calls.
func (m *Mock[F]) Func() F {
	return m.fn
}

// ID returns the unique identifier of the mock.
func (m *Mock[F]) ID() uuid.UUID {
	return m.id
}

// Name returns the name used in diagnostics, by default the function type.
func (m *Mock[F]) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Named sets the name used in diagnostics.
func (m *Mock[F]) Named(name string) *Mock[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// LogTo sets the logger diagnostics are written to.
func (m *Mock[F]) LogTo(log logrus.FieldLogger) *Mock[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
	return m
}

// Calls returns the log of calls made to the mock.
func (m *Mock[F]) Calls() *CallLog {
	return &m.calls
}

// CallCount returns the number of calls made to the mock.
func (m *Mock[F]) CallCount() int {
	return m.calls.Len()
}

// Implement replaces the default implementation.  A nil impl removes it, so
// calls without a one-shot implementation go to the original again.
func (m *Mock[F]) Implement(impl F) *Mock[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan.Default(reflect.ValueOf(impl))
	return m
}

// ImplementOnce schedules impl for a single call.  The call is the next one
// unless onCall gives its index.  Scheduling a call that has already happened
// is allowed but logs a StaleOneShotWarning, since the implementation can
// never run.  When several implementations are scheduled for the same call the
// first one wins.
func (m *Mock[F]) ImplementOnce(impl F, onCall ...int) *Mock[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.calls.Len()
	index := CallIndex(count)
	if len(onCall) > 0 {
		index = CallIndex(onCall[0])
	}
	if int(index) < count {
		warning := StaleOneShotWarning{Mock: m.name, Index: index, CallCount: count}
		m.entry().WithError(warning).Warn("mockfn: stale one-shot implementation")
	}
	m.plan.Once(index, reflect.ValueOf(impl))
	return m
}

// ResetCalls empties the call log; the next call has index 0 again.  One-shot
// implementations keep the indices they were scheduled for.
func (m *Mock[F]) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.reset()
}

// Restore puts the original function back into the slot the mock was
// installed in.  It does nothing for mocks created with Fn, or once the slot
// has been restored or replaced again.
func (m *Mock[F]) Restore() {
	m.mu.Lock()
	restore := m.restore
	m.mu.Unlock()
	if restore != nil {
		restore()
	}
}

func (m *Mock[F]) pending() []CallIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan.Pending()
}

// entry must be called with m.mu held.
func (m *Mock[F]) entry() logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{
		"mock":    m.name,
		"mock_id": m.id.String(),
	})
}

func (m *Mock[F]) String() string {
	return fmt.Sprintf("%s (%d calls)", m.Name(), m.CallCount())
}
