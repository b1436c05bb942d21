package mockfn

import "testing"

// Exhaustible is implemented by every Mock.
type Exhaustible interface {
	Name() string
	pending() []CallIndex
}

// AssertExhausted marks the test as failed for every one-shot implementation
// that has not run.
func AssertExhausted(t testing.TB, mocks ...Exhaustible) {
	t.Helper()

	for _, m := range mocks {
		if m == nil {
			continue
		}

		switch pending := m.pending(); len(pending) {
		case 0:
		case 1:
			t.Errorf("%s: one-shot implementation for call %d did not run", m.Name(), pending[0])
		default:
			t.Errorf("%s: one-shot implementations for calls %v did not run", m.Name(), pending)
		}
	}
}

// Arg returns argument i of rec as a T.
func Arg[T any](rec *CallRecord, i int) (v T, ok bool) {
	if rec == nil || i < 0 || i >= len(rec.args) {
		return
	}
	v, ok = rec.args[i].(T)
	return
}

// Result returns result i of rec as a T.
func Result[T any](rec *CallRecord, i int) (v T, ok bool) {
	if rec == nil {
		return
	}
	results := rec.Results()
	if i < 0 || i >= len(results) {
		return
	}
	v, ok = results[i].(T)
	return
}

// Settled returns the value rec resolved with as a T.
func Settled[T any](rec *CallRecord) (v T, ok bool) {
	if rec == nil || rec.Kind() != Resolved {
		return
	}
	v, ok = rec.Value().(T)
	return
}
