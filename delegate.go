package mockfn

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// invoke is the body of the function returned by Func.  The call is recorded
// before the implementation runs, so the record exists even when it panics or
// exits the goroutine, and the implementation runs without holding the mock's
// lock so that it may call back into the mock.
func (m *Mock[F]) invoke(in []reflect.Value) (out []reflect.Value) {
	args := m.arguments(in)

	m.mu.Lock()
	rec := m.calls.start(args)
	callable, source := m.plan.Take(rec.Index)
	m.entry().WithFields(logrus.Fields{
		"index":  int(rec.Index),
		"source": source.String(),
	}).Debug("mockfn: call")
	m.mu.Unlock()
	rec.handledBy(source)

	completed := false
	defer func() {
		if completed {
			return
		}
		// A nil recover here means the goroutine is exiting, e.g. t.FailNow.
		r := recover()
		rec.threw(r)
		if r != nil {
			panic(r)
		}
	}()

	out = callable.Call(rec.Index, in)
	m.settle(rec, out)
	completed = true
	return out
}

// settle records the outcome of a call that returned.
func (m *Mock[F]) settle(rec *CallRecord, out []reflect.Value) {
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}

	if m.deferred && !isNil(out[0]) {
		rec.deferred(results)
		results[0].(Deferred).Observe(rec.resolved, rec.rejected)
		return
	}

	var err error
	if m.errOut {
		err, _ = results[len(results)-1].(error)
	}
	rec.returned(results, err)
}

// arguments copies the arguments of a call.  The variadic slice, if any, is
// flattened.
func (m *Mock[F]) arguments(in []reflect.Value) []any {
	args := make([]any, 0, len(in))
	for i, v := range in {
		if m.typ.IsVariadic() && i == len(in)-1 {
			for j := 0; j < v.Len(); j++ {
				args = append(args, v.Index(j).Interface())
			}
			continue
		}
		args = append(args, v.Interface())
	}
	return args
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}
