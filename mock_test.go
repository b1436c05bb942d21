package mockfn_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockfn "github.com/Versent/go-mockfn"
	"github.com/Versent/go-mockfn/future"
)

func TestFn_identity(t *testing.T) {
	m1 := mockfn.Fn(func() {}, nil)
	m2 := mockfn.Fn(func() {}, nil)
	assert.NotEqual(t, m1.ID(), m2.ID())
	assert.Equal(t, "func()", m1.Name())
	assert.Equal(t, "calculate", m1.Named("calculate").Name())
}

func TestFn_notFunc(t *testing.T) {
	assert.PanicsWithValue(t, "mockfn: cannot replace *int: not a func type", func() {
		mockfn.Fn(1, 2)
	})
}

func TestFn_default(t *testing.T) {
	m := mockfn.Fn(func(a, b int) int { return a + b }, func(a, b int) int { return a * b })
	assert.Equal(t, 6, m.Func()(2, 3))
	assert.Equal(t, 12, m.Func()(3, 4))

	m.Implement(nil)
	assert.Equal(t, 7, m.Func()(3, 4))
}

func TestFn_inert(t *testing.T) {
	m := mockfn.Fn[func(string) (int, error)](nil, nil)
	n, err := m.Func()("x")
	assert.Zero(t, n)
	assert.NoError(t, err)

	rec, ok := m.Calls().Latest()
	require.True(t, ok)
	assert.Equal(t, mockfn.SourceInert, rec.Source())
	assert.Equal(t, mockfn.Returned, rec.Kind())
	assert.Equal(t, []any{0, nil}, rec.Results())
}

func TestFn_returnedError(t *testing.T) {
	want := errors.New("not found")
	m := mockfn.Fn(func(string) (string, error) { return "", want }, nil)

	_, err := m.Func()("key")
	assert.Same(t, want, err)

	rec := m.Calls().At(0)
	assert.Equal(t, mockfn.Returned, rec.Kind())
	assert.Same(t, want, rec.Err())
}

func TestFn_threw(t *testing.T) {
	want := errors.New("boom")
	m := mockfn.Fn(func(int) int { panic(want) }, nil)

	assert.PanicsWithError(t, "boom", func() { m.Func()(1) })

	rec := m.Calls().At(0)
	require.NotNil(t, rec)
	assert.Equal(t, mockfn.Threw, rec.Kind())
	assert.Same(t, want, rec.Err())
	assert.Same(t, want, rec.Recovered())
	assert.Equal(t, []any{1}, rec.Arguments())

	// The record is settled, so waiting returns at once.
	require.NoError(t, rec.Wait(context.Background()))
}

func TestFn_threwNonError(t *testing.T) {
	m := mockfn.Fn(func() { panic("message") }, nil)
	assert.PanicsWithValue(t, "message", func() { m.Func()() })

	rec := m.Calls().At(0)
	assert.Equal(t, mockfn.Threw, rec.Kind())
	assert.Equal(t, "message", rec.Recovered())
	assert.NoError(t, rec.Err())
}

func TestFn_goexit(t *testing.T) {
	m := mockfn.Fn(func() int {
		runtime.Goexit()
		return 1
	}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Func()()
	}()
	<-done

	rec := m.Calls().At(0)
	require.NotNil(t, rec)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rec.Wait(ctx))
	assert.Equal(t, mockfn.Threw, rec.Kind())
	assert.Nil(t, rec.Recovered())
	assert.NoError(t, rec.Err())
}

func TestFn_oneShotThatThrowsIsConsumed(t *testing.T) {
	m := mockfn.Fn(func() int { return 1 }, nil)
	m.ImplementOnce(func() int { panic("once") })

	assert.Panics(t, func() { m.Func()() })
	assert.Equal(t, 1, m.Func()())
	mockfn.AssertExhausted(t, m)
}

func TestFn_deferred(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	t.Run("resolved", func(t *testing.T) {
		f, resolve, _ := future.New[int]()
		m := mockfn.Fn(func() *future.Future[int] { return f }, nil)

		got := m.Func()()
		assert.Same(t, f, got)

		rec := m.Calls().At(0)
		assert.Equal(t, mockfn.Pending, rec.Kind())
		assert.Equal(t, []any{f}, rec.Results())

		resolve(5)
		require.NoError(t, rec.Wait(ctx))
		assert.Equal(t, mockfn.Resolved, rec.Kind())
		v, ok := mockfn.Settled[int](rec)
		assert.True(t, ok)
		assert.Equal(t, 5, v)
	})

	t.Run("rejected", func(t *testing.T) {
		want := errors.New("some error message")
		m := mockfn.Fn(func() *future.Future[int] { return future.Reject[int](want) }, nil)

		_, err := m.Func()().Await(ctx)
		assert.Same(t, want, err)

		rec := m.Calls().At(0)
		require.NoError(t, rec.Wait(ctx))
		assert.Equal(t, mockfn.Rejected, rec.Kind())
		assert.Same(t, want, rec.Err())
	})

	t.Run("nil future", func(t *testing.T) {
		m := mockfn.Fn[func() *future.Future[int]](nil, nil)
		assert.Nil(t, m.Func()())
		assert.Equal(t, mockfn.Returned, m.Calls().At(0).Kind())
	})

	t.Run("completion order", func(t *testing.T) {
		first, resolveFirst, _ := future.New[int]()
		second, resolveSecond, _ := future.New[int]()
		m := mockfn.Fn[func() *future.Future[int]](nil, nil)
		m.ImplementOnce(func() *future.Future[int] { return first })
		m.ImplementOnce(func() *future.Future[int] { return second }, 1)

		m.Func()()
		m.Func()()
		resolveSecond(2)
		require.NoError(t, m.Calls().At(1).Wait(ctx))
		assert.Equal(t, mockfn.Pending, m.Calls().At(0).Kind())

		resolveFirst(1)
		require.NoError(t, m.Calls().At(0).Wait(ctx))
		assert.Equal(t, 1, m.Calls().At(0).Value())
	})

	t.Run("never settles", func(t *testing.T) {
		pending, _, _ := future.New[int]()
		m := mockfn.Fn(func() *future.Future[int] { return pending }, nil)
		m.Func()()

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, m.Calls().At(0).Wait(short), context.DeadlineExceeded)
		assert.Equal(t, mockfn.Pending, m.Calls().At(0).Kind())
	})
}

func TestFn_variadicArguments(t *testing.T) {
	m := mockfn.Fn(func(format string, args ...any) string { return fmt.Sprintf(format, args...) }, nil)

	assert.Equal(t, "1-2", m.Func()("%d-%d", 1, 2))
	assert.Equal(t, []any{"%d-%d", 1, 2}, m.Calls().At(0).Arguments())

	assert.Equal(t, "none", m.Func()("none"))
	assert.Equal(t, []any{"none"}, m.Calls().At(1).Arguments())
}

func TestFn_argumentsAreCopied(t *testing.T) {
	m := mockfn.Fn(func(...int) {}, nil)
	m.Func()(1, 2)

	args := m.Calls().At(0).Arguments()
	args[0] = 100
	assert.Equal(t, []any{1, 2}, m.Calls().At(0).Arguments())
}

func TestFn_reentrant(t *testing.T) {
	var m *mockfn.Mock[func(int) int]
	m = mockfn.Fn[func(int) int](nil, func(n int) int {
		if n == 0 {
			return 0
		}
		return n + m.Func()(n-1)
	})

	assert.Equal(t, 6, m.Func()(3))
	assert.Equal(t, 4, m.CallCount())
	for i, rec := range m.Calls().All() {
		assert.Equal(t, mockfn.CallIndex(i), rec.Index)
	}
}

func TestImplementOnce_defaultIndex(t *testing.T) {
	m := mockfn.Fn(func() string { return "original" }, nil)
	m.Func()()

	m.ImplementOnce(func() string { return "once" })
	assert.Equal(t, "once", m.Func()())
	assert.Equal(t, "original", m.Func()())
}

func TestImplementOnce_stale(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	m := mockfn.Fn(func() int { return 1 }, nil).Named("counter").LogTo(logger)
	m.Func()()
	m.Func()()

	m.ImplementOnce(func() int { return 2 }, 1)
	m.ImplementOnce(func() int { return 3 }, 2)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	var warning mockfn.StaleOneShotWarning
	require.ErrorAs(t, entry.Data[logrus.ErrorKey].(error), &warning)
	assert.Equal(t, mockfn.StaleOneShotWarning{Mock: "counter", Index: 1, CallCount: 2}, warning)

	assert.Equal(t, 3, m.Func()())

	ft := &fakeTB{}
	mockfn.AssertExhausted(ft, m)
	assert.Equal(t, []string{"counter: one-shot implementation for call 1 did not run"}, ft.errors)
}

func TestResetCalls(t *testing.T) {
	m := mockfn.Fn(func() {}, nil)
	m.Func()()
	m.Func()()
	m.ResetCalls()
	assert.Equal(t, 0, m.Calls().Len())

	m.Func()()
	assert.Equal(t, mockfn.CallIndex(0), m.Calls().At(0).Index)
}

func TestCallLog(t *testing.T) {
	m := mockfn.Fn(func(int) {}, nil)
	log := m.Calls()

	_, ok := log.Latest()
	assert.False(t, ok)
	assert.Nil(t, log.At(0))

	m.Func()(10)
	m.Func()(20)

	assert.Equal(t, 2, log.Len())
	assert.Nil(t, log.At(-1))
	assert.Nil(t, log.At(2))
	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Same(t, log.At(1), latest)
	assert.Len(t, log.All(), 2)

	arg, ok := mockfn.Arg[int](latest, 0)
	assert.True(t, ok)
	assert.Equal(t, 20, arg)
	_, ok = mockfn.Arg[string](latest, 0)
	assert.False(t, ok)
	_, ok = mockfn.Arg[int](latest, 1)
	assert.False(t, ok)
}

func TestInOrder(t *testing.T) {
	a := mockfn.Fn(func() {}, nil)
	b := mockfn.Fn(func() {}, nil)
	a.Func()()
	b.Func()()
	a.Func()()

	assert.True(t, mockfn.InOrder(a.Calls().At(0), b.Calls().At(0), a.Calls().At(1)))
	assert.False(t, mockfn.InOrder(b.Calls().At(0), a.Calls().At(0)))
	assert.False(t, mockfn.InOrder(a.Calls().At(0), nil))
}

func TestAssertExhausted(t *testing.T) {
	m := mockfn.Fn(func() {}, nil).Named("delete")
	m.ImplementOnce(func() {}, 0)
	m.ImplementOnce(func() {}, 2)

	ft := &fakeTB{}
	mockfn.AssertExhausted(ft, m, nil)
	assert.Equal(t, []string{"delete: one-shot implementations for calls [0 2] did not run"}, ft.errors)

	m.Func()()
	ft = &fakeTB{}
	mockfn.AssertExhausted(ft, m)
	assert.Equal(t, []string{"delete: one-shot implementation for call 2 did not run"}, ft.errors)
}

// fakeTB records failures without failing the enclosing test.
type fakeTB struct {
	testing.TB
	errors   []string
	fatal    bool
	cleanups []func()
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeTB) Fatal(args ...any) {
	f.errors = append(f.errors, fmt.Sprint(args...))
	f.fatal = true
}

func (f *fakeTB) Cleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

func (f *fakeTB) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}
