// Package future provides a deferred value that settles once, either with a
// value or with an error.
package future

import (
	"context"
	"sync"
)

// Future is a value that becomes available later.  The zero value is not
// usable; construct one with New, Go, Resolve or Reject.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	observers []func()
}

// New returns a pending Future along with the functions that settle it.  Only
// the first call to either function has an effect.
func New[T any]() (f *Future[T], resolve func(T), reject func(error)) {
	f = &Future[T]{done: make(chan struct{})}
	resolve = func(v T) { f.settle(v, nil) }
	reject = func(err error) {
		var zero T
		f.settle(zero, err)
	}
	return
}

// Go runs fn on a new goroutine and settles the returned Future with its
// results.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, resolve, reject := New[T]()
	go func() {
		v, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return f
}

// Resolve returns a Future already settled with v.
func Resolve[T any](v T) *Future[T] {
	f, resolve, _ := New[T]()
	resolve(v)
	return f
}

// Reject returns a Future already settled with err.
func Reject[T any](err error) *Future[T] {
	f, _, reject := New[T]()
	reject(err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return
	default:
	}
	f.value, f.err = v, err
	close(f.done)
	observers := f.observers
	f.observers = nil
	f.mu.Unlock()

	for _, observe := range observers {
		observe()
	}
}

// Done returns a channel that is closed once the Future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Observe arranges for onResolve or onReject to be called once the Future
// settles.  Observers run on the goroutine that settles the Future, or on a new
// goroutine when the Future has already settled, never on the caller's.
func (f *Future[T]) Observe(onResolve func(any), onReject func(error)) {
	observe := func() {
		if f.err != nil {
			if onReject != nil {
				onReject(f.err)
			}
			return
		}
		if onResolve != nil {
			onResolve(f.value)
		}
	}

	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		go observe()
	default:
		f.observers = append(f.observers, observe)
		f.mu.Unlock()
	}
}
