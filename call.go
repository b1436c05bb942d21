package mockfn

import (
	"fmt"
	"reflect"
	"slices"
)

// CallIndex is the 0-based position of a call within a single mock.
type CallIndex int

// Callable defines an interface for the implementations a mock dispatches to.
type Callable interface {
	Call(CallIndex, []reflect.Value) []reflect.Value
}

// MultiCallable defines an interface for Callable objects that can be called
// multiple times.
type MultiCallable interface {
	MultiCallable() bool
}

// Value is a Callable that wraps a reflect.Value of kind func and is used at
// most once.
type Value struct {
	reflect.Value
}

// Call invokes the wrapped function with the given arguments.  If the function
// is variadic, the last argument must be passed as a slice, otherwise this
// method panics.
func (v Value) Call(_ CallIndex, in []reflect.Value) []reflect.Value {
	fn := v.Value
	if fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("Value.Call: expected func, got %s", fn.Kind()))
	}
	if fn.Type().IsVariadic() {
		return fn.CallSlice(in)
	}
	return fn.Call(in)
}

// multi is a Callable that wraps a reflect.Value and implements MultiCallable.
type multi Value

// MultiCallable returns true.
func (v multi) MultiCallable() bool { return true }

// Call invokes the Callable with the given arguments.
func (v multi) Call(i CallIndex, in []reflect.Value) []reflect.Value {
	return Value(v).Call(i, in)
}

// inert is the Callable used when nothing else is planned: it returns the zero
// value of every result.
type inert struct {
	out []reflect.Type
}

func (inert) MultiCallable() bool { return true }

func (c inert) Call(CallIndex, []reflect.Value) []reflect.Value {
	out := make([]reflect.Value, len(c.out))
	for i, typ := range c.out {
		out[i] = reflect.Zero(typ)
	}
	return out
}

// Source identifies which part of the plan handled a call.
type Source int

const (
	SourceInert Source = iota
	SourceOnce
	SourceDefault
	SourceOriginal
)

func (s Source) String() string {
	switch s {
	case SourceOnce:
		return "once"
	case SourceDefault:
		return "default"
	case SourceOriginal:
		return "original"
	default:
		return "inert"
	}
}

// plan holds the implementations of a mock.  One-shot entries are keyed by the
// call index they serve; the first registered for an index wins.
type plan struct {
	once     map[CallIndex][]Callable
	fallback Callable
	original Callable
	inert    inert
}

func newPlan(original reflect.Value, out []reflect.Type) *plan {
	p := &plan{
		once:  make(map[CallIndex][]Callable),
		inert: inert{out: out},
	}
	if isFunc(original) {
		p.original = multi{Value: original}
	}
	return p
}

// Once schedules fn for the call at index.  A nil fn schedules zero results.
func (p *plan) Once(index CallIndex, fn reflect.Value) {
	var callable Callable = p.inert
	if isFunc(fn) {
		callable = Value{Value: fn}
	}
	p.once[index] = append(p.once[index], callable)
}

// Default replaces the unbounded implementation.
func (p *plan) Default(fn reflect.Value) {
	if isFunc(fn) {
		p.fallback = multi{Value: fn}
	} else {
		p.fallback = nil
	}
}

// Take selects the Callable for the call at index.  A one-shot entry is
// consumed as soon as it is selected, whatever the outcome of the call.
func (p *plan) Take(index CallIndex) (Callable, Source) {
	if entries, ok := p.once[index]; ok && len(entries) > 0 {
		delete(p.once, index)
		return entries[0], SourceOnce
	}
	if p.fallback != nil {
		return p.fallback, SourceDefault
	}
	if p.original != nil {
		return p.original, SourceOriginal
	}
	return p.inert, SourceInert
}

// Pending returns the indices of one-shot entries that have not fired.
func (p *plan) Pending() []CallIndex {
	pending := make([]CallIndex, 0, len(p.once))
	for index := range p.once {
		pending = append(pending, index)
	}
	slices.Sort(pending)
	return pending
}

func isFunc(v reflect.Value) bool {
	return v.IsValid() && v.Kind() == reflect.Func && !v.IsNil()
}
