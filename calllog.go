package mockfn

import (
	"context"
	"fmt"
	"sync"
)

// Kind describes how a recorded call completed.
type Kind int

const (
	// Pending means the call has not finished, or returned a deferred value
	// that has not settled yet.
	Pending Kind = iota
	Returned
	Threw
	Resolved
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Returned:
		return "returned"
	case Threw:
		return "threw"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// CallRecord is a single invocation of a mock.  Arguments are fixed when the
// call starts; the outcome is fixed once the call settles.
type CallRecord struct {
	// Index is the position of the call within its mock, starting at 0.
	Index CallIndex
	// Seq orders calls across every mock in the process.
	Seq uint64

	args []any

	mu        sync.Mutex
	source    Source
	done      chan struct{}
	kind      Kind
	results   []any
	value     any
	err       error
	recovered any
}

func newCallRecord(index CallIndex, args []any) *CallRecord {
	return &CallRecord{
		Index: index,
		Seq:   nextSeq(),
		args:  args,
		done:  make(chan struct{}),
	}
}

// Arguments returns a copy of the arguments the call was made with.  Variadic
// arguments appear individually, as the caller wrote them.
func (r *CallRecord) Arguments() []any {
	return append([]any(nil), r.args...)
}

// Source returns the part of the plan that handled the call.
func (r *CallRecord) Source() Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Kind returns how the call completed so far.
func (r *CallRecord) Kind() Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kind
}

// Results returns a copy of the values the mock returned to its caller.  For a
// deferred call these are the values returned synchronously.
func (r *CallRecord) Results() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.results...)
}

// Value returns the settled value of a resolved call, or the first result of a
// call that returned.
func (r *CallRecord) Value() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Err returns the rejection of a deferred call, the panic value of a call that
// threw when it is an error, or a non-nil trailing error result.
func (r *CallRecord) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Recovered returns the value the implementation panicked with.  It is nil for
// a call that threw by exiting its goroutine, as runtime.Goexit does.
func (r *CallRecord) Recovered() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recovered
}

// Done returns a channel that is closed once the call settles.
func (r *CallRecord) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the call settles or ctx is done.
func (r *CallRecord) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *CallRecord) String() string {
	return fmt.Sprintf("call %d %v: %s", r.Index, r.args, r.Kind())
}

func (r *CallRecord) handledBy(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
}

func (r *CallRecord) returned(results []any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = results
	if len(results) > 0 {
		r.value = results[0]
	}
	r.err = err
	r.finish(Returned)
}

func (r *CallRecord) threw(recovered any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered = recovered
	if err, ok := recovered.(error); ok {
		r.err = err
	}
	r.finish(Threw)
}

func (r *CallRecord) deferred(results []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = results
}

func (r *CallRecord) resolved(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
	r.finish(Resolved)
}

func (r *CallRecord) rejected(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.finish(Rejected)
}

// finish must be called with r.mu held.
func (r *CallRecord) finish(kind Kind) {
	if r.kind != Pending {
		return
	}
	r.kind = kind
	close(r.done)
}

// CallLog is the read-only, ordered record of the calls made to one mock.
type CallLog struct {
	mu      sync.Mutex
	records []*CallRecord
}

// Len returns the number of calls made.
func (l *CallLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// At returns the call at index i, or nil if there is no such call.
func (l *CallLog) At(i int) *CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.records) {
		return nil
	}
	return l.records[i]
}

// Latest returns the most recent call.
func (l *CallLog) Latest() (*CallRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return nil, false
	}
	return l.records[len(l.records)-1], true
}

// All returns a snapshot of every call in order.
func (l *CallLog) All() []*CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*CallRecord(nil), l.records...)
}

// start appends a pending record and returns it.  The index is taken under the
// same lock as the append so that concurrent calls get distinct indices.
func (l *CallLog) start(args []any) *CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := newCallRecord(CallIndex(len(l.records)), args)
	l.records = append(l.records, rec)
	return rec
}

func (l *CallLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
