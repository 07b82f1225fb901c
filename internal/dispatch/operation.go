package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

var nextOperationID atomic.Uint64

// Operation is the handle of a body queued on a dispatcher.
//
// An Operation completes exactly once. After completion Value and Err are
// stable. Continuations registered after completion run immediately on the
// registering goroutine.
type Operation struct {
	id uint64
	fn Func

	done chan struct{}

	mu            sync.Mutex
	completed     bool
	observed      bool
	value         any
	err           error
	continuations []func(*Operation)
}

func newOperation(fn Func) *Operation {
	return &Operation{
		id:   nextOperationID.Add(1),
		fn:   fn,
		done: make(chan struct{}),
	}
}

// ID returns the process-unique, increasing id of the operation.
func (op *Operation) ID() uint64 {
	return op.id
}

// Done returns a channel closed on completion.
// Calling Done counts as observing the operation.
func (op *Operation) Done() <-chan struct{} {
	op.markObserved()
	return op.done
}

// IsCompleted polls for completion without observing the operation.
func (op *Operation) IsCompleted() bool {
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the operation completes or ctx is done.
// Returns the body's failure, or ctx.Err() if ctx ended first.
func (op *Operation) Wait(ctx context.Context) error {
	op.markObserved()
	select {
	case <-op.done:
		return op.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Value returns the body's result, or nil if not completed.
func (op *Operation) Value() any {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.value
}

// Err returns the captured failure, or nil if not completed or successful.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// OnComplete registers a continuation.
// It runs on the dispatcher after the body, or immediately if the
// operation has already completed.
func (op *Operation) OnComplete(fn func(*Operation)) {
	op.mu.Lock()
	op.observed = true
	if op.completed {
		op.mu.Unlock()
		fn(op)
		return
	}
	op.continuations = append(op.continuations, fn)
	op.mu.Unlock()
}

func (op *Operation) markObserved() {
	op.mu.Lock()
	op.observed = true
	op.mu.Unlock()
}

// run executes the body on the calling goroutine and completes the operation.
func (op *Operation) run(ctx context.Context, onError ErrorHandler) {
	value, err := safeCall(ctx, op.fn)
	op.complete(value, err, onError)
}

func (op *Operation) complete(value any, err error, onError ErrorHandler) {
	op.mu.Lock()
	if op.completed {
		op.mu.Unlock()
		return
	}
	op.completed = true
	op.value = value
	op.err = err
	observed := op.observed
	continuations := op.continuations
	op.continuations = nil
	close(op.done)
	op.mu.Unlock()

	if err != nil && !observed && onError != nil {
		onError(op, err)
	}
	for _, fn := range continuations {
		fn(op)
	}
}

// safeCall runs fn, converting a panic into a *PanicError.
func safeCall(ctx context.Context, fn Func) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = newPanicError(r)
		}
	}()
	return fn(ctx)
}
