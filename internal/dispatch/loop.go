package dispatch

import (
	"context"
	"sync/atomic"
)

// Loop is a cooperative Dispatcher driven by the host's own run loop.
//
// The host goroutine owns the Loop: it calls Step once per tick and uses
// Context to mark its own calls, so Invoke from the host runs inline.
// Invoke from any other goroutine enqueues and blocks until the host steps.
type Loop struct {
	cfg      config
	queue    *queue
	stepping atomic.Bool
}

var _ Dispatcher = (*Loop)(nil)

// NewLoop creates an idle Loop.
func NewLoop(opts ...Option) *Loop {
	return &Loop{
		cfg:   newConfig(opts),
		queue: newQueue(),
	}
}

// Context marks ctx as belonging to the host goroutine of this Loop.
func (l *Loop) Context(ctx context.Context) context.Context {
	return withDispatcher(ctx, l)
}

// Invoke runs fn, inline if ctx belongs to this Loop, otherwise on the next
// Step.
func (l *Loop) Invoke(ctx context.Context, fn Func) (any, error) {
	return invokeOn(ctx, l, l.queue, fn)
}

// BeginInvoke enqueues fn for a later Step.
func (l *Loop) BeginInvoke(fn Func) *Operation {
	return beginOn(l.queue, fn, l.cfg.onError)
}

// Len returns the number of queued operations.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Step runs the operations that were queued when Step began, in order.
// Work queued by those bodies waits for the next Step, which bounds the
// length of one tick. A reentrant call from inside a body returns 0.
func (l *Loop) Step(ctx context.Context) int {
	if !l.stepping.CompareAndSwap(false, true) {
		return 0
	}
	defer l.stepping.Store(false)

	bodyCtx := withDispatcher(ctx, l)
	pending := l.queue.Len()
	ran := 0
	for ; ran < pending; ran++ {
		op, ok := l.queue.TryDequeue()
		if !ok {
			break
		}
		op.run(bodyCtx, l.cfg.onError)
	}
	return ran
}

// Drain steps until the queue is empty or ctx is done.
// Returns the total number of operations run.
func (l *Loop) Drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n := l.Step(ctx)
		if n == 0 {
			return total
		}
		total += n
	}
	return total
}

// Close stops accepting work and fails everything still queued.
func (l *Loop) Close() {
	l.queue.Close()
	for _, op := range l.queue.drain() {
		op.complete(nil, ErrClosed, l.cfg.onError)
	}
}
