package dispatch

import (
	"context"
	"fmt"
	"log/slog"
)

// Func is a unit of work executed on a dispatcher.
// The context passed in is marked as running on that dispatcher.
type Func func(ctx context.Context) (any, error)

// Action is a Func without a result.
type Action func(ctx context.Context) error

// Dispatcher is a serialized execution context.
//
// Thread-safety model:
//   - Invoke(): safe from any goroutine; runs inline when ctx is already
//     marked with this dispatcher
//   - BeginInvoke(): safe from any goroutine; never runs inline
type Dispatcher interface {
	// Invoke runs fn and blocks until it completes.
	Invoke(ctx context.Context, fn Func) (any, error)

	// BeginInvoke enqueues fn and returns its pending Operation.
	BeginInvoke(fn Func) *Operation
}

// ErrorHandler receives failures of operations nobody observed.
type ErrorHandler func(op *Operation, err error)

// LogUnobserved is the default ErrorHandler.
func LogUnobserved(op *Operation, err error) {
	slog.Error("unobserved dispatcher operation failed",
		"operation", op.ID(),
		"error", err,
	)
}

// Option configures a Worker or Loop.
type Option func(*config)

type config struct {
	name    string
	onError ErrorHandler
}

func newConfig(opts []Option) config {
	c := config{
		name:    "dispatcher",
		onError: LogUnobserved,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithErrorHandler replaces the handler for unobserved failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		if h != nil {
			c.onError = h
		}
	}
}

// WithName sets the name used in log records.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

type dispatcherKey struct{}

// withDispatcher marks ctx as executing on d.
func withDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// IsCurrent reports whether ctx was handed out by d to one of its bodies
// (or by Loop.Context).
func IsCurrent(ctx context.Context, d Dispatcher) bool {
	if ctx == nil {
		return false
	}
	cur, ok := ctx.Value(dispatcherKey{}).(Dispatcher)
	return ok && cur == d
}

// Do invokes a result-less action on d and waits for it.
func Do(ctx context.Context, d Dispatcher, fn Action) error {
	_, err := d.Invoke(ctx, fn.asFunc())
	return err
}

// Post enqueues a result-less action on d.
func Post(d Dispatcher, fn Action) *Operation {
	return d.BeginInvoke(fn.asFunc())
}

// InvokeValue invokes fn on d and returns its typed result.
func InvokeValue[T any](ctx context.Context, d Dispatcher, fn func(context.Context) (T, error)) (T, error) {
	v, err := d.Invoke(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](v)
}

// Await waits for op and returns its typed result.
func Await[T any](ctx context.Context, op *Operation) (T, error) {
	if err := op.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return as[T](op.Value())
}

func as[T any](v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("dispatch: result %T is not %T", v, zero)
	}
	return t, nil
}

func (fn Action) asFunc() Func {
	return func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}
}

// invokeOn is the shared Invoke implementation: inline when already on d,
// otherwise enqueue and wait.
func invokeOn(ctx context.Context, d Dispatcher, q *queue, fn Func) (any, error) {
	if IsCurrent(ctx, d) {
		return safeCall(ctx, fn)
	}

	op := newOperation(fn)
	op.markObserved()
	if !q.Enqueue(op) {
		return nil, ErrClosed
	}
	if err := op.Wait(ctx); err != nil {
		return nil, err
	}
	return op.Value(), nil
}

// beginOn is the shared BeginInvoke implementation.
func beginOn(q *queue, fn Func, onError ErrorHandler) *Operation {
	op := newOperation(fn)
	if !q.Enqueue(op) {
		op.complete(nil, ErrClosed, onError)
	}
	return op
}
