package dispatch

import (
	"context"
	"log/slog"
	"sync"
)

// Worker is a Dispatcher backed by one dedicated goroutine.
//
// Thread-safety model:
//   - Invoke(), BeginInvoke(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine (or use Start)
//   - Close(): must not be called from a body running on this Worker
//
// INVARIANTS:
//   - Bodies run one at a time, in submission order
//   - Bodies always receive a context marked with this Worker
type Worker struct {
	cfg   config
	queue *queue

	mu      sync.Mutex
	stopped chan struct{} // non-nil once Start has been called
}

var _ Dispatcher = (*Worker)(nil)

// NewWorker creates a Worker. Call Run or Start to begin processing.
func NewWorker(opts ...Option) *Worker {
	return &Worker{
		cfg:   newConfig(opts),
		queue: newQueue(),
	}
}

// StartWorker creates a Worker and starts it on its own goroutine.
func StartWorker(ctx context.Context, opts ...Option) *Worker {
	w := NewWorker(opts...)
	w.Start(ctx)
	return w
}

// Invoke runs fn on the worker goroutine and waits for it.
// Runs inline if ctx already belongs to a body of this Worker.
func (w *Worker) Invoke(ctx context.Context, fn Func) (any, error) {
	return invokeOn(ctx, w, w.queue, fn)
}

// BeginInvoke enqueues fn unconditionally.
func (w *Worker) BeginInvoke(fn Func) *Operation {
	return beginOn(w.queue, fn, w.cfg.onError)
}

// Len returns the number of queued operations.
func (w *Worker) Len() int {
	return w.queue.Len()
}

// Run processes operations until ctx is cancelled or Close is called.
//
// On Close, operations already queued still run before Run returns.
// On cancellation, queued operations fail with ErrClosed.
func (w *Worker) Run(ctx context.Context) error {
	slog.Debug("dispatcher starting", "name", w.cfg.name)
	bodyCtx := withDispatcher(ctx, w)

	for {
		if op, ok := w.queue.TryDequeue(); ok {
			op.run(bodyCtx, w.cfg.onError)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("dispatcher stopping: context cancelled", "name", w.cfg.name)
			w.queue.Close()
			w.failPending()
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel is closed by Close, so this fires
			// immediately once closed.
			if w.queue.Closed() && w.queue.Len() == 0 {
				slog.Debug("dispatcher stopping: queue closed", "name", w.cfg.name)
				return nil
			}
		}
	}
}

// Start runs the Worker on a new goroutine.
// Calling Start more than once has no effect.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped != nil {
		return
	}
	stopped := make(chan struct{})
	w.stopped = stopped

	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("dispatcher stopped", "name", w.cfg.name, "error", err)
		}
	}()
}

// Close stops accepting work, lets queued work finish, and waits for the
// goroutine started by Start to exit.
func (w *Worker) Close() {
	w.queue.Close()

	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()

	if stopped != nil {
		<-stopped
		return
	}
	w.failPending()
}

func (w *Worker) failPending() {
	for _, op := range w.queue.drain() {
		op.complete(nil, ErrClosed, w.cfg.onError)
	}
}
