package dispatch

import "sync"

// queue is a thread-safe FIFO of pending operations.
//
// The queue is unbounded so change notifications can enqueue refreshes from
// inside a running body without blocking.
//
// A buffered signal channel of size 1 lets consumers wait with select and
// stay responsive to context cancellation.
type queue struct {
	mu     sync.Mutex
	ops    []*Operation
	closed bool
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{
		ops:    make([]*Operation, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds op to the back of the queue.
// Returns false if the queue is closed.
func (q *queue) Enqueue(op *Operation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, op)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front operation without blocking.
func (q *queue) TryDequeue() (*Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return nil, false
	}

	op := q.ops[0]
	// Clear the slot so the backing array does not pin completed bodies.
	q.ops[0] = nil
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return op, true
}

// Wait returns a channel that signals when operations may be available.
// It is closed when the queue is closed.
func (q *queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending operations.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Closed reports whether Close has been called.
func (q *queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting operations and wakes all waiters.
func (q *queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// drain removes and returns every pending operation.
func (q *queue) drain() []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.ops
	q.ops = nil
	return ops
}
