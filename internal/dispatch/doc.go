// Package dispatch implements the serialized execution context used to
// schedule all property and binding refresh work.
//
// ARCHITECTURE:
//
// A Dispatcher runs one body at a time, in submission order. Two
// implementations share the same FIFO queue:
//
//   - Worker: a dedicated goroutine drains the queue (Run / Start).
//   - Loop: the host calls Step once per tick from its own goroutine.
//
// Go has no goroutine identity, so "already running on this dispatcher" is
// carried in context.Context. Every body receives a context marked with its
// dispatcher; passing that context to a nested Invoke runs the nested body
// inline instead of deadlocking on the queue.
//
// Invoke blocks until the body has finished. BeginInvoke always enqueues and
// returns an Operation that can be waited on, polled, or given a
// continuation.
//
// FAILURES:
//
// Errors and panics raised by a body are captured on its Operation. When a
// body fails and nobody has observed the operation (no Wait, Done or
// OnComplete before completion), the failure is handed to the configured
// ErrorHandler, which logs it by default.
package dispatch
