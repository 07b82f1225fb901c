package dispatch

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrClosed is returned for work submitted to a closed dispatcher, and for
// work still queued when the dispatcher stops.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// PanicError wraps a panic raised by a dispatcher body.
type PanicError struct {
	// Value is the value passed to panic.
	Value any

	// Stack is the goroutine stack at the point of recovery.
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch: body panicked: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is / errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic returns true if err is or wraps a *PanicError.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
