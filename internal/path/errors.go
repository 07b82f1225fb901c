package path

import (
	"errors"
	"fmt"
)

// NullReferenceError is returned when a non-propagating step of the path
// meets a nil object.
type NullReferenceError struct {
	Path string
	// Step is the index of the component that could not be read.
	Step      int
	Component string
}

// Error implements the error interface.
func (e *NullReferenceError) Error() string {
	if e.Step == 0 {
		return fmt.Sprintf("path %q: nil root", e.Path)
	}
	return fmt.Sprintf("path %q: nil object before %q", e.Path, e.Component)
}

// IsNullReference returns true if err is or wraps a *NullReferenceError.
func IsNullReference(err error) bool {
	var ne *NullReferenceError
	return errors.As(err, &ne)
}

// SyntaxError is returned by New for malformed path expressions.
type SyntaxError struct {
	Path    string
	Index   int
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("path %q: component %d: %s", e.Path, e.Index, e.Message)
}
