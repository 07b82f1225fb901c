package property

import (
	"errors"
	"fmt"
)

// Error represents a failed property or binding operation.
//
// Errors are raised synchronously at the point of violation. Registration
// conflicts and double attachment are programming errors; the others are
// local to the call that returned them.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Property is the descriptor name, when one is involved.
	Property string

	// Owner is the target or owner type, when one is involved.
	Owner string
}

// ErrorCode categorizes property errors.
type ErrorCode string

const (
	// ErrCodeRegistrationConflict indicates (owner type, name) is already registered.
	ErrCodeRegistrationConflict ErrorCode = "REGISTRATION_CONFLICT"

	// ErrCodeInvalidTarget indicates a descriptor used on an object it does not apply to.
	ErrCodeInvalidTarget ErrorCode = "INVALID_TARGET"

	// ErrCodeTypeMismatch indicates a value of the wrong type for the descriptor.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeValidationFailed indicates the descriptor's validator rejected the value.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodeNullContext indicates a binding refreshed without a source.
	ErrCodeNullContext ErrorCode = "NULL_CONTEXT"

	// ErrCodeAlreadyAttached indicates a second attach of an expression, or a
	// second binding in the same direction on one property.
	ErrCodeAlreadyAttached ErrorCode = "ALREADY_ATTACHED"

	// ErrCodeNotAttached indicates an expression refreshed before attach, or
	// against an object it is not attached to.
	ErrCodeNotAttached ErrorCode = "NOT_ATTACHED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Owner != "" && e.Property != "":
		return fmt.Sprintf("%s: %s (owner=%s, property=%s)", e.Code, e.Message, e.Owner, e.Property)
	case e.Property != "":
		return fmt.Sprintf("%s: %s (property=%s)", e.Code, e.Message, e.Property)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode returns true if err is or wraps an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsRegistrationConflict returns true for duplicate registrations.
func IsRegistrationConflict(err error) bool {
	return HasCode(err, ErrCodeRegistrationConflict)
}

// IsInvalidTarget returns true if a descriptor was used on a foreign object.
func IsInvalidTarget(err error) bool {
	return HasCode(err, ErrCodeInvalidTarget)
}

// IsTypeMismatch returns true if a value had the wrong type.
func IsTypeMismatch(err error) bool {
	return HasCode(err, ErrCodeTypeMismatch)
}

// IsValidationFailed returns true if a validator rejected a value.
func IsValidationFailed(err error) bool {
	return HasCode(err, ErrCodeValidationFailed)
}

// IsNullContext returns true if a binding had no source to read from.
func IsNullContext(err error) bool {
	return HasCode(err, ErrCodeNullContext)
}

// IsAlreadyAttached returns true for double attachment.
func IsAlreadyAttached(err error) bool {
	return HasCode(err, ErrCodeAlreadyAttached)
}

// IsNotAttached returns true if an expression was used before attach.
func IsNotAttached(err error) bool {
	return HasCode(err, ErrCodeNotAttached)
}
