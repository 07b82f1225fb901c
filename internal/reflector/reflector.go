// Package reflector resolves named members of Go types to getter and setter
// closures.
//
// Three sources of members are provided and can be combined with Chain:
//
//   - Reflect: runtime reflection over fields (promoted and unexported
//     included) and Name() / SetName(v) method pairs.
//   - Table: accessors registered explicitly per type.
//   - Dynamic: objects that resolve members themselves at runtime.
//
// Resolved accessors are cached per (type, member name).
package reflector

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// Getter reads a member from obj.
type Getter func(obj any) (any, error)

// Setter writes a member on obj.
type Setter func(obj any, value any) error

// Reflector locates readable and writable members of a type.
type Reflector interface {
	FindGetter(t reflect.Type, name string) (Getter, error)
	FindSetter(t reflect.Type, name string) (Setter, error)
	MemberType(t reflect.Type, name string) (reflect.Type, error)
}

// Dynamic is implemented by map-like objects whose members are only known
// at runtime. Their member type is always AnyType.
type Dynamic interface {
	Member(name string) (any, bool)
	SetMember(name string, value any) error
}

// AnyType is the reflect.Type of the empty interface.
var AnyType = reflect.TypeFor[any]()

var dynamicType = reflect.TypeFor[Dynamic]()

// MissingMemberError is returned when a type has no member with the
// requested name (or no writable one, for setters).
type MissingMemberError struct {
	Type   reflect.Type
	Member string
	Write  bool
}

// Error implements the error interface.
func (e *MissingMemberError) Error() string {
	access := "readable"
	if e.Write {
		access = "writable"
	}
	return fmt.Sprintf("reflector: no %s member %q on %v", access, e.Member, e.Type)
}

// IsMissingMember returns true if err is or wraps a *MissingMemberError.
func IsMissingMember(err error) bool {
	var me *MissingMemberError
	return errors.As(err, &me)
}

// ErrNilTarget is returned when an accessor is applied to a nil object.
var ErrNilTarget = errors.New("reflector: nil target")

// TypeMismatchError is returned when a value cannot be assigned to a member.
type TypeMismatchError struct {
	Want reflect.Type
	Got  reflect.Type
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("reflector: cannot assign %v to %v", e.Got, e.Want)
}

// Coerce converts value to a reflect.Value assignable to t.
//
// nil becomes the zero value of nilable types. Numeric values convert
// between numeric kinds when the conversion is exact, which lets decoded
// scenario numbers (int, float64) reach int32 or float32 members. Overflow,
// a negative value for an unsigned kind and a fractional or rounded float
// are type mismatches.
func Coerce(t reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		if Nilable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &TypeMismatchError{Want: t}
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		if cv, ok := convertExact(v, t); ok {
			return cv, nil
		}
	}
	return reflect.Value{}, &TypeMismatchError{Want: t, Got: v.Type()}
}

// convertExact converts v to t if t can hold v's value unchanged.
func convertExact(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	switch {
	case v.CanInt():
		n := v.Int()
		switch {
		case isUnsigned(t.Kind()):
			if n < 0 || reflect.Zero(t).OverflowUint(uint64(n)) {
				return reflect.Value{}, false
			}
		case isFloat(t.Kind()):
			cv := v.Convert(t)
			if f := cv.Float(); f < -(1<<63) || f >= 1<<63 || int64(f) != n {
				return reflect.Value{}, false
			}
			return cv, true
		default:
			if reflect.Zero(t).OverflowInt(n) {
				return reflect.Value{}, false
			}
		}

	case v.CanUint():
		n := v.Uint()
		switch {
		case isUnsigned(t.Kind()):
			if reflect.Zero(t).OverflowUint(n) {
				return reflect.Value{}, false
			}
		case isFloat(t.Kind()):
			cv := v.Convert(t)
			if f := cv.Float(); f >= 1<<64 || uint64(f) != n {
				return reflect.Value{}, false
			}
			return cv, true
		default:
			if n > math.MaxInt64 || reflect.Zero(t).OverflowInt(int64(n)) {
				return reflect.Value{}, false
			}
		}

	case v.CanFloat():
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if !isFloat(t.Kind()) {
				return reflect.Value{}, false
			}
			return v.Convert(t), true
		}
		switch {
		case isFloat(t.Kind()):
			cv := v.Convert(t)
			if cv.Float() != f {
				return reflect.Value{}, false
			}
			return cv, true
		case f != math.Trunc(f):
			return reflect.Value{}, false
		case isUnsigned(t.Kind()):
			if f < 0 || f >= 1<<64 || reflect.Zero(t).OverflowUint(uint64(f)) {
				return reflect.Value{}, false
			}
		default:
			if f < -(1<<63) || f >= 1<<63 || reflect.Zero(t).OverflowInt(int64(f)) {
				return reflect.Value{}, false
			}
		}

	default:
		return reflect.Value{}, false
	}
	return v.Convert(t), true
}

// Nilable reports whether nil is a valid value of t.
func Nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// IsNil reports whether v is nil or a typed nil of a nilable kind.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if Nilable(rv.Type()) {
		return rv.IsNil()
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Chain tries each Reflector in order. A member missing from one is looked
// up in the next; any other failure stops the search.
type Chain []Reflector

var _ Reflector = Chain(nil)

// FindGetter implements Reflector.
func (c Chain) FindGetter(t reflect.Type, name string) (Getter, error) {
	for _, r := range c {
		g, err := r.FindGetter(t, name)
		if err == nil {
			return g, nil
		}
		if !IsMissingMember(err) {
			return nil, err
		}
	}
	return nil, &MissingMemberError{Type: t, Member: name}
}

// FindSetter implements Reflector.
func (c Chain) FindSetter(t reflect.Type, name string) (Setter, error) {
	for _, r := range c {
		s, err := r.FindSetter(t, name)
		if err == nil {
			return s, nil
		}
		if !IsMissingMember(err) {
			return nil, err
		}
	}
	return nil, &MissingMemberError{Type: t, Member: name, Write: true}
}

// MemberType implements Reflector.
func (c Chain) MemberType(t reflect.Type, name string) (reflect.Type, error) {
	for _, r := range c {
		mt, err := r.MemberType(t, name)
		if err == nil {
			return mt, nil
		}
		if !IsMissingMember(err) {
			return nil, err
		}
	}
	return nil, &MissingMemberError{Type: t, Member: name}
}
