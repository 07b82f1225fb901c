package property

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/knit/internal/reflector"
)

// Object is implemented by every bindable type.
type Object interface {
	Properties() *Store
}

// Parented is implemented by objects that take part in property
// inheritance. ParentObject returns nil at the root.
type Parented interface {
	ParentObject() Object
}

// Container is implemented by objects whose children should refresh
// their bindings whenever the container does.
type Container interface {
	ChildObjects() []Object
}

var objectType = reflect.TypeFor[Object]()

// Descriptor is a registered property definition shared by all instances of
// its owner type. Descriptors are created by Register or RegisterAttached and
// live for the whole process.
type Descriptor struct {
	name  string
	owner reflect.Type
	typ   reflect.Type
	def   any

	attached bool
	inherits bool
	excluded bool

	validate func(obj Object, value any) bool
	changed  func(obj Object, value any)
}

// Name returns the property name.
func (d *Descriptor) Name() string { return d.name }

// Owner returns the owner type. Pointer owners are reported by their
// element type.
func (d *Descriptor) Owner() reflect.Type { return d.owner }

// Type returns the declared value type.
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Default returns the default value.
func (d *Descriptor) Default() any { return d.def }

// Attached reports whether the descriptor applies to any Object.
func (d *Descriptor) Attached() bool { return d.attached }

// Inherits reports whether descendants without a local value see the
// nearest ancestor's value.
func (d *Descriptor) Inherits() bool { return d.inherits }

// ExcludedFromContextRefresh reports whether bindings on this property are
// skipped while a context change cascades.
func (d *Descriptor) ExcludedFromContextRefresh() bool { return d.excluded }

// String returns "Owner.Name".
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s.%s", d.owner.Name(), d.name)
}

// IsValidTarget reports whether obj may hold a value for d.
//
// Attached descriptors apply to any Object. Otherwise obj's type must be the
// owner, embed the owner along its chain of first embedded structs, or
// implement the owner when the owner is an interface.
func (d *Descriptor) IsValidTarget(obj any) bool {
	if reflector.IsNil(obj) {
		return false
	}
	t := reflect.TypeOf(obj)
	if d.attached {
		return t.Implements(objectType)
	}
	if d.owner.Kind() == reflect.Interface {
		return t.Implements(d.owner)
	}
	for cur := ownerKey(t); cur != nil; cur = embeddedBase(cur) {
		if cur == d.owner {
			return true
		}
	}
	return false
}

// Validate reports whether value is acceptable for d on obj: the type must
// match (nil only for nilable types) and the validator, if any, must agree.
// A mismatched type is a false result, not an error.
func (d *Descriptor) Validate(obj Object, value any) bool {
	if !d.accepts(value) {
		return false
	}
	if d.validate != nil {
		return d.validate(obj, value)
	}
	return true
}

// NotifyChanged runs the changed callback for obj.
func (d *Descriptor) NotifyChanged(obj Object, value any) error {
	if !d.IsValidTarget(obj) {
		return d.invalidTarget(obj)
	}
	if !d.accepts(value) {
		return d.typeMismatch(value)
	}
	if d.changed != nil {
		d.changed(obj, value)
	}
	return nil
}

func (d *Descriptor) accepts(value any) bool {
	if value == nil {
		return reflector.Nilable(d.typ)
	}
	return reflect.TypeOf(value).AssignableTo(d.typ)
}

// coerce converts value to the declared type where the conversion is exact
// (numbers the type can hold unchanged, nil for nilable types).
func (d *Descriptor) coerce(value any) (any, error) {
	if d.accepts(value) {
		return value, nil
	}
	v, err := reflector.Coerce(d.typ, value)
	if err != nil {
		return nil, d.typeMismatch(value)
	}
	return v.Interface(), nil
}

// zero is the value a pulled nil stands for.
func (d *Descriptor) zero() any {
	if reflector.Nilable(d.typ) {
		return nil
	}
	return reflect.Zero(d.typ).Interface()
}

func (d *Descriptor) invalidTarget(obj any) error {
	return &Error{
		Code:     ErrCodeInvalidTarget,
		Message:  "object is not a valid target for the property",
		Property: d.String(),
		Owner:    fmt.Sprintf("%T", obj),
	}
}

func (d *Descriptor) typeMismatch(value any) error {
	return &Error{
		Code:     ErrCodeTypeMismatch,
		Message:  fmt.Sprintf("cannot use %T as %v", value, d.typ),
		Property: d.String(),
	}
}

// Option configures a Descriptor at registration.
type Option func(*Descriptor)

// WithChanged sets the callback run after each Set of the property.
func WithChanged[T any](fn func(obj Object, value T)) Option {
	return func(d *Descriptor) {
		d.changed = func(obj Object, value any) {
			fn(obj, cast[T](value))
		}
	}
}

// WithValidate sets the validator consulted before each Set.
func WithValidate[T any](fn func(obj Object, value T) bool) Option {
	return func(d *Descriptor) {
		d.validate = func(obj Object, value any) bool {
			return fn(obj, cast[T](value))
		}
	}
}

// Inherits marks the property as inherited from parent objects.
func Inherits() Option {
	return func(d *Descriptor) { d.inherits = true }
}

// ExcludedFromContextRefresh keeps the property's bindings out of the
// refresh pass a context change triggers.
func ExcludedFromContextRefresh() Option {
	return func(d *Descriptor) { d.excluded = true }
}

// Property is the typed handle returned by Register.
type Property[T any] struct {
	*Descriptor
}

// Get returns the effective value of p on obj.
func (p *Property[T]) Get(obj Object) (T, error) {
	v, err := obj.Properties().Get(p.Descriptor)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v), nil
}

// Set stores v as the local value of p on obj.
func (p *Property[T]) Set(ctx context.Context, obj Object, v T) error {
	return obj.Properties().Set(ctx, p.Descriptor, v)
}

func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}

// ownerKey strips pointers so *T and T register under the same owner.
func ownerKey(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// embeddedBase returns the type of the first embedded struct of t, or nil.
func embeddedBase(t reflect.Type) reflect.Type {
	t = ownerKey(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if ft := ownerKey(f.Type); ft.Kind() == reflect.Struct {
			return ft
		}
	}
	return nil
}
