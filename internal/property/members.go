package property

import (
	"context"
	"reflect"
	"sync"

	"github.com/roach88/knit/internal/reflector"
)

// ContextProperty is the inherited default source of bindings that name no
// explicit source. Setting it refreshes the object's other bindings before
// Set returns.
var ContextProperty = MustRegister[Object, any]("DataContext", nil,
	Inherits(),
	ExcludedFromContextRefresh(),
)

// memberReflector exposes the registered properties of Objects as path
// members, so a path can read "Parent.Title" where Title is a property.
type memberReflector struct{}

var _ reflector.Reflector = memberReflector{}

// Members returns the reflector over registered properties.
//
// The context property is read-only through paths: writing it runs the
// synchronous context cascade, which needs the caller's dispatcher context.
func Members() reflector.Reflector {
	return memberReflector{}
}

func (memberReflector) descriptor(t reflect.Type, name string) (*Descriptor, bool) {
	if t == nil || !t.Implements(objectType) {
		return nil, false
	}
	return Lookup(name, t)
}

// FindGetter implements reflector.Reflector.
func (m memberReflector) FindGetter(t reflect.Type, name string) (reflector.Getter, error) {
	d, ok := m.descriptor(t, name)
	if !ok {
		return nil, &reflector.MissingMemberError{Type: t, Member: name}
	}
	return func(obj any) (any, error) {
		o, ok := obj.(Object)
		if !ok || reflector.IsNil(obj) {
			return nil, reflector.ErrNilTarget
		}
		return o.Properties().Get(d)
	}, nil
}

// FindSetter implements reflector.Reflector.
func (m memberReflector) FindSetter(t reflect.Type, name string) (reflector.Setter, error) {
	d, ok := m.descriptor(t, name)
	if !ok || d == ContextProperty.Descriptor {
		return nil, &reflector.MissingMemberError{Type: t, Member: name, Write: true}
	}
	return func(obj any, value any) error {
		o, ok := obj.(Object)
		if !ok || reflector.IsNil(obj) {
			return reflector.ErrNilTarget
		}
		return o.Properties().Set(context.Background(), d, value)
	}, nil
}

// MemberType implements reflector.Reflector.
func (m memberReflector) MemberType(t reflect.Type, name string) (reflect.Type, error) {
	d, ok := m.descriptor(t, name)
	if !ok {
		return nil, &reflector.MissingMemberError{Type: t, Member: name}
	}
	return d.typ, nil
}

var defaultReflector = sync.OnceValue(func() reflector.Reflector {
	return reflector.Chain{Members(), reflector.Default()}
})
