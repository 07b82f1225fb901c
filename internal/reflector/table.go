package reflector

import (
	"fmt"
	"reflect"
	"sync"
)

// Table is a Reflector backed by accessors registered explicitly per type.
// It needs no runtime introspection and lets a type publish computed members.
//
// Thread-safety: Table is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	members map[memberKey]*member
}

var _ Reflector = (*Table)(nil)

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{members: make(map[memberKey]*member)}
}

// Register adds a member to t. set may be nil for read-only members.
// Registering the same (type, name) twice is an error.
func (tb *Table) Register(t reflect.Type, name string, typ reflect.Type, get Getter, set Setter) error {
	if t == nil || typ == nil {
		return fmt.Errorf("reflector: register %q: nil type", name)
	}
	if get == nil {
		return fmt.Errorf("reflector: register %v.%s: getter is required", t, name)
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	key := memberKey{t: t, name: name}
	if _, exists := tb.members[key]; exists {
		return fmt.Errorf("reflector: member %v.%s already registered", t, name)
	}
	tb.members[key] = &member{typ: typ, get: get, set: set}
	return nil
}

// Define registers a typed accessor pair on tb. set may be nil.
//
// Example:
//
//	reflector.Define(tb, "FullName",
//	    func(p *Person) string { return p.First + " " + p.Last },
//	    nil)
func Define[T any, V any](tb *Table, name string, get func(T) V, set func(T, V)) error {
	t := reflect.TypeFor[T]()
	typ := reflect.TypeFor[V]()

	getter := func(obj any) (any, error) {
		o, ok := obj.(T)
		if !ok || IsNil(obj) {
			return nil, ErrNilTarget
		}
		return get(o), nil
	}

	var setter Setter
	if set != nil {
		setter = func(obj any, value any) error {
			o, ok := obj.(T)
			if !ok || IsNil(obj) {
				return ErrNilTarget
			}
			if value == nil {
				var zero V
				if !Nilable(typ) {
					return &TypeMismatchError{Want: typ}
				}
				set(o, zero)
				return nil
			}
			cv, err := Coerce(typ, value)
			if err != nil {
				return err
			}
			set(o, cv.Interface().(V))
			return nil
		}
	}

	return tb.Register(t, name, typ, getter, setter)
}

func (tb *Table) lookup(t reflect.Type, name string) (*member, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	m, ok := tb.members[memberKey{t: t, name: name}]
	return m, ok
}

// FindGetter implements Reflector.
func (tb *Table) FindGetter(t reflect.Type, name string) (Getter, error) {
	m, ok := tb.lookup(t, name)
	if !ok {
		return nil, &MissingMemberError{Type: t, Member: name}
	}
	return m.get, nil
}

// FindSetter implements Reflector.
func (tb *Table) FindSetter(t reflect.Type, name string) (Setter, error) {
	m, ok := tb.lookup(t, name)
	if !ok || m.set == nil {
		return nil, &MissingMemberError{Type: t, Member: name, Write: true}
	}
	return m.set, nil
}

// MemberType implements Reflector.
func (tb *Table) MemberType(t reflect.Type, name string) (reflect.Type, error) {
	m, ok := tb.lookup(t, name)
	if !ok {
		return nil, &MissingMemberError{Type: t, Member: name}
	}
	return m.typ, nil
}
