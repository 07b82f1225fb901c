package reflector

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"
)

var errorType = reflect.TypeFor[error]()

type memberKey struct {
	t    reflect.Type
	name string
}

// member is one resolved accessor pair. set is nil for read-only members.
type member struct {
	typ reflect.Type
	get Getter
	set Setter
}

// Reflect is a reflection-based Reflector.
//
// Members are resolved in this order:
//  1. Dynamic objects answer for themselves.
//  2. A getter method Name() (V or (V, error)), paired with SetName(V)
//     (returning nothing or an error) when present.
//  3. A struct field named Name, including fields promoted from embedded
//     structs and unexported fields.
//
// Reflect is safe for concurrent use. Resolved members are cached for the
// lifetime of the Reflect.
type Reflect struct {
	cache sync.Map // map[memberKey]*member
}

var _ Reflector = (*Reflect)(nil)

// NewReflect creates an empty reflection-based Reflector.
func NewReflect() *Reflect {
	return &Reflect{}
}

var defaultReflect = sync.OnceValue(NewReflect)

// Default returns the process-wide reflection Reflector.
func Default() *Reflect {
	return defaultReflect()
}

// FindGetter implements Reflector.
func (r *Reflect) FindGetter(t reflect.Type, name string) (Getter, error) {
	m, err := r.lookup(t, name)
	if err != nil {
		return nil, err
	}
	return m.get, nil
}

// FindSetter implements Reflector.
func (r *Reflect) FindSetter(t reflect.Type, name string) (Setter, error) {
	m, err := r.lookup(t, name)
	if err != nil {
		return nil, err
	}
	if m.set == nil {
		return nil, &MissingMemberError{Type: t, Member: name, Write: true}
	}
	return m.set, nil
}

// MemberType implements Reflector.
func (r *Reflect) MemberType(t reflect.Type, name string) (reflect.Type, error) {
	m, err := r.lookup(t, name)
	if err != nil {
		return nil, err
	}
	return m.typ, nil
}

// CacheSize returns the number of resolved members.
func (r *Reflect) CacheSize() int {
	n := 0
	r.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Reflect) lookup(t reflect.Type, name string) (*member, error) {
	if t == nil {
		return nil, &MissingMemberError{Member: name}
	}

	key := memberKey{t: t, name: name}
	if m, ok := r.cache.Load(key); ok {
		return m.(*member), nil
	}

	m, err := resolve(t, name)
	if err != nil {
		return nil, err
	}

	actual, _ := r.cache.LoadOrStore(key, m)
	return actual.(*member), nil
}

func resolve(t reflect.Type, name string) (*member, error) {
	if t.Implements(dynamicType) {
		return dynamicMember(name), nil
	}
	if m, ok := methodMember(t, name); ok {
		return m, nil
	}
	if m, ok := fieldMember(t, name); ok {
		return m, nil
	}
	return nil, &MissingMemberError{Type: t, Member: name}
}

func dynamicMember(name string) *member {
	return &member{
		typ: AnyType,
		get: func(obj any) (any, error) {
			if IsNil(obj) {
				return nil, ErrNilTarget
			}
			v, ok := obj.(Dynamic).Member(name)
			if !ok {
				return nil, &MissingMemberError{Type: reflect.TypeOf(obj), Member: name}
			}
			return v, nil
		},
		set: func(obj any, value any) error {
			if IsNil(obj) {
				return ErrNilTarget
			}
			return obj.(Dynamic).SetMember(name, value)
		},
	}
}

func methodMember(t reflect.Type, name string) (*member, bool) {
	getter, ok := t.MethodByName(name)
	if !ok || !isGetterMethod(getter.Type) {
		return nil, false
	}

	typ := getter.Type.Out(0)
	m := &member{
		typ: typ,
		get: func(obj any) (any, error) {
			if IsNil(obj) {
				return nil, ErrNilTarget
			}
			out := getter.Func.Call([]reflect.Value{reflect.ValueOf(obj)})
			if len(out) == 2 && !out[1].IsNil() {
				return nil, out[1].Interface().(error)
			}
			return out[0].Interface(), nil
		},
	}

	setter, ok := t.MethodByName("Set" + name)
	if ok && isSetterMethod(setter.Type, typ) {
		m.set = func(obj any, value any) error {
			if IsNil(obj) {
				return ErrNilTarget
			}
			v, err := Coerce(typ, value)
			if err != nil {
				return err
			}
			out := setter.Func.Call([]reflect.Value{reflect.ValueOf(obj), v})
			if len(out) == 1 && !out[0].IsNil() {
				return out[0].Interface().(error)
			}
			return nil
		}
	}

	return m, true
}

// isGetterMethod matches func(recv) V and func(recv) (V, error).
func isGetterMethod(ft reflect.Type) bool {
	if ft.NumIn() != 1 {
		return false
	}
	switch ft.NumOut() {
	case 1:
		return true
	case 2:
		return ft.Out(1) == errorType
	}
	return false
}

// isSetterMethod matches func(recv, V) and func(recv, V) error.
func isSetterMethod(ft reflect.Type, typ reflect.Type) bool {
	if ft.NumIn() != 2 || ft.In(1) != typ {
		return false
	}
	switch ft.NumOut() {
	case 0:
		return true
	case 1:
		return ft.Out(0) == errorType
	}
	return false
}

func fieldMember(t reflect.Type, name string) (*member, bool) {
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, false
	}
	f, ok := st.FieldByName(name)
	if !ok {
		return nil, false
	}

	index := f.Index
	typ := f.Type
	m := &member{
		typ: typ,
		get: func(obj any) (any, error) {
			fv, err := fieldValue(obj, index, false)
			if err != nil {
				return nil, err
			}
			return fv.Interface(), nil
		},
	}
	// Struct values held directly in an interface are copies; only
	// pointer roots are writable.
	if t.Kind() == reflect.Pointer {
		m.set = func(obj any, value any) error {
			v, err := Coerce(typ, value)
			if err != nil {
				return err
			}
			fv, err := fieldValue(obj, index, true)
			if err != nil {
				return err
			}
			fv.Set(v)
			return nil
		}
	}
	return m, true
}

// fieldValue walks index from obj, returning a value usable for reads (and
// writes when forWrite is set) even for unexported fields.
func fieldValue(obj any, index []int, forWrite bool) (reflect.Value, error) {
	if IsNil(obj) {
		return reflect.Value{}, ErrNilTarget
	}

	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	} else if !forWrite {
		// Make an addressable copy so unexported fields can be read.
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}

	fv, err := v.FieldByIndexErr(index)
	if err != nil {
		// Nil embedded pointer on the way to a promoted field.
		return reflect.Value{}, errors.Join(ErrNilTarget, err)
	}
	if !fv.CanInterface() || (forWrite && !fv.CanSet()) {
		fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
	}
	return fv, nil
}
