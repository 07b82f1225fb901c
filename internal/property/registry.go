package property

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/text/unicode/norm"
)

type descriptorKey struct {
	owner reflect.Type
	name  string
}

// registry is the process-wide, append-only descriptor table.
type registry struct {
	mu          sync.RWMutex
	descriptors map[descriptorKey]*Descriptor
	// interfaces holds descriptors owned by interface types; they are found
	// for any type implementing the owner.
	interfaces []*Descriptor

	initMu sync.Mutex
	inits  map[reflect.Type]*typeInit
}

type typeInit struct {
	once sync.Once
	fn   func()
}

var global = &registry{
	descriptors: make(map[descriptorKey]*Descriptor),
	inits:       make(map[reflect.Type]*typeInit),
}

// Register defines property name on owner type O with value type T.
//
// Registering the same (owner, name) twice fails with a
// REGISTRATION_CONFLICT error. Owners *X and X are the same owner.
func Register[O any, T any](name string, def T, opts ...Option) (*Property[T], error) {
	d, err := global.register(reflect.TypeFor[O](), reflect.TypeFor[T](), name, def, false, opts)
	if err != nil {
		return nil, err
	}
	return &Property[T]{Descriptor: d}, nil
}

// MustRegister is Register for package-level declarations; it panics on
// conflict.
func MustRegister[O any, T any](name string, def T, opts ...Option) *Property[T] {
	p, err := Register[O, T](name, def, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// RegisterAttached defines a property declared by O that may be set on
// any Object.
func RegisterAttached[O any, T any](name string, def T, opts ...Option) (*Property[T], error) {
	d, err := global.register(reflect.TypeFor[O](), reflect.TypeFor[T](), name, def, true, opts)
	if err != nil {
		return nil, err
	}
	return &Property[T]{Descriptor: d}, nil
}

// MustRegisterAttached is RegisterAttached that panics on conflict.
func MustRegisterAttached[O any, T any](name string, def T, opts ...Option) *Property[T] {
	p, err := RegisterAttached[O, T](name, def, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (r *registry) register(owner, typ reflect.Type, name string, def any, attached bool, opts []Option) (*Descriptor, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return nil, fmt.Errorf("register property on %v: empty name", owner)
	}

	d := &Descriptor{
		name:     name,
		owner:    ownerKey(owner),
		typ:      typ,
		def:      def,
		attached: attached,
	}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := descriptorKey{owner: d.owner, name: name}
	if _, exists := r.descriptors[key]; exists {
		return nil, &Error{
			Code:     ErrCodeRegistrationConflict,
			Message:  "property already registered",
			Property: name,
			Owner:    d.owner.String(),
		}
	}
	r.descriptors[key] = d
	if d.owner.Kind() == reflect.Interface {
		r.interfaces = append(r.interfaces, d)
	}

	slog.Debug("property registered",
		"property", d.String(),
		"type", typ.String(),
		"attached", attached,
	)
	return d, nil
}

// RegisterType installs fn as the one-time registration function of t.
// Lookup runs it (at most once) before searching t. fn must only register
// properties; it must not call Lookup for t itself.
//
// It reports false if t already has a registration function.
func RegisterType(t reflect.Type, fn func()) bool {
	return global.registerType(ownerKey(t), fn)
}

// EnsureRegistered runs the registration function of t, if any, exactly
// once. Safe to call repeatedly and concurrently.
func EnsureRegistered(t reflect.Type) {
	global.ensure(ownerKey(t))
}

func (r *registry) registerType(t reflect.Type, fn func()) bool {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if _, exists := r.inits[t]; exists {
		return false
	}
	r.inits[t] = &typeInit{fn: fn}
	return true
}

func (r *registry) ensure(t reflect.Type) {
	r.initMu.Lock()
	ti, ok := r.inits[t]
	r.initMu.Unlock()

	if ok {
		ti.once.Do(ti.fn)
	}
}

// Lookup finds the descriptor called name for ownerType, walking from the
// type through its embedded base structs and finally the interface-owned
// descriptors the type implements.
func Lookup(name string, ownerType reflect.Type) (*Descriptor, bool) {
	return global.lookup(norm.NFC.String(name), ownerType)
}

func (r *registry) lookup(name string, t reflect.Type) (*Descriptor, bool) {
	if t == nil {
		return nil, false
	}

	for cur := ownerKey(t); cur != nil; cur = embeddedBase(cur) {
		r.ensure(cur)

		r.mu.RLock()
		d, ok := r.descriptors[descriptorKey{owner: cur, name: name}]
		r.mu.RUnlock()
		if ok {
			return d, true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.interfaces {
		if d.name == name && t.Implements(d.owner) {
			return d, true
		}
	}
	return nil, false
}
