// Package path compiles dotted member paths such as "Order.Customer?.Name"
// into composed getters and setters, and keeps change subscriptions along
// the chain.
//
// Syntax: components are separated by '.'. A component suffixed with '?'
// makes the next step null-propagating: if the value reached so far is nil,
// evaluation stops and yields nil instead of failing. A '?' on the last
// component has nothing to propagate into and is ignored with a warning.
//
// A Resolver compiles the chain once per root type and keeps the four most
// recently used root types.
package path

import (
	"container/list"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/reflector"
)

// MaxCacheEntries is the number of root types a Resolver keeps compiled.
const MaxCacheEntries = 4

type component struct {
	name string
	// nullProp marks the step reading this component as null-propagating.
	nullProp bool
}

// entry is the compiled chain for one root type.
type entry struct {
	root   reflect.Type
	target reflect.Type
	getter reflector.Getter
	setter reflector.Setter
	stages []reflector.Getter
	def    any
}

// Resolver is a compiled member path.
//
// Thread-safety: Resolver methods are safe for concurrent use; change
// callbacks run on the goroutine that mutated the observed object.
type Resolver struct {
	expr       string
	components []component
	reflector  reflector.Reflector
	observe    func(obj any) (notify.Observable, bool)

	mu       sync.Mutex
	cache    *list.List // of *entry, most recently used first
	compiles int

	subs     map[subKey]*subscription
	installs map[installKey][]subKey
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReflector sets the member reflector. Default: reflector.Default().
func WithReflector(r reflector.Reflector) Option {
	return func(p *Resolver) {
		if r != nil {
			p.reflector = r
		}
	}
}

// WithObserver sets how the objects along the chain are asked for change
// notifications. Default: a type assertion to notify.Observable.
func WithObserver(fn func(obj any) (notify.Observable, bool)) Option {
	return func(p *Resolver) {
		if fn != nil {
			p.observe = fn
		}
	}
}

func observable(obj any) (notify.Observable, bool) {
	o, ok := obj.(notify.Observable)
	return o, ok
}

// New parses expr into a Resolver. Nothing is compiled until first use.
func New(expr string, opts ...Option) (*Resolver, error) {
	components, err := parse(expr)
	if err != nil {
		return nil, err
	}

	p := &Resolver{
		expr:       expr,
		components: components,
		reflector:  reflector.Default(),
		observe:    observable,
		cache:      list.New(),
		subs:       make(map[subKey]*subscription),
		installs:   make(map[installKey][]subKey),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MustNew is New that panics on a syntax error.
func MustNew(expr string, opts ...Option) *Resolver {
	p, err := New(expr, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func parse(expr string) ([]component, error) {
	parts := strings.Split(expr, ".")
	components := make([]component, len(parts))

	for i, part := range parts {
		name := strings.TrimSpace(part)
		if strings.HasSuffix(name, "?") {
			name = strings.TrimSuffix(name, "?")
			if i < len(parts)-1 {
				components[i+1].nullProp = true
			} else {
				slog.Warn("null propagation on last path component ignored",
					"path", expr,
					"component", part,
				)
			}
		}
		name = norm.NFC.String(name)
		if name == "" {
			return nil, &SyntaxError{Path: expr, Index: i, Message: "empty component"}
		}
		components[i].name = name
	}

	return components, nil
}

// String returns the path expression as written.
func (p *Resolver) String() string {
	return p.expr
}

// Components returns the member names, without '?' markers.
func (p *Resolver) Components() []string {
	names := make([]string, len(p.components))
	for i, c := range p.components {
		names[i] = c.name
	}
	return names
}

// GetValue reads the path from target. A nil result (including one
// produced by null propagation) is replaced by the zero value of the
// path's target type.
func (p *Resolver) GetValue(target any) (any, error) {
	if reflector.IsNil(target) {
		return nil, p.nullRef(0)
	}
	e, err := p.entryFor(reflect.TypeOf(target))
	if err != nil {
		return nil, err
	}

	v, err := e.getter(target)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = e.def
	}
	return v, nil
}

// SetValue writes value through the path on target. nil is replaced by the
// zero value of the target type.
func (p *Resolver) SetValue(target any, value any) error {
	if reflector.IsNil(target) {
		return p.nullRef(0)
	}
	e, err := p.entryFor(reflect.TypeOf(target))
	if err != nil {
		return err
	}

	if value == nil {
		value = e.def
	}
	return e.setter(target, value)
}

// TargetType returns the static type the path yields from root type t.
func (p *Resolver) TargetType(t reflect.Type) (reflect.Type, error) {
	e, err := p.entryFor(t)
	if err != nil {
		return nil, err
	}
	return e.target, nil
}

// Stats describes the compile cache.
type Stats struct {
	// Compiles counts chain compilations since creation.
	Compiles int
	// Cached is the number of root types currently compiled.
	Cached int
}

// Stats returns compile cache counters.
func (p *Resolver) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Compiles: p.compiles, Cached: p.cache.Len()}
}

// entryFor returns the compiled chain for t, compiling on a miss.
func (p *Resolver) entryFor(t reflect.Type) (*entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entryForLocked(t)
}

func (p *Resolver) entryForLocked(t reflect.Type) (*entry, error) {
	for el := p.cache.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.root == t {
			p.cache.MoveToFront(el)
			return e, nil
		}
	}

	e, err := p.compile(t)
	if err != nil {
		return nil, err
	}
	p.compiles++
	p.cache.PushFront(e)
	if p.cache.Len() > MaxCacheEntries {
		p.cache.Remove(p.cache.Back())
	}
	return e, nil
}

func (p *Resolver) compile(root reflect.Type) (*entry, error) {
	stages := make([]reflector.Getter, len(p.components))
	current := root
	last := len(p.components) - 1

	var lastSetter reflector.Setter
	for i, c := range p.components {
		get, typ, err := p.memberGetter(current, c.name)
		if err != nil {
			return nil, fmt.Errorf("compile path %q for %v: %w", p.expr, root, err)
		}
		if i == last {
			lastSetter, err = p.memberSetter(current, c.name)
			if err != nil && !reflector.IsMissingMember(err) {
				return nil, fmt.Errorf("compile path %q for %v: %w", p.expr, root, err)
			}
		}
		stages[i] = get
		current = typ
	}

	e := &entry{
		root:   root,
		target: current,
		stages: stages,
		def:    zeroOf(current),
	}
	e.getter = func(obj any) (any, error) {
		return p.walk(stages, 0, len(stages), obj)
	}
	e.setter = func(obj any, value any) error {
		if lastSetter == nil {
			return &reflector.MissingMemberError{Type: root, Member: p.expr, Write: true}
		}
		parent, err := p.walk(stages, 0, last, obj)
		if err != nil {
			return err
		}
		if reflector.IsNil(parent) {
			return p.nullRef(last)
		}
		return lastSetter(parent, value)
	}
	return e, nil
}

// walk applies stages[from:to] to v. A nil intermediate either stops the
// walk with nil (null-propagating step) or fails.
func (p *Resolver) walk(stages []reflector.Getter, from, to int, v any) (any, error) {
	for i := from; i < to; i++ {
		if reflector.IsNil(v) {
			if i > 0 && p.components[i].nullProp {
				return nil, nil
			}
			return nil, p.nullRef(i)
		}
		next, err := stages[i](v)
		if err != nil {
			return nil, err
		}
		v = next
	}
	return v, nil
}

func (p *Resolver) nullRef(step int) error {
	return &NullReferenceError{Path: p.expr, Step: step, Component: p.components[step].name}
}

// memberGetter resolves name on t. Interface-typed stages are resolved
// against the dynamic type of each value at evaluation time.
func (p *Resolver) memberGetter(t reflect.Type, name string) (reflector.Getter, reflect.Type, error) {
	if t.Kind() == reflect.Interface {
		r := p.reflector
		return func(obj any) (any, error) {
			if reflector.IsNil(obj) {
				return nil, reflector.ErrNilTarget
			}
			get, err := r.FindGetter(reflect.TypeOf(obj), name)
			if err != nil {
				return nil, err
			}
			return get(obj)
		}, reflector.AnyType, nil
	}

	get, err := p.reflector.FindGetter(t, name)
	if err != nil {
		return nil, nil, err
	}
	typ, err := p.reflector.MemberType(t, name)
	if err != nil {
		return nil, nil, err
	}
	return get, typ, nil
}

func (p *Resolver) memberSetter(t reflect.Type, name string) (reflector.Setter, error) {
	if t.Kind() == reflect.Interface {
		r := p.reflector
		return func(obj any, value any) error {
			if reflector.IsNil(obj) {
				return reflector.ErrNilTarget
			}
			set, err := r.FindSetter(reflect.TypeOf(obj), name)
			if err != nil {
				return err
			}
			return set(obj, value)
		}, nil
	}
	return p.reflector.FindSetter(t, name)
}

func zeroOf(t reflect.Type) any {
	if t == nil || t.Kind() == reflect.Interface {
		return nil
	}
	return reflect.Zero(t).Interface()
}
