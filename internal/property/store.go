package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/knit/internal/dispatch"
	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/reflector"
)

// Store holds the realized property values and attached bindings of one
// Object.
//
// A Store is owned by exactly one object and is mutated only through its
// methods, normally from that object's dispatcher. The internal lock keeps
// the maps consistent; it is never held while callbacks, observers or
// bindings run.
type Store struct {
	owner Object

	mu       sync.Mutex
	values   map[*Descriptor]any
	all      []*Expression // context binding first, then by sequence id
	inbound  map[*Descriptor]*Expression
	outbound map[*Descriptor]*Expression

	refreshingContext bool

	hub notify.Hub
}

var _ notify.Observable = (*Store)(nil)

// NewStore creates the store of owner.
//
// Example:
//
//	func NewElement() *Element {
//	    e := &Element{}
//	    e.props = property.NewStore(e)
//	    return e
//	}
func NewStore(owner Object) *Store {
	return &Store{
		owner:    owner,
		values:   make(map[*Descriptor]any),
		inbound:  make(map[*Descriptor]*Expression),
		outbound: make(map[*Descriptor]*Expression),
	}
}

// Owner returns the object the store belongs to.
func (s *Store) Owner() Object { return s.owner }

// Get returns the effective value of d.
//
// A local value wins. For inheriting descriptors the parent chain is
// searched next. Otherwise the default is returned; defaults are never
// stored.
func (s *Store) Get(d *Descriptor) (any, error) {
	if !d.IsValidTarget(s.owner) {
		return nil, d.invalidTarget(s.owner)
	}
	if v, ok := s.Local(d); ok {
		return v, nil
	}
	if d.inherits {
		for p := parentOf(s.owner); p != nil; p = parentOf(p) {
			if v, ok := p.Properties().Local(d); ok {
				return v, nil
			}
		}
	}
	return d.def, nil
}

// Local returns the value stored on this object only.
func (s *Store) Local(d *Descriptor) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[d]
	return v, ok
}

func parentOf(o Object) Object {
	p, ok := o.(Parented)
	if !ok {
		return nil
	}
	parent := p.ParentObject()
	if reflector.IsNil(parent) {
		return nil
	}
	return parent
}

// Set validates v and stores it as the local value of d.
//
// After storing, Set queues the outbound binding of d (if any) to push v to
// its source, announces the change to observers and runs the changed
// callback once. Setting the context property additionally refreshes the
// other bindings of the object, synchronously, before Set returns.
func (s *Store) Set(ctx context.Context, d *Descriptor, v any) error {
	return s.setValue(ctx, d, v, nil)
}

// setValue is Set for a value arriving through binding from; from's own
// outbound push is skipped so a pull does not echo back to its source.
func (s *Store) setValue(ctx context.Context, d *Descriptor, v any, from *Expression) error {
	if !d.IsValidTarget(s.owner) {
		return d.invalidTarget(s.owner)
	}
	v, err := d.coerce(v)
	if err != nil {
		return err
	}
	if !d.Validate(s.owner, v) {
		return &Error{
			Code:     ErrCodeValidationFailed,
			Message:  fmt.Sprintf("value %v rejected", v),
			Property: d.String(),
			Owner:    fmt.Sprintf("%T", s.owner),
		}
	}

	s.mu.Lock()
	s.values[d] = v
	out := s.outbound[d]
	s.mu.Unlock()

	if out != nil && out != from {
		out.queueRefresh(true, known{value: v, ok: true})
	}
	s.hub.Emit(s.owner, d.name)
	if err := d.NotifyChanged(s.owner, v); err != nil {
		return err
	}

	if d == ContextProperty.Descriptor {
		return s.contextChanged(ctx)
	}
	return nil
}

// contextChanged runs the cascade phase of a refresh while the new context
// is in place.
func (s *Store) contextChanged(ctx context.Context) error {
	s.mu.Lock()
	s.refreshingContext = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshingContext = false
		s.mu.Unlock()
	}()

	return s.RequestRefresh(ctx, true)
}

// Observe implements notify.Observable. Handlers receive the owner and the
// property name after every Set.
func (s *Store) Observe(h notify.Handler) func() {
	return s.hub.Observe(h)
}

// RegisterBinding attaches e to (owner, d) and records it.
//
// Each property holds at most one inbound and one outbound binding.
func (s *Store) RegisterBinding(e *Expression, d *Descriptor) error {
	if !d.IsValidTarget(s.owner) {
		return d.invalidTarget(s.owner)
	}

	dir := e.binding.Direction
	s.mu.Lock()
	_, hasIn := s.inbound[d]
	_, hasOut := s.outbound[d]
	s.mu.Unlock()
	if (dir.Pulls() && hasIn) || (dir.Pushes() && hasOut) {
		return &Error{
			Code:     ErrCodeAlreadyAttached,
			Message:  "property already has a binding in that direction",
			Property: d.String(),
			Owner:    fmt.Sprintf("%T", s.owner),
		}
	}

	if err := e.Attach(s.owner, d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir.Pulls() {
		s.inbound[d] = e
	}
	if dir.Pushes() {
		s.outbound[d] = e
	}
	i, _ := slices.BinarySearchFunc(s.all, e, compareExpressions)
	s.all = slices.Insert(s.all, i, e)
	return nil
}

// compareExpressions orders context bindings before everything that
// depends on them, then by sequence id.
func compareExpressions(a, b *Expression) int {
	ac := a.prop == ContextProperty.Descriptor
	bc := b.prop == ContextProperty.Descriptor
	switch {
	case ac && !bc:
		return -1
	case bc && !ac:
		return 1
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// Bind creates an expression for b on d, registers it and runs the first
// refresh synchronously on disp.
//
// A missing context is not an error here: the binding refreshes once a
// context arrives.
func (s *Store) Bind(ctx context.Context, d *Descriptor, b Binding, disp dispatch.Dispatcher, opts ...ExpressionOption) (*Expression, error) {
	e, err := NewExpression(b, disp, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.RegisterBinding(e, d); err != nil {
		return nil, err
	}

	err = e.RefreshSync(ctx, e.binding.Direction == OneWayToSource)
	if IsNullContext(err) {
		slog.Debug("binding deferred until a context is set",
			"binding", e.String(),
		)
		return e, nil
	}
	return e, err
}

// Inbound returns the inbound binding of d, or nil.
func (s *Store) Inbound(d *Descriptor) *Expression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbound[d]
}

// Outbound returns the outbound binding of d, or nil.
func (s *Store) Outbound(d *Descriptor) *Expression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbound[d]
}

// Bindings returns the attached expressions in refresh order.
func (s *Store) Bindings() []*Expression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.all)
}

// RequestRefresh brings every binding of the object up to date.
//
// If the object has an inbound context binding and this call is not part of
// a context cascade, only that binding is refreshed: setting the context
// then cascades to the other bindings, so all of them observe the new
// context. Otherwise every other binding is refreshed in order; outbound
// bindings only when includeOutbound is set, and properties excluded from
// context refresh are skipped during a cascade. Children of a Container
// are refreshed afterwards.
//
// All refreshes run synchronously. Failures are collected and the pass
// continues; bindings without a context are skipped.
func (s *Store) RequestRefresh(ctx context.Context, includeOutbound bool) error {
	s.mu.Lock()
	cascading := s.refreshingContext
	ctxBinding := s.inbound[ContextProperty.Descriptor]
	all := slices.Clone(s.all)
	s.mu.Unlock()

	// Setting the context cascades back into this method, children included.
	if !cascading && ctxBinding != nil {
		err := ctxBinding.RefreshSync(ctx, false)
		if err != nil && !IsNullContext(err) {
			return fmt.Errorf("refresh %s: %w", ctxBinding, err)
		}
		return nil
	}

	var errs []error
	for _, e := range all {
		if e.prop == ContextProperty.Descriptor {
			continue
		}
		dir := e.binding.Direction
		if dir.Pushes() && !includeOutbound {
			continue
		}
		if cascading && e.prop.excluded {
			continue
		}
		err := e.RefreshSync(ctx, dir == OneWayToSource)
		if err == nil {
			continue
		}
		if IsNullContext(err) {
			slog.Debug("binding skipped without context", "binding", e.String())
			continue
		}
		errs = append(errs, fmt.Errorf("refresh %s: %w", e, err))
	}

	if c, ok := s.owner.(Container); ok {
		for _, child := range c.ChildObjects() {
			if err := child.Properties().RequestRefresh(ctx, includeOutbound); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Reset clears all values and bindings. Dropped bindings release their
// change subscriptions.
func (s *Store) Reset() {
	s.mu.Lock()
	dropped := s.all
	s.values = make(map[*Descriptor]any)
	s.all = nil
	s.inbound = make(map[*Descriptor]*Expression)
	s.outbound = make(map[*Descriptor]*Expression)
	s.mu.Unlock()

	for _, e := range dropped {
		e.release()
	}
}
