package property

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/knit/internal/dispatch"
	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/path"
	"github.com/roach88/knit/internal/reflector"
)

// Expression is the live instance of a Binding attached to one
// (Object, Descriptor) pair.
//
// An Expression is attached exactly once and never detached. Refreshes run
// on its Dispatcher: Refresh runs directly and must be called from a
// dispatcher body, QueueRefresh enqueues, RefreshSync invokes and waits.
type Expression struct {
	binding Binding
	path    *path.Resolver
	disp    dispatch.Dispatcher
	seq     int64
	handler *path.Handler

	mu          sync.Mutex
	target      Object
	prop        *Descriptor
	lastContext any
}

// ExpressionOption configures an Expression.
type ExpressionOption func(*expressionConfig)

type expressionConfig struct {
	reflector reflector.Reflector
}

// WithReflector replaces the member reflector used by the binding path.
// Default: registered properties of Objects first, then reflection.
func WithReflector(r reflector.Reflector) ExpressionOption {
	return func(c *expressionConfig) {
		if r != nil {
			c.reflector = r
		}
	}
}

// DefaultReflector resolves registered properties of Objects first and
// falls back to reflection for everything else.
func DefaultReflector() reflector.Reflector {
	return defaultReflector()
}

// NewExpression creates an unattached expression for b, scheduled on disp.
// A zero Direction means OneWay.
func NewExpression(b Binding, disp dispatch.Dispatcher, opts ...ExpressionOption) (*Expression, error) {
	if disp == nil {
		return nil, fmt.Errorf("binding %q: nil dispatcher", b.Path)
	}
	if b.Direction == 0 {
		b.Direction = OneWay
	}

	cfg := expressionConfig{reflector: DefaultReflector()}
	for _, opt := range opts {
		opt(&cfg)
	}

	p, err := path.New(b.Path,
		path.WithReflector(cfg.reflector),
		path.WithObserver(observerOf),
	)
	if err != nil {
		return nil, fmt.Errorf("binding %q: %w", b.Path, err)
	}

	e := &Expression{
		binding: b,
		path:    p,
		disp:    disp,
		seq:     expressionClock.Next(),
	}
	e.handler = path.NewHandler(e.onValueChanged)

	slog.Debug("binding expression created",
		"path", b.Path,
		"direction", b.Direction.String(),
		"seq", e.seq,
	)
	return e, nil
}

// observerOf makes Objects observable through their Store.
func observerOf(obj any) (notify.Observable, bool) {
	if o, ok := obj.(Object); ok {
		if s := o.Properties(); s != nil {
			return s, true
		}
	}
	o, ok := obj.(notify.Observable)
	return o, ok
}

// Binding returns the declaration e was created from.
func (e *Expression) Binding() Binding { return e.binding }

// Path returns the resolver of the binding path.
func (e *Expression) Path() *path.Resolver { return e.path }

// Seq returns the creation sequence id.
func (e *Expression) Seq() int64 { return e.seq }

// Target returns the attachment point, or nils before Attach.
func (e *Expression) Target() (Object, *Descriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target, e.prop
}

// Property returns the attached descriptor, or nil before Attach.
func (e *Expression) Property() *Descriptor {
	_, d := e.Target()
	return d
}

// Attach binds e to (obj, d). A second Attach fails with ALREADY_ATTACHED.
func (e *Expression) Attach(obj Object, d *Descriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target != nil || e.prop != nil {
		return &Error{
			Code:     ErrCodeAlreadyAttached,
			Message:  fmt.Sprintf("binding %q is already attached", e.binding.Path),
			Property: e.prop.String(),
			Owner:    fmt.Sprintf("%T", e.target),
		}
	}
	e.target = obj
	e.prop = d
	return nil
}

// DependsOn returns the expression e must refresh after: the inbound
// context binding on the same object, or nil.
func (e *Expression) DependsOn() *Expression {
	target, d := e.Target()
	if target == nil || d == ContextProperty.Descriptor {
		return nil
	}
	return target.Properties().Inbound(ContextProperty.Descriptor)
}

// Refresh synchronizes e once.
//
// When the binding pushes and targetChanged is set, the target's value is
// written into the source. Otherwise, when it pulls, the source value is
// written into the target and the change subscription is moved to the
// current source.
func (e *Expression) Refresh(ctx context.Context, obj Object, targetChanged bool) error {
	return e.refresh(ctx, obj, targetChanged, known{})
}

// known carries a value the caller already has, saving a read. root is the
// source the value was read under; a pull ignores the value once the
// binding's source is no longer root.
type known struct {
	value any
	root  any
	ok    bool
}

func (e *Expression) refresh(ctx context.Context, obj Object, targetChanged bool, kv known) error {
	target, prop := e.Target()
	if target == nil {
		return &Error{Code: ErrCodeNotAttached, Message: fmt.Sprintf("binding %q is not attached", e.binding.Path)}
	}
	if !sameObject(obj, target) {
		return &Error{
			Code:     ErrCodeNotAttached,
			Message:  fmt.Sprintf("binding %q is attached to another object", e.binding.Path),
			Property: prop.String(),
			Owner:    fmt.Sprintf("%T", obj),
		}
	}

	source, err := e.source(target)
	if err != nil {
		return err
	}

	slog.Debug("refreshing binding",
		"path", e.binding.Path,
		"property", prop.String(),
		"target_changed", targetChanged,
	)

	dir := e.binding.Direction
	switch {
	case dir.Pushes() && targetChanged:
		value := kv.value
		if !kv.ok {
			if value, err = target.Properties().Get(prop); err != nil {
				return err
			}
		}
		if err := e.path.SetValue(source, value); err != nil {
			return fmt.Errorf("push %s to %q: %w", prop, e.binding.Path, err)
		}

	case dir.Pulls():
		if kv.ok && !sameObject(kv.root, source) {
			kv = known{}
		}
		value := kv.value
		if !kv.ok {
			if value, err = e.path.GetValue(source); err != nil {
				return fmt.Errorf("pull %q into %s: %w", e.binding.Path, prop, err)
			}
		}
		if value == nil {
			value = prop.zero()
		}
		if err := target.Properties().setValue(ctx, prop, value, e); err != nil {
			return err
		}
		e.resubscribe(source)
	}

	return nil
}

// source returns the explicit source, else the target's context. A binding
// of the context itself reads the parent's context, never its own result.
func (e *Expression) source(target Object) (any, error) {
	if e.binding.Source != nil {
		return e.binding.Source, nil
	}

	var ctxValue any
	if e.Property() == ContextProperty.Descriptor {
		if parent := parentOf(target); parent != nil {
			v, err := parent.Properties().Get(ContextProperty.Descriptor)
			if err != nil {
				return nil, err
			}
			ctxValue = v
		}
	} else {
		v, err := target.Properties().Get(ContextProperty.Descriptor)
		if err != nil {
			return nil, err
		}
		ctxValue = v
	}
	if reflector.IsNil(ctxValue) {
		return nil, &Error{
			Code:     ErrCodeNullContext,
			Message:  fmt.Sprintf("binding %q has no source", e.binding.Path),
			Property: e.Property().String(),
		}
	}
	return ctxValue, nil
}

func (e *Expression) resubscribe(source any) {
	e.mu.Lock()
	last := e.lastContext
	e.lastContext = source
	e.mu.Unlock()

	if last != nil && !sameObject(last, source) {
		e.path.RemoveChangedHandler(last, e.handler)
	}
	if _, err := e.path.AddChangedHandler(source, e.handler); err != nil {
		slog.Warn("binding subscription incomplete",
			"path", e.binding.Path,
			"error", err,
		)
	}
}

// release drops the change subscription.
func (e *Expression) release() {
	e.mu.Lock()
	last := e.lastContext
	e.lastContext = nil
	e.mu.Unlock()

	if last != nil {
		e.path.RemoveChangedHandler(last, e.handler)
	}
}

func (e *Expression) onValueChanged(source any, value any) {
	target, _ := e.Target()
	e.mu.Lock()
	root := e.lastContext
	e.mu.Unlock()
	e.queueRefresh(sameObject(source, target), known{value: value, root: root, ok: true})
}

// QueueRefresh schedules Refresh on the dispatcher. Failures of operations
// nobody waits on go to the dispatcher's error handler.
func (e *Expression) QueueRefresh(targetChanged bool) *dispatch.Operation {
	return e.queueRefresh(targetChanged, known{})
}

func (e *Expression) queueRefresh(targetChanged bool, kv known) *dispatch.Operation {
	return dispatch.Post(e.disp, func(ctx context.Context) error {
		target, _ := e.Target()
		return e.refresh(ctx, target, targetChanged, kv)
	})
}

// RefreshSync runs Refresh on the dispatcher and waits for it, inline when
// ctx already runs there.
func (e *Expression) RefreshSync(ctx context.Context, targetChanged bool) error {
	return dispatch.Do(ctx, e.disp, func(ctx context.Context) error {
		target, _ := e.Target()
		return e.refresh(ctx, target, targetChanged, known{})
	})
}

// String describes the expression for logs.
func (e *Expression) String() string {
	target, d := e.Target()
	if target == nil {
		return fmt.Sprintf("binding %q (unattached)", e.binding.Path)
	}
	return fmt.Sprintf("binding %q on %T.%s", e.binding.Path, target, d.Name())
}

// sameObject compares identities without panicking on uncomparable types.
func sameObject(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
