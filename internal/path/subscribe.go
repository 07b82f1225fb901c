package path

import (
	"log/slog"
	"reflect"
	"slices"

	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/reflector"
)

// Handler receives the recomputed path value after an object along the
// chain announced a change. source is the object that changed.
//
// Handlers are compared by pointer identity; keep the *Handler to remove it.
type Handler struct {
	fn func(source any, value any)
}

// NewHandler wraps fn as a subscribable Handler.
func NewHandler(fn func(source any, value any)) *Handler {
	return &Handler{fn: fn}
}

type subKey struct {
	obj    any
	member string
}

type installKey struct {
	handler *Handler
	root    any
}

// subscription is the single hook kept per (object, member) no matter how
// many handlers listen through it.
type subscription struct {
	layer    int
	stages   []reflector.Getter
	def      any
	handlers []*Handler
	cancel   func()
}

// AddChangedHandler subscribes h to changes of every observable object
// along the path from root, as far as the chain currently resolves.
// Adding the same (h, root) again first drops the previous hooks, so a
// caller can resubscribe after an intermediate object was replaced.
//
// It reports whether at least one hook was installed.
func (p *Resolver) AddChangedHandler(root any, h *Handler) (bool, error) {
	if reflector.IsNil(root) {
		return false, p.nullRef(0)
	}
	if !reflect.TypeOf(root).Comparable() {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.entryForLocked(reflect.TypeOf(root))
	if err != nil {
		return false, err
	}

	ik := installKey{handler: h, root: root}
	p.uninstallLocked(ik)

	var keys []subKey
	defer func() {
		if len(keys) > 0 {
			p.installs[ik] = keys
		}
	}()

	v := root
	last := len(p.components) - 1
	for i := range p.components {
		if obs, ok := p.observe(v); ok && reflect.TypeOf(v).Comparable() {
			keys = append(keys, p.installLocked(obs, v, i, e, h))
		}
		if i == last {
			break
		}
		next, err := e.stages[i](v)
		if err != nil {
			return len(keys) > 0, err
		}
		if reflector.IsNil(next) {
			break
		}
		v = next
	}

	return len(keys) > 0, nil
}

// RemoveChangedHandler drops every hook AddChangedHandler installed for
// (h, root). It reports whether anything was removed.
func (p *Resolver) RemoveChangedHandler(root any, h *Handler) bool {
	if reflector.IsNil(root) || !reflect.TypeOf(root).Comparable() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uninstallLocked(installKey{handler: h, root: root})
}

// Subscriptions returns the number of live (object, member) hooks.
func (p *Resolver) Subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Resolver) installLocked(obs notify.Observable, obj any, layer int, e *entry, h *Handler) subKey {
	member := p.components[layer].name
	key := subKey{obj: obj, member: member}

	sub, ok := p.subs[key]
	if !ok {
		sub = &subscription{
			layer:  layer,
			stages: e.stages,
			def:    e.def,
		}
		p.subs[key] = sub
		sub.cancel = obs.Observe(func(sender any, changed string) {
			if changed != member {
				return
			}
			p.fire(key, sender)
		})
	}
	if !slices.Contains(sub.handlers, h) {
		sub.handlers = append(sub.handlers, h)
	}
	return key
}

func (p *Resolver) uninstallLocked(ik installKey) bool {
	keys, ok := p.installs[ik]
	if !ok {
		return false
	}
	delete(p.installs, ik)

	for _, key := range keys {
		sub, ok := p.subs[key]
		if !ok {
			continue
		}
		sub.handlers = slices.DeleteFunc(slices.Clone(sub.handlers), func(x *Handler) bool {
			return x == ik.handler
		})
		if len(sub.handlers) == 0 {
			sub.cancel()
			delete(p.subs, key)
		}
	}
	return true
}

// fire recomputes the tail of the path from the changed layer and calls
// the handlers outside the lock.
func (p *Resolver) fire(key subKey, sender any) {
	p.mu.Lock()
	sub, ok := p.subs[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	handlers := slices.Clone(sub.handlers)
	stages, layer, def := sub.stages, sub.layer, sub.def
	p.mu.Unlock()

	value, err := p.walk(stages, layer, len(stages), sender)
	if err != nil {
		slog.Warn("path change notification dropped",
			"path", p.expr,
			"member", key.member,
			"error", err,
		)
		return
	}
	if value == nil {
		value = def
	}

	for _, h := range handlers {
		h.fn(sender, value)
	}
}
