// Package notify provides the property-changed capability that binding
// sources implement so path subscriptions can follow them.
package notify

import "sync"

// Handler is called after a named member of sender changed.
type Handler func(sender any, member string)

// Observable is implemented by objects that announce member changes.
// Observe returns a function that removes the handler; calling it more than
// once is harmless.
type Observable interface {
	Observe(h Handler) (cancel func())
}

// Hub is an embeddable Observable.
//
// Handlers run synchronously on the goroutine that calls Emit, in
// registration order. They must not mutate the observed object directly.
//
// The zero value is ready to use.
type Hub struct {
	mu       sync.Mutex
	next     uint64
	handlers []entry
}

type entry struct {
	id uint64
	fn Handler
}

var _ Observable = (*Hub)(nil)

// Observe implements Observable.
func (h *Hub) Observe(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	h.handlers = append(h.handlers, entry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.handlers {
		if e.id == id {
			// Copy so snapshots held by a running Emit stay intact.
			handlers := make([]entry, 0, len(h.handlers)-1)
			handlers = append(handlers, h.handlers[:i]...)
			h.handlers = append(handlers, h.handlers[i+1:]...)
			return
		}
	}
}

// Emit announces that member of sender changed.
func (h *Hub) Emit(sender any, member string) {
	h.mu.Lock()
	handlers := h.handlers
	h.mu.Unlock()

	for _, e := range handlers {
		e.fn(sender, member)
	}
}

// Len returns the number of registered handlers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}
