package harness

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/knit/internal/notify"
	"github.com/roach88/knit/internal/reflector"
)

// Record is an observable map-like source object. Members are resolved at
// runtime through reflector.Dynamic, and every SetMember announces the
// change.
type Record struct {
	notify.Hub

	name   string
	mu     sync.Mutex
	fields map[string]any
}

var (
	_ reflector.Dynamic = (*Record)(nil)
	_ notify.Observable = (*Record)(nil)
)

// NewRecord returns a record holding a copy of fields.
func NewRecord(name string, fields map[string]any) *Record {
	return &Record{name: name, fields: maps.Clone(fields)}
}

// Name returns the name the record is referred to by in traces.
func (r *Record) Name() string { return r.name }

// Member implements reflector.Dynamic.
func (r *Record) Member(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[name]
	return v, ok
}

// SetMember implements reflector.Dynamic.
func (r *Record) SetMember(name string, value any) error {
	r.mu.Lock()
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = value
	r.mu.Unlock()

	r.Emit(r, name)
	return nil
}

// Members returns the member names in sorted order.
func (r *Record) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.fields))
}

func (r *Record) String() string { return "@" + r.name }
