package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/knit/internal/dispatch"
	"github.com/roach88/knit/internal/logs"
	"github.com/roach88/knit/internal/path"
	"github.com/roach88/knit/internal/property"
)

// Dispatchers a scenario can run on.
const (
	DispatcherLoop   = "loop"
	DispatcherWorker = "worker"
)

// runner holds the live objects of one scenario run.
type runner struct {
	scenario *Scenario
	disp     dispatch.Dispatcher
	settle   func(context.Context) error

	sources  map[string]*Record
	elements map[string]*Element

	mu     sync.Mutex
	seq    int64 // last trace sequence number
	result *Result
}

// Run executes a scenario and returns its trace.
//
// Run fails only when the scenario cannot be executed at all (an unknown
// property, a malformed path, a failing build). Failed expectations and
// unexpected step errors are reported in Result.Errors.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	ctx = logs.WithScenario(ctx, s.Name)
	r := &runner{
		scenario: s,
		sources:  make(map[string]*Record),
		elements: make(map[string]*Element),
		result:   newResult(s.Name),
	}

	ctx, stop := r.startDispatcher(ctx)
	defer stop()

	if err := r.exec(ctx, r.build); err != nil {
		return nil, fmt.Errorf("build scenario %s: %w", s.Name, err)
	}
	for i, step := range s.Steps {
		err := r.exec(ctx, func(ctx context.Context) error {
			return r.step(ctx, i, step)
		})
		if err != nil {
			return nil, fmt.Errorf("steps[%d].%s: %w", i, step.Kind(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	slog.InfoContext(ctx, "scenario finished",
		"pass", r.result.Pass,
		"events", len(r.result.Trace),
		"errors", len(r.result.Errors),
	)
	return r.result, nil
}

// startDispatcher creates the dispatcher named by the scenario. The
// returned context is the one steps run with.
func (r *runner) startDispatcher(ctx context.Context) (context.Context, func()) {
	opts := []dispatch.Option{
		dispatch.WithName(r.scenario.Name),
		dispatch.WithErrorHandler(r.asyncFailure),
	}

	if r.scenario.Dispatcher == DispatcherWorker {
		w := dispatch.StartWorker(ctx, opts...)
		r.disp = w
		r.settle = func(ctx context.Context) error {
			for {
				// Checked on the worker itself, so nothing is mid-flight.
				idle, err := dispatch.InvokeValue(ctx, w, func(context.Context) (bool, error) {
					return w.Len() == 0, nil
				})
				if err != nil || idle {
					return err
				}
			}
		}
		return ctx, w.Close
	}

	loop := dispatch.NewLoop(opts...)
	r.disp = loop
	r.settle = func(ctx context.Context) error {
		loop.Drain(ctx)
		return ctx.Err()
	}
	return loop.Context(ctx), loop.Close
}

// exec runs fn on the dispatcher, then lets queued refreshes settle.
func (r *runner) exec(ctx context.Context, fn dispatch.Action) error {
	if err := dispatch.Do(ctx, r.disp, fn); err != nil {
		return err
	}
	return r.settle(ctx)
}

func (r *runner) asyncFailure(op *dispatch.Operation, err error) {
	if property.IsNullContext(err) {
		return
	}
	slog.Debug("queued refresh failed", "operation", op.ID(), "error", err)
	r.event(KindError, "", "refresh", err.Error())
}

func (r *runner) event(kind, object, member string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.result.Trace = append(r.result.Trace, Event{
		Seq:    r.seq,
		Kind:   kind,
		Object: object,
		Member: member,
		Value:  value,
	})
}

func (r *runner) fail(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.AddError(fmt.Sprintf(format, args...))
}

// =============================================================================
// Build
// =============================================================================

func (r *runner) build(ctx context.Context) error {
	s := r.scenario

	// Sources may refer to each other, so all exist before any is filled.
	names := slices.Sorted(maps.Keys(s.Sources))
	for _, name := range names {
		r.sources[name] = r.newRecord(name)
	}
	for _, name := range names {
		fields, err := r.convertFields(name, s.Sources[name])
		if err != nil {
			return err
		}
		r.sources[name].fields = fields
	}

	for _, def := range s.Elements {
		el := NewElement(def.Name, r.elements[def.Parent])
		el.Properties().Observe(func(_ any, member string) {
			r.propertyChanged(el, member)
		})
		r.elements[def.Name] = el
	}

	for _, def := range s.Elements {
		if err := r.configure(ctx, def); err != nil {
			return fmt.Errorf("element %s: %w", def.Name, err)
		}
	}
	return nil
}

func (r *runner) configure(ctx context.Context, def ElementSpec) error {
	el := r.elements[def.Name]

	for _, name := range slices.Sorted(maps.Keys(def.Values)) {
		d, err := descriptor(name)
		if err != nil {
			return err
		}
		v, err := r.convert(def.Name+"."+name, def.Values[name])
		if err != nil {
			return err
		}
		if err := el.Properties().Set(ctx, d, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	if def.Context != "" {
		if err := property.ContextProperty.Set(ctx, el, r.sources[def.Context]); err != nil {
			return fmt.Errorf("set context: %w", err)
		}
	}

	for _, b := range def.Bindings {
		d, err := descriptor(b.Property)
		if err != nil {
			return err
		}
		dir, err := property.ParseDirection(b.Direction)
		if err != nil {
			return err
		}
		binding := property.Binding{Path: b.Path, Direction: dir}
		if b.Source != "" {
			binding.Source = r.lookup(b.Source)
		}

		e, err := el.Properties().Bind(ctx, d, binding, r.disp)
		if e == nil && err != nil {
			return fmt.Errorf("bind %s: %w", b.Property, err)
		}
		if err != nil {
			// The binding stays registered and retries on the next refresh.
			r.event(KindError, def.Name, b.Property, err.Error())
		}
	}
	return nil
}

func (r *runner) newRecord(name string) *Record {
	rec := NewRecord(name, nil)
	rec.Observe(func(_ any, member string) {
		v, _ := rec.Member(member)
		r.event(KindSource, rec.Name(), member, render(v))
	})
	return rec
}

func (r *runner) convertFields(name string, raw map[string]any) (map[string]any, error) {
	fields := make(map[string]any, len(raw))
	for key, v := range raw {
		converted, err := r.convert(name+"."+key, v)
		if err != nil {
			return nil, err
		}
		fields[key] = converted
	}
	return fields, nil
}

// convert turns scenario values into live ones: maps become records and
// "@name" strings become the named source.
func (r *runner) convert(name string, v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		rec := r.newRecord(name)
		fields, err := r.convertFields(name, x)
		if err != nil {
			return nil, err
		}
		rec.fields = fields
		return rec, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			converted, err := r.convert(fmt.Sprintf("%s[%d]", name, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case string:
		if ref, ok := strings.CutPrefix(x, "@"); ok {
			rec, ok := r.sources[ref]
			if !ok {
				return nil, fmt.Errorf("%s: unknown source reference %q", name, x)
			}
			return rec, nil
		}
	}
	return v, nil
}

// lookup resolves a binding source name: sources first, then elements.
func (r *runner) lookup(name string) any {
	if rec, ok := r.sources[name]; ok {
		return rec
	}
	return r.elements[name]
}

func (r *runner) propertyChanged(el *Element, member string) {
	d, ok := Descriptor(member)
	if !ok {
		return
	}
	v, err := el.Properties().Get(d)
	if err != nil {
		slog.Warn("changed property unreadable", "element", el.Name(), "property", member, "error", err)
		return
	}
	r.event(KindProperty, el.Name(), member, render(v))
}

func descriptor(name string) (*property.Descriptor, error) {
	d, ok := Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("unknown property %q", name)
	}
	return d, nil
}

// =============================================================================
// Steps
// =============================================================================

func (r *runner) step(ctx context.Context, i int, step Step) error {
	kind := step.Kind()
	r.event(KindStep, "", kind, nil)
	slog.DebugContext(ctx, "scenario step", "index", i, "kind", kind)

	switch {
	case step.SetSource != nil:
		st := step.SetSource
		v, err := r.convert(st.Source+"."+st.Path, st.Value)
		if err != nil {
			return err
		}
		p, err := newPath(st.Path)
		if err != nil {
			return err
		}
		r.check(i, kind, p.SetValue(r.sources[st.Source], v), st.Error)

	case step.SetProperty != nil:
		st := step.SetProperty
		d, err := descriptor(st.Property)
		if err != nil {
			return err
		}
		v, err := r.convert(st.Element+"."+st.Property, st.Value)
		if err != nil {
			return err
		}
		r.check(i, kind, r.elements[st.Element].Properties().Set(ctx, d, v), st.Error)

	case step.SetContext != nil:
		st := step.SetContext
		var src any
		if st.Source != "" {
			src = r.sources[st.Source]
		}
		r.check(i, kind, property.ContextProperty.Set(ctx, r.elements[st.Element], src), st.Error)

	case step.Refresh != nil:
		st := step.Refresh
		r.check(i, kind, r.elements[st.Element].Properties().RequestRefresh(ctx, st.IncludeOutbound), st.Error)

	case step.Expect != nil:
		return r.expect(i, step.Expect)

	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

// check compares a step outcome with the error the step expects.
func (r *runner) check(i int, kind string, err error, want string) {
	switch {
	case err == nil && want == "":
	case err == nil:
		r.fail("steps[%d].%s: expected an error containing %q", i, kind, want)
	case want == "":
		r.event(KindError, "", kind, err.Error())
		r.fail("steps[%d].%s: %v", i, kind, err)
	case !strings.Contains(err.Error(), want):
		r.event(KindError, "", kind, err.Error())
		r.fail("steps[%d].%s: expected an error containing %q, got %v", i, kind, want, err)
	default:
		r.event(KindError, "", kind, err.Error())
	}
}

func (r *runner) expect(i int, e *Expect) error {
	var (
		label  string
		actual any
		err    error
	)
	if e.Element != "" {
		label = e.Element + "." + e.Property
		d, derr := descriptor(e.Property)
		if derr != nil {
			return derr
		}
		actual, err = r.elements[e.Element].Properties().Get(d)
	} else {
		label = e.Source + "." + e.Path
		p, perr := newPath(e.Path)
		if perr != nil {
			return perr
		}
		actual, err = p.GetValue(r.sources[e.Source])
	}
	if err != nil {
		r.fail("steps[%d].expect: %s: %v", i, label, err)
		return nil
	}

	got, want := encode(render(actual)), encode(e.Value)
	if got != want {
		r.fail("steps[%d].expect: %s = %s, want %s", i, label, got, want)
	}
	return nil
}

func newPath(expr string) (*path.Resolver, error) {
	return path.New(expr,
		path.WithReflector(property.DefaultReflector()),
	)
}

// render replaces live objects by their trace names.
func render(v any) any {
	switch x := v.(type) {
	case *Record:
		if x == nil {
			return nil
		}
		return x.String()
	case *Element:
		if x == nil {
			return nil
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = render(item)
		}
		return out
	}
	return v
}

// encode is the JSON text of v, used both to compare values and to print
// them in traces.
func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
