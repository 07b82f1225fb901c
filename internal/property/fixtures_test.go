package property

import (
	"context"
	"reflect"
	"testing"

	"github.com/roach88/knit/internal/dispatch"
	"github.com/roach88/knit/internal/notify"
)

// widget is a bindable tree node.
type widget struct {
	props    *Store
	parent   *widget
	children []*widget
}

func newWidget(parent *widget) *widget {
	w := &widget{parent: parent}
	w.props = NewStore(w)
	if parent != nil {
		parent.children = append(parent.children, w)
	}
	return w
}

func (w *widget) Properties() *Store { return w.props }

func (w *widget) ParentObject() Object {
	if w.parent == nil {
		return nil
	}
	return w.parent
}

func (w *widget) ChildObjects() []Object {
	out := make([]Object, len(w.children))
	for i, c := range w.children {
		out[i] = c
	}
	return out
}

// fancy inherits the widget properties through embedding.
type fancy struct {
	widget
}

func newFancy() *fancy {
	f := &fancy{}
	f.props = NewStore(f)
	return f
}

// gadget is an unrelated bindable type.
type gadget struct {
	props *Store
}

func newGadget() *gadget {
	g := &gadget{}
	g.props = NewStore(g)
	return g
}

func (g *gadget) Properties() *Store { return g.props }

// lazy registers its properties on first lookup.
type lazy struct {
	props *Store
}

func (l *lazy) Properties() *Store { return l.props }

type person struct {
	notify.Hub
	Name    string
	Age     int
	Address *address
}

type address struct {
	notify.Hub
	City string
}

// bag holds an untyped value.
type bag struct {
	Item any
}

type selection struct {
	notify.Hub
	Selected *person
}

var (
	countChanged int

	titleProp = MustRegister[*widget, string]("Title", "untitled")
	countProp = MustRegister[*widget, int]("Count", 0,
		WithValidate(func(_ Object, v int) bool { return v >= 0 }),
		WithChanged(func(Object, int) { countChanged++ }),
	)
	themeProp = MustRegister[*widget, string]("Theme", "light", Inherits())
	styleProp = MustRegister[*widget, string]("Style", "plain", ExcludedFromContextRefresh())

	gadgetTitle = MustRegister[*gadget, string]("Title", "")
	dockProp    = MustRegisterAttached[*gadget, string]("Dock", "top")

	lazyInits int
	lazyProp  *Property[int]
	_         = RegisterType(reflect.TypeFor[*lazy](), func() {
		lazyInits++
		lazyProp = MustRegister[*lazy, int]("Lazy", 7)
	})
)

// newLoop returns a cooperative dispatcher and a context that runs on it.
func newLoop(t *testing.T) (*dispatch.Loop, context.Context) {
	t.Helper()
	loop := dispatch.NewLoop()
	t.Cleanup(loop.Close)
	return loop, loop.Context(context.Background())
}
