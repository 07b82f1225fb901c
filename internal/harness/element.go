package harness

import (
	"reflect"

	"github.com/roach88/knit/internal/property"
)

// Element is a bindable tree node.
type Element struct {
	name     string
	parent   *Element
	children []*Element
	props    *property.Store
}

var (
	_ property.Parented  = (*Element)(nil)
	_ property.Container = (*Element)(nil)
)

// Properties every Element carries.
var (
	TextProperty    = property.MustRegister[*Element, string]("Text", "")
	EnabledProperty = property.MustRegister[*Element, bool]("Enabled", true)
	ValueProperty   = property.MustRegister[*Element, any]("Value", nil)

	// CountProperty rejects negative values.
	CountProperty = property.MustRegister[*Element, int]("Count", 0,
		property.WithValidate(func(_ property.Object, v int) bool { return v >= 0 }),
	)

	// ThemeProperty is inherited from the nearest ancestor that sets it.
	ThemeProperty = property.MustRegister[*Element, string]("Theme", "light",
		property.Inherits(),
	)

	// StatusProperty keeps its value through context changes; it refreshes
	// only on an explicit request.
	StatusProperty = property.MustRegister[*Element, string]("Status", "",
		property.ExcludedFromContextRefresh(),
	)
)

var elementType = reflect.TypeFor[*Element]()

// NewElement creates an element under parent, which may be nil.
func NewElement(name string, parent *Element) *Element {
	e := &Element{name: name, parent: parent}
	e.props = property.NewStore(e)
	if parent != nil {
		parent.children = append(parent.children, e)
	}
	return e
}

// Name returns the element name.
func (e *Element) Name() string { return e.name }

// Properties implements property.Object.
func (e *Element) Properties() *property.Store { return e.props }

// ParentObject implements property.Parented.
func (e *Element) ParentObject() property.Object {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

// ChildObjects implements property.Container.
func (e *Element) ChildObjects() []property.Object {
	out := make([]property.Object, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

// Descriptor looks up a property of Element by name.
func Descriptor(name string) (*property.Descriptor, bool) {
	return property.Lookup(name, elementType)
}

func (e *Element) String() string { return "#" + e.name }
