package harness

import (
	"fmt"
)

// Scenario is a binding scenario.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Dispatcher is "loop" (default) or "worker".
	Dispatcher string `yaml:"dispatcher,omitempty" json:"dispatcher,omitempty"`

	// Sources are the named top-level source records.
	Sources map[string]map[string]any `yaml:"sources,omitempty" json:"sources,omitempty"`

	// Elements are created in order; a parent must be declared before its
	// children.
	Elements []ElementSpec `yaml:"elements" json:"elements"`

	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// ElementSpec declares one element of the tree.
type ElementSpec struct {
	Name   string `yaml:"name" json:"name"`
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`

	// Context names the source record set as the element's context.
	Context string `yaml:"context,omitempty" json:"context,omitempty"`

	// Values are local property values, applied in name order.
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	Bindings []BindingSpec `yaml:"bindings,omitempty" json:"bindings,omitempty"`
}

// BindingSpec declares a binding on an element property.
type BindingSpec struct {
	Property  string `yaml:"property" json:"property"`
	Path      string `yaml:"path" json:"path"`
	Direction string `yaml:"direction,omitempty" json:"direction,omitempty"`

	// Source names a source record or an element. Empty uses the context.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Step is one scenario step. Exactly one field is set.
type Step struct {
	SetSource   *SetSource   `yaml:"set_source,omitempty" json:"set_source,omitempty"`
	SetProperty *SetProperty `yaml:"set_property,omitempty" json:"set_property,omitempty"`
	SetContext  *SetContext  `yaml:"set_context,omitempty" json:"set_context,omitempty"`
	Refresh     *Refresh     `yaml:"refresh,omitempty" json:"refresh,omitempty"`
	Expect      *Expect      `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// SetSource writes Value at Path inside a source record.
type SetSource struct {
	Source string `yaml:"source" json:"source"`
	Path   string `yaml:"path" json:"path"`
	Value  any    `yaml:"value" json:"value"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

// SetProperty sets a property of an element.
type SetProperty struct {
	Element  string `yaml:"element" json:"element"`
	Property string `yaml:"property" json:"property"`
	Value    any    `yaml:"value" json:"value"`
	Error    string `yaml:"error,omitempty" json:"error,omitempty"`
}

// SetContext replaces the context of an element. An empty Source clears it.
type SetContext struct {
	Element string `yaml:"element" json:"element"`
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
	Error   string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Refresh requests a refresh of an element's bindings and its subtree.
type Refresh struct {
	Element         string `yaml:"element" json:"element"`
	IncludeOutbound bool   `yaml:"include_outbound,omitempty" json:"include_outbound,omitempty"`
	Error           string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Expect checks either Element.Property or Source.Path against Value.
type Expect struct {
	Element  string `yaml:"element,omitempty" json:"element,omitempty"`
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
	Source   string `yaml:"source,omitempty" json:"source,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Value    any    `yaml:"value" json:"value"`
}

// Step kinds, as spelled in scenario files and traces.
const (
	StepSetSource   = "set_source"
	StepSetProperty = "set_property"
	StepSetContext  = "set_context"
	StepRefresh     = "refresh"
	StepExpect      = "expect"
)

// Kind returns the kind of the step, or "" when none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.SetSource != nil {
		kinds = append(kinds, StepSetSource)
	}
	if s.SetProperty != nil {
		kinds = append(kinds, StepSetProperty)
	}
	if s.SetContext != nil {
		kinds = append(kinds, StepSetContext)
	}
	if s.Refresh != nil {
		kinds = append(kinds, StepRefresh)
	}
	if s.Expect != nil {
		kinds = append(kinds, StepExpect)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// validateScenario checks what the schema cannot: references between
// elements, sources and declaration order.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Dispatcher {
	case "", DispatcherLoop, DispatcherWorker:
	default:
		return fmt.Errorf("unknown dispatcher %q", s.Dispatcher)
	}
	if len(s.Elements) == 0 {
		return fmt.Errorf("elements list is required and must be non-empty")
	}

	declared := make(map[string]bool)
	for i, el := range s.Elements {
		if el.Name == "" {
			return fmt.Errorf("elements[%d]: name is required", i)
		}
		if declared[el.Name] {
			return fmt.Errorf("elements[%d]: duplicate element %q", i, el.Name)
		}
		if hasSource(s, el.Name) {
			return fmt.Errorf("elements[%d]: %q is also a source name", i, el.Name)
		}
		if el.Parent != "" && !declared[el.Parent] {
			return fmt.Errorf("elements[%d]: parent %q must be declared first", i, el.Parent)
		}
		if el.Context != "" && !hasSource(s, el.Context) {
			return fmt.Errorf("elements[%d]: unknown context source %q", i, el.Context)
		}
		declared[el.Name] = true
	}

	for i, el := range s.Elements {
		for j, b := range el.Bindings {
			if b.Property == "" || b.Path == "" {
				return fmt.Errorf("elements[%d].bindings[%d]: property and path are required", i, j)
			}
			if b.Source != "" && !declared[b.Source] && !hasSource(s, b.Source) {
				return fmt.Errorf("elements[%d].bindings[%d]: unknown source %q", i, j, b.Source)
			}
		}
	}

	for i, step := range s.Steps {
		if step.Kind() == "" {
			return fmt.Errorf("steps[%d]: exactly one of set_source, set_property, set_context, refresh or expect is required", i)
		}
		if err := validateStep(s, declared, step); err != nil {
			return fmt.Errorf("steps[%d].%s: %w", i, step.Kind(), err)
		}
	}
	return nil
}

func validateStep(s *Scenario, elements map[string]bool, step Step) error {
	element := func(name string) error {
		if !elements[name] {
			return fmt.Errorf("unknown element %q", name)
		}
		return nil
	}
	source := func(name string) error {
		if !hasSource(s, name) {
			return fmt.Errorf("unknown source %q", name)
		}
		return nil
	}

	switch {
	case step.SetSource != nil:
		return source(step.SetSource.Source)
	case step.SetProperty != nil:
		return element(step.SetProperty.Element)
	case step.SetContext != nil:
		if step.SetContext.Source != "" {
			if err := source(step.SetContext.Source); err != nil {
				return err
			}
		}
		return element(step.SetContext.Element)
	case step.Refresh != nil:
		return element(step.Refresh.Element)
	case step.Expect != nil:
		e := step.Expect
		switch {
		case e.Element != "" && e.Property != "" && e.Source == "" && e.Path == "":
			return element(e.Element)
		case e.Source != "" && e.Path != "" && e.Element == "" && e.Property == "":
			return source(e.Source)
		}
		return fmt.Errorf("either element and property or source and path are required")
	}
	return nil
}

func hasSource(s *Scenario, name string) bool {
	_, ok := s.Sources[name]
	return ok
}
