package property

import "fmt"

// Direction says which way a binding moves values.
type Direction int

const (
	// OneWay pulls from the source into the target property.
	OneWay Direction = 1 << iota
	// OneWayToSource pushes the target property into the source.
	OneWayToSource
	// TwoWay does both.
	TwoWay = OneWay | OneWayToSource
)

// Pulls reports whether d includes source-to-target.
func (d Direction) Pulls() bool { return d&OneWay != 0 }

// Pushes reports whether d includes target-to-source.
func (d Direction) Pushes() bool { return d&OneWayToSource != 0 }

// String returns the scenario-file spelling of d.
func (d Direction) String() string {
	switch d {
	case OneWay:
		return "one_way"
	case OneWayToSource:
		return "one_way_to_source"
	case TwoWay:
		return "two_way"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection parses the scenario-file spelling of a Direction.
// The empty string is OneWay.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "one_way":
		return OneWay, nil
	case "one_way_to_source":
		return OneWayToSource, nil
	case "two_way":
		return TwoWay, nil
	}
	return 0, fmt.Errorf("unknown binding direction %q", s)
}

// Binding is a binding declaration: a dotted source path, a direction and
// an optional explicit source that overrides the target's context.
type Binding struct {
	Path      string
	Direction Direction
	Source    any
}
