package store

// Run is one stored harness run.
type Run struct {
	ID       string
	Scenario string
	Pass     bool
	Errors   []string

	// Events is the number of stored trace events.
	Events int
}

// Event is one trace entry of a run.
type Event struct {
	Seq    int64
	Kind   string
	Object string
	Member string

	// Value is any JSON-encodable value. Read back, numbers are float64
	// and objects are map[string]any.
	Value any
}
