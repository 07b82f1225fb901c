package harness

// Trace event kinds.
const (
	// KindStep marks the start of a scenario step; Member is the step kind.
	KindStep = "step"

	// KindProperty is an element property change.
	KindProperty = "property"

	// KindSource is a source record member change.
	KindSource = "source"

	// KindError is a failure: an asynchronous binding refresh that failed,
	// or a step that failed as expected.
	KindError = "error"
)

// Event is one trace entry.
type Event struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Object string `json:"object,omitempty"`
	Member string `json:"member,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Trace    []Event  `json:"trace"`
	Errors   []string `json:"errors,omitempty"`
}

func newResult(name string) *Result {
	return &Result{Scenario: name, Pass: true, Trace: []Event{}}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
