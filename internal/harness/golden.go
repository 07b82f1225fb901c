package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a result as the line-oriented text stored in golden
// files and printed by the CLI:
//
//	# scenario: context_order
//	# pass: true
//	1 property root.DataContext "@model"
//	2 step set_source
//	# error: steps[0].expect: row.Text = "Ann", want "Bob"
//
// Values are JSON; step lines carry none.
func FormatTrace(result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# scenario: %s\n", result.Scenario)
	fmt.Fprintf(&b, "# pass: %t\n", result.Pass)
	for _, ev := range result.Trace {
		b.WriteString(FormatEvent(ev))
		b.WriteByte('\n')
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(&b, "# error: %s\n", msg)
	}
	return []byte(b.String())
}

// FormatEvent renders one trace line without the newline.
func FormatEvent(ev Event) string {
	line := fmt.Sprintf("%d %s", ev.Seq, ev.Kind)
	switch {
	case ev.Object != "":
		line += " " + ev.Object + "." + ev.Member
	case ev.Member != "":
		line += " " + ev.Member
	}
	if ev.Kind != KindStep {
		line += " " + encode(ev.Value)
	}
	return line
}

// RunWithGolden runs a scenario and compares its formatted trace with
// testdata/golden/<scenario name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatTrace(result))
}
