package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const greetingScenario = `
name: greeting
sources:
  person: { Name: Ann }
elements:
  - name: label
    context: person
    bindings:
      - { property: Text, path: Name }
steps:
  - set_source: { source: person, path: Name, value: Bob }
  - expect: { element: label, property: Text, value: Bob }
`

const greetingTrace = `# scenario: greeting
# pass: true
1 property label.DataContext "@person"
2 property label.Text "Ann"
3 step set_source
4 source person.Name "Bob"
5 property label.Text "Bob"
6 step expect
`

const failingScenario = `
name: failing
elements:
  - name: label
steps:
  - expect: { element: label, property: Text, value: Zed }
`

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
