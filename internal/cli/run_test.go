package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knit/internal/store"
)

func TestRunMissingArgs(t *testing.T) {
	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestRunPrintsTrace(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "greeting.yaml", greetingScenario)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), file)
	require.NoError(t, err)
	assert.Equal(t, greetingTrace, out)
}

func TestRunFailingScenario(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "greeting.yaml", greetingScenario)
	bad := writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	assert.Contains(t, out, "# scenario: greeting\n# pass: true")
	assert.Contains(t, out, "# scenario: failing\n# pass: false")
	assert.Contains(t, out, `# error: steps[0].expect: label.Text = "", want "Zed"`)
}

func TestRunInvalidScenario(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "bad.yaml", "name: bad\n")

	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "load scenario")
}

func TestRunNonExistentFile(t *testing.T) {
	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunJSON(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "greeting.yaml", greetingScenario)

	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), file)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Empty(t, resp.Data[0].RunID)
	assert.True(t, resp.Data[0].Result.Pass)
	assert.Len(t, resp.Data[0].Result.Trace, 6)
}

func TestRunStoresTrace(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "greeting.yaml", greetingScenario)
	dbPath := filepath.Join(dir, "knit.db")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath, file)
	require.NoError(t, err)
	assert.Contains(t, out, "# run: ")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(t.Context(), "greeting")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Pass)
	assert.Equal(t, 6, runs[0].Events)

	events, err := st.ReadEvents(t.Context(), runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "source", events[3].Kind)
	assert.Equal(t, "person", events[3].Object)
	assert.Equal(t, "Bob", events[3].Value)
}

func TestRunWithIDGenerator(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "greeting.yaml", greetingScenario)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    filepath.Join(dir, "knit.db"),
		IDGenerator: func() string { return "run-fixed" },
	}
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(opts.RootOptions)
	cmd.SetOut(buf)

	require.NoError(t, runScenarios(opts, []string{file}, cmd))
	assert.Contains(t, buf.String(), "# run: run-fixed\n# scenario: greeting")
}

func TestStoreEventConversion(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "greeting.yaml", greetingScenario)
	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), file)
	require.NoError(t, err)

	var resp struct {
		Data []RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	trace := resp.Data[0].Result.Trace

	assert.Equal(t, trace, fromStoreEvents(toStoreEvents(trace)))
}
