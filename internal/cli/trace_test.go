package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knit/internal/harness"
	"github.com/roach88/knit/internal/store"
)

// storeRuns runs the scenarios into a fresh database and returns its path.
func storeRuns(t *testing.T, scenarios ...string) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "knit.db")

	files := make([]string, len(scenarios))
	for i, src := range scenarios {
		files[i] = writeScenario(t, dir, filepath.Join("s", string(rune('a'+i))+".yaml"), src)
	}
	_, _ = execute(NewRunCommand(&RootOptions{Format: "text"}), append([]string{"--db", dbPath}, files...)...)
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, dbPath)
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "knit.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E_RUN_NOT_FOUND]")

	out, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestTraceLatestRun(t *testing.T) {
	dbPath := storeRuns(t, failingScenario, greetingScenario)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	header, body, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(header, "# run: "))
	assert.Equal(t, greetingTrace, body)
}

func TestTraceByRunID(t *testing.T) {
	dbPath := storeRuns(t, failingScenario, greetingScenario)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--list", "--scenario", "failing")
	require.NoError(t, err)

	var list struct {
		Data []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Data, 1)
	assert.False(t, list.Data[0].Pass)

	out, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", list.Data[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "# scenario: failing\n# pass: false\n")
	assert.Contains(t, out, `# error: steps[0].expect: label.Text = "", want "Zed"`)
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := storeRuns(t, greetingScenario)

	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestTraceFilters(t *testing.T) {
	dbPath := storeRuns(t, greetingScenario)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--kind", "property", "--object", "label")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Result.Trace, 3)
	for _, ev := range resp.Data.Result.Trace {
		assert.Equal(t, harness.KindProperty, ev.Kind)
		assert.Equal(t, "label", ev.Object)
	}
}

func TestTraceList(t *testing.T) {
	dbPath := storeRuns(t, greetingScenario, failingScenario)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "pass")
	assert.Contains(t, lines[0], "greeting")
	assert.Contains(t, lines[1], "FAIL")
	assert.Contains(t, lines[1], "failing")
}

func TestFilterEvents(t *testing.T) {
	trace := []harness.Event{
		{Seq: 1, Kind: harness.KindProperty, Object: "a", Member: "Text"},
		{Seq: 2, Kind: harness.KindStep, Member: "refresh"},
		{Seq: 3, Kind: harness.KindProperty, Object: "b", Member: "Text"},
	}

	assert.Len(t, filterEvents(trace, "", ""), 3)
	assert.Len(t, filterEvents(trace, harness.KindProperty, ""), 2)
	assert.Equal(t, []harness.Event{trace[2]}, filterEvents(trace, "", "b"))
}
