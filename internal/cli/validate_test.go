package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidScenario(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "greeting.yaml", greetingScenario)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+file)
}

func TestValidateValidScenarioJSON(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "greeting.yaml", greetingScenario)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), file)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 1)
	assert.True(t, resp.Data.Files[0].Valid)
}

func TestValidateSchemaError(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "bad.yaml", `
name: bad
elements:
  - name: root
    bindings:
      - { property: Text, path: Name, direction: sideways }
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+file)
	assert.Contains(t, out, ErrCodeSchema)
}

func TestValidateReferenceError(t *testing.T) {
	file := writeScenario(t, t.TempDir(), "refs.yaml", `
name: refs
elements:
  - name: root
    context: nobody
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), file)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, ErrCodeGeneric, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `unknown context source "nobody"`)
}

func TestValidateMixedFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeScenario(t, dir, "good.yaml", greetingScenario)
	bad := writeScenario(t, dir, "bad.cue", `name: ""`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed for 1 file(s)")
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
}

func TestValidateNonExistentFile(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_LOAD]")
}
