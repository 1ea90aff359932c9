package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDir(t *testing.T) string {
	t.Helper()
	return writeFiles(t, t.TempDir(), map[string]string{
		"counter.cue":        counterSpec,
		"counter_burst.yaml": burstScenario,
		"counter_fail.yaml": `name: counter_fail
description: wrong expectation
specs: [counter.cue]
steps:
  - action: counter.increment
assertions:
  - type: state
    store: counter
    expect: { n: 2 }
`,
	})
}

func TestTest_Summary(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ counter_burst")
	assert.Contains(t, out, "✗ counter_fail")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTest_Filter(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "test", "--filter", "*_burst", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_GoldenUpdateAndCompare(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "test", "--filter", "*_burst", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter_burst (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "counter_burst.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"session_id":"cli-session"`)

	_, err = execute(t, "test", "--filter", "*_burst", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"stale":true}`), 0644))
	out, err = execute(t, "test", "--filter", "*_burst", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_JSON(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
