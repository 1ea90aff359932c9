package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Text(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{
		"counter.cue": counterSpec,
		"prefs.cue":   prefsSpec,
	})

	out, err := execute(t, "compile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 2 store(s)")
	assert.Contains(t, out, "counter: 1 field(s), 1 getter(s), 2 action(s), persisted (version 1, json)")
	assert.Contains(t, out, "prefs: 2 field(s), 0 getter(s), 1 action(s), persisted (version 2, yaml)")
}

func TestCompile_OutputFileIsCanonical(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{"counter.cue": counterSpec})
	outFile := filepath.Join(t.TempDir(), "stores.json")

	out, err := execute(t, "compile", "-o", outFile, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical JSON to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t,
		`{"stores":[{"actions":{"add":{"n":"n + args[0]"},"increment":{"n":"n + 1"}},"getters":{"double":"n * 2"},"key":"counter","persist":{"codec":"json","data_key":"gudam_data__counter","version":"1","version_key":"gudam_version__counter"},"state":{"n":0}}]}`,
		string(data))
}

func TestCompile_JSON(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{"prefs.cue": prefsSpec})

	out, err := execute(t, "--format", "json", "compile", dir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Stores, 1)

	prefs := resp.Data.Stores[0]
	assert.Equal(t, "prefs", prefs.Key)
	require.NotNil(t, prefs.Persist)
	assert.Equal(t, "gudam_version__prefs", prefs.Persist.VersionKey)
	assert.Equal(t, "yaml", prefs.Persist.Codec)
}

func TestCompile_DefaultPersistVersion(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{"flag.cue": `package specs

store: flag: {
	state: on: false
	persist: true
}
`})

	out, err := execute(t, "compile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "flag: 1 field(s), 0 getter(s), 0 action(s), persisted (version 0.0.1, json)")
}

func TestCompile_Errors(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{"bad.cue": `package specs

store: a: state: ratio: 1.5
store: b: getters: x: "1"
`})

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, ErrCodeInvalidValue)
	assert.Contains(t, out, ErrCodeStoreState)
	assert.Contains(t, err.Error(), "2 error(s)")
}
