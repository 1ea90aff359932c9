package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilesUnifiesStores(t *testing.T) {
	specs, err := CompileFiles(filepath.Join("testdata", "counter.cue"), filepath.Join("testdata", "prefs.cue"))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "counter", specs[0].Key)
	assert.Equal(t, "prefs", specs[1].Key)
	assert.Equal(t, "yaml", specs[1].Persist.Codec)
}

func TestCompileFilesErrors(t *testing.T) {
	_, err := CompileFiles()
	assert.Error(t, err)

	_, err = CompileFiles(filepath.Join("testdata", "missing.cue"))
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte("store: x: {"), 0o644))
	_, err = CompileFiles(bad)
	require.Error(t, err)
	var ce *CompileError
	assert.ErrorAs(t, err, &ce)

	empty := filepath.Join(dir, "empty.cue")
	require.NoError(t, os.WriteFile(empty, []byte("other: 1\n"), 0o644))
	_, err = CompileFiles(empty)
	assert.Error(t, err)
}

func TestCompileFilesConflictingValues(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte("store: x: state: n: 0\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("store: x: state: n: 1\n"), 0o644))

	_, err := CompileFiles(a, b)
	assert.Error(t, err)
}
