package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBadStores = `package specs

store: a: state: x: 1.5
store: b: state: y: 2.5
store: c: state: z: 3
`

func TestLoadSpecs_CompilesStoresInOrder(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{
		"counter.cue": counterSpec,
		"prefs.cue":   prefsSpec,
	})

	result, errs := LoadSpecs(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.FileCount)

	var keys []string
	for _, s := range result.Stores {
		keys = append(keys, s.Key)
	}
	assert.ElementsMatch(t, []string{"counter", "prefs"}, keys)
}

func TestLoadSpecs_Modes(t *testing.T) {
	dir := writeFiles(t, t.TempDir(), map[string]string{"bad.cue": twoBadStores})

	_, failFast := LoadSpecs(dir, LoadModeFailFast)
	assert.Len(t, failFast, 1)

	result, all := LoadSpecs(dir, LoadModeCollectAll)
	require.Len(t, all, 2)
	require.Len(t, result.Stores, 1)
	assert.Equal(t, "c", result.Stores[0].Key)

	var loadErr *LoadError
	require.True(t, errors.As(all[0], &loadErr))
	assert.Equal(t, ErrCodeInvalidValue, loadErr.Code)
	assert.True(t, loadErr.Pos.IsValid())
	assert.Contains(t, loadErr.Error(), "bad.cue:3:")
}

func TestLoadSpecs_PathErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{"missing", func(t *testing.T) string { return "/nonexistent/specs" }, ErrCodeNotFound},
		{"not a directory", func(t *testing.T) string {
			dir := writeFiles(t, t.TempDir(), map[string]string{"f.cue": counterSpec})
			return dir + "/f.cue"
		}, ErrCodeNotFound},
		{"no cue files", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles},
		{"syntax error", func(t *testing.T) string {
			return writeFiles(t, t.TempDir(), map[string]string{"x.cue": "package specs\n\nstore: {\n"})
		}, ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, errs := LoadSpecs(tt.dir(t), LoadModeFailFast)
			assert.Nil(t, result)
			require.Len(t, errs, 1)
			var loadErr *LoadError
			require.True(t, errors.As(errs[0], &loadErr))
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeStoreState, MapFieldToErrorCode("state"))
	assert.Equal(t, ErrCodeInvalidValue, MapFieldToErrorCode("state.ratio"))
	assert.Equal(t, ErrCodeStoreGetter, MapFieldToErrorCode("getters.double"))
	assert.Equal(t, ErrCodeStoreAction, MapFieldToErrorCode("actions.bump.n"))
	assert.Equal(t, ErrCodeStorePersist, MapFieldToErrorCode("persist.codec"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("cue"))
}
