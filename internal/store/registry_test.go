package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

func TestRegistry_DefineKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	for _, key := range []string{"b", "a", "c"} {
		_, err := reg.Define(key, counterState)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b", "a", "c"}, reg.Keys())
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_DuplicateKey(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define("counter", counterState)
	require.NoError(t, err)

	_, err = reg.Define("counter", counterState)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
	assert.Contains(t, err.Error(), "store=counter")
	assert.Equal(t, 1, reg.Len(), "failed registration must not change the registry")
}

func TestRegistry_InvalidDefinitions(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Define("", counterState)
	assertCode(t, err, ErrCodeInvalidDefinition)

	_, err = reg.Define("nostate", nil)
	assertCode(t, err, ErrCodeInvalidDefinition)

	_, err = reg.Define("panics", func() value.Record { panic("no state") })
	assertCode(t, err, ErrCodeInvalidDefinition)

	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_CapturesFieldsAtRegistration(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define("counter", counterState)
	require.NoError(t, err)

	def, ok := reg.Lookup("counter")
	require.True(t, ok)
	assert.Equal(t, []string{"label", "n"}, def.Fields())
}

func TestRegistry_DefinitionIsFrozen(t *testing.T) {
	getters := map[string]GetterFunc{"double": double}
	reg := NewRegistry()
	_, err := reg.Register(Definition{Key: "counter", State: counterState, Getters: getters})
	require.NoError(t, err)

	getters["late"] = double

	def, _ := reg.Lookup("counter")
	assert.NotContains(t, def.Getters, "late")
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("counter", counterState,
		WithGetter("double", double),
		WithPlugins(plugin.Funcs{}),
	)

	def, ok := reg.Lookup("counter")
	require.True(t, ok)
	def.Getters["late"] = double
	def.Actions = map[string]ActionFunc{"late": nil}
	def.Plugins = append(def.Plugins, plugin.Funcs{})

	again, _ := reg.Lookup("counter")
	assert.NotContains(t, again.Getters, "late")
	assert.Empty(t, again.Actions)
	assert.Len(t, again.Plugins, 1)
	assert.Equal(t, []string{"label", "n"}, again.Fields())

	sess, err := Instantiate(reg)
	require.NoError(t, err)
	inst, _ := sess.Lookup("counter")
	assert.Equal(t, []string{"double"}, inst.Getters())
}

func TestRegistry_DefineDoesNotInstantiate(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	_, err := reg.Define("counter", counterState, WithPlugins(&countingInit{calls: &calls}))
	require.NoError(t, err)

	assert.Equal(t, 0, calls, "plugins run only at instantiation")
}

func TestRegistry_MustDefinePanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("counter", counterState)
	assert.Panics(t, func() { reg.MustDefine("counter", counterState) })
}

func TestReader_ResolvesFromChannelAndContext(t *testing.T) {
	reg := NewRegistry()
	reader := reg.MustDefine("counter", counterState)
	other := reg.MustDefine("other", counterState)

	sess, err := Instantiate(reg)
	require.NoError(t, err)

	inst, ok := reader.From(sess)
	require.True(t, ok)
	assert.Equal(t, "counter", inst.Key())

	ctx := WithSession(context.Background(), sess)
	fromCtx, ok := reader.Use(ctx)
	require.True(t, ok)
	assert.Same(t, inst, fromCtx)
	assert.Equal(t, "other", other.MustUse(ctx).Key())

	_, ok = reader.Use(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { reader.MustUse(context.Background()) })

	_, ok = Reader{}.From(sess)
	assert.False(t, ok)
	_, ok = reader.From(nil)
	assert.False(t, ok)
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, code, se.Code)
}

type countingInit struct {
	calls *int
}

func (c *countingInit) InitState(_ string, s value.Record) (value.Record, error) {
	*c.calls++
	return s, nil
}

func (c *countingInit) OnChange(string, value.Record) {}
