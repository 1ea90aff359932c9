package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

func TestInstantiate_OneInstancePerDefinition(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("a", counterState)
	reg.MustDefine("b", counterState)

	sess, err := Instantiate(reg, WithIDGenerator(engine.NewFixedGenerator("s-1")))
	require.NoError(t, err)

	assert.Equal(t, "s-1", sess.ID())
	assert.Equal(t, []string{"a", "b"}, sess.Keys())
	assert.Equal(t, 2, sess.Len())

	a, _ := sess.Lookup("a")
	b, _ := sess.Lookup("b")
	require.NoError(t, a.Set("n", value.Int(1)))
	assert.Equal(t, value.Int(0), b.Get("n"), "instances do not share state")
}

func TestInstantiate_FreshSessionEachCall(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("counter", counterState)

	first, err := Instantiate(reg)
	require.NoError(t, err)
	second, err := Instantiate(reg)
	require.NoError(t, err)

	a, _ := first.Lookup("counter")
	b, _ := second.Lookup("counter")
	require.NoError(t, a.Set("n", value.Int(4)))

	assert.NotSame(t, a, b)
	assert.Equal(t, value.Int(0), b.Get("n"))
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestInstantiate_PluginFailureIsolatesStore(t *testing.T) {
	boom := errors.New("storage offline")
	reg := NewRegistry()
	reg.MustDefine("ok", counterState)
	reg.MustDefine("broken", counterState, WithPlugins(plugin.Funcs{
		Init: func(string, value.Record) (value.Record, error) { return nil, boom },
	}))
	reg.MustDefine("also-ok", counterState)

	sess, err := Instantiate(reg)
	require.Error(t, err)
	assert.True(t, IsPluginInit(err))
	assert.ErrorIs(t, err, boom)

	require.NotNil(t, sess)
	assert.Equal(t, []string{"ok", "also-ok"}, sess.Keys())
	_, ok := sess.Lookup("broken")
	assert.False(t, ok)
}

func TestInstantiate_PanickingStateIsolatesStore(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.MustDefine("flaky", func() value.Record {
		calls++
		if calls > 1 {
			panic("second call")
		}
		return counterState()
	})
	reg.MustDefine("ok", counterState)

	sess, err := Instantiate(reg)
	assertCode(t, err, ErrCodeInstantiate)
	assert.Equal(t, []string{"ok"}, sess.Keys())
}

func TestInstantiate_PluginInitOrder(t *testing.T) {
	var order []string
	step := func(name string) plugin.Plugin {
		return plugin.Funcs{Init: func(_ string, s value.Record) (value.Record, error) {
			order = append(order, name)
			return s, nil
		}}
	}

	reg := NewRegistry()
	reg.MustDefine("counter", counterState, WithPlugins(step("first"), step("second")))
	_, err := Instantiate(reg)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSession_ViewsChangeOnlyForNotifiedStores(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("a", counterState)
	reg.MustDefine("b", counterState)
	sess, err := Instantiate(reg)
	require.NoError(t, err)

	before := sess.Views()
	a, _ := sess.Lookup("a")
	require.NoError(t, a.Set("n", value.Int(1)))
	after := sess.Views()

	assert.NotEqual(t, before["a"], after["a"])
	assert.Equal(t, before["b"], after["b"])
	assert.Same(t, a, after["a"].Instance())

	view, ok := sess.View("a")
	require.True(t, ok)
	assert.Equal(t, a.Token(), view.Token)
}

func TestSession_SubscribeAndCancel(t *testing.T) {
	sess, inst := newCounterSession(t)

	var seen []View
	cancel := sess.Subscribe(func(v View) { seen = append(seen, v) })

	require.NoError(t, inst.Set("n", value.Int(1)))
	require.NoError(t, inst.Set("n", value.Int(2)))
	cancel()
	require.NoError(t, inst.Set("n", value.Int(3)))

	require.Len(t, seen, 2)
	assert.Equal(t, "counter", seen[0].Key)
	assert.Less(t, seen[0].Token, seen[1].Token)
}

func TestSession_Context(t *testing.T) {
	sess, _ := newCounterSession(t)

	ctx := WithSession(context.Background(), sess)
	got, ok := SessionFrom(ctx)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = SessionFrom(context.Background())
	assert.False(t, ok)

	var nilSession *Session
	_, ok = SessionFrom(WithSession(context.Background(), nilSession))
	assert.False(t, ok)
	_, ok = nilSession.Lookup("counter")
	assert.False(t, ok)
}
