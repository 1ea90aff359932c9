package compiler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/testutil"
	"github.com/roach88/gudam/internal/value"
)

func instantiateSpec(t *testing.T, spec *StoreSpec, opts Options) *store.Instance {
	t.Helper()

	reg := store.NewRegistry()
	reader, err := Register(reg, spec, opts)
	require.NoError(t, err)

	sess, err := store.Instantiate(reg)
	require.NoError(t, err)

	inst, ok := reader.From(sess)
	require.True(t, ok)
	return inst
}

func TestRegisterCounter(t *testing.T) {
	inst := instantiateSpec(t, validCounter(), Options{})

	for i := 0; i < 3; i++ {
		_, err := inst.Dispatch("increment")
		require.NoError(t, err)
	}
	assert.Equal(t, value.Int(3), inst.Get("n"))

	double, err := inst.Derived("double")
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), double)
}

func TestRegisterActionArgs(t *testing.T) {
	inst := instantiateSpec(t, validCounter(), Options{})

	_, err := inst.Dispatch("add", 5)
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), inst.Get("n"))

	_, err = inst.Dispatch("add", value.Int(2))
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), inst.Get("n"))
}

func TestRegisterActionEvaluatesAgainstPreActionState(t *testing.T) {
	spec := &StoreSpec{
		Key:   "pair",
		State: value.Record{"a": value.Int(1), "b": value.Int(2)},
		Actions: map[string]ActionSpec{
			"swap": {Assign: map[string]string{"a": "b", "b": "a"}},
		},
	}
	inst := instantiateSpec(t, spec, Options{})

	_, err := inst.Dispatch("swap")
	require.NoError(t, err)

	assert.Equal(t, value.Int(2), inst.Get("a"))
	assert.Equal(t, value.Int(1), inst.Get("b"))
}

func TestRegisterActionNotifiesPerAssignment(t *testing.T) {
	spec := &StoreSpec{
		Key:   "pair",
		State: value.Record{"a": value.Int(0), "b": value.Int(0)},
		Actions: map[string]ActionSpec{
			"bump": {Assign: map[string]string{"a": "a + 1", "b": "b + 1"}},
		},
	}

	reg := store.NewRegistry()
	_, err := Register(reg, spec, Options{})
	require.NoError(t, err)
	sess, err := store.Instantiate(reg)
	require.NoError(t, err)

	views := 0
	sess.Subscribe(func(store.View) { views++ })
	inst, _ := sess.Lookup("pair")
	_, err = inst.Dispatch("bump")
	require.NoError(t, err)

	assert.Equal(t, 2, views)
}

func TestRegisterGetterRejectsFractionalResult(t *testing.T) {
	spec := validCounter()
	spec.State["n"] = value.Int(3)
	spec.Getters["half"] = "n / 2"
	inst := instantiateSpec(t, spec, Options{})

	_, err := inst.Derived("half")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "half")
}

func TestRegisterActionRuntimeErrorLeavesStateUntouched(t *testing.T) {
	inst := instantiateSpec(t, validCounter(), Options{})

	_, err := inst.Dispatch("add")
	require.Error(t, err, "args[0] is out of range")
	assert.Equal(t, value.Int(0), inst.Get("n"))
}

func TestRegisterStateIsFreshPerInstance(t *testing.T) {
	spec := validCounter()
	reg := store.NewRegistry()
	_, err := Register(reg, spec, Options{})
	require.NoError(t, err)

	first, err := store.Instantiate(reg)
	require.NoError(t, err)
	a, _ := first.Lookup("counter")
	require.NoError(t, a.Set("n", value.Int(9)))

	second, err := store.Instantiate(reg)
	require.NoError(t, err)
	b, _ := second.Lookup("counter")
	assert.Equal(t, value.Int(0), b.Get("n"))
	assert.Equal(t, value.Int(0), spec.State["n"])
}

func TestRegisterInvalidSpec(t *testing.T) {
	spec := validCounter()
	spec.Actions["typo"] = ActionSpec{Assign: map[string]string{"count": "1"}}

	_, err := Register(store.NewRegistry(), spec, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	assert.Contains(t, err.Error(), ErrUnknownAssignment)
}

func TestRegisterStorageRequiresLoop(t *testing.T) {
	spec := validCounter()
	spec.Persist = &PersistSpec{}

	_, err := Register(store.NewRegistry(), spec, Options{Storage: testutil.NewRecordingStorage(nil)})
	assert.Error(t, err)
}

func TestRegisterPersistedCounter(t *testing.T) {
	storage := testutil.NewRecordingStorage(nil)
	loop := engine.NewLoop()
	spec := validCounter()
	spec.Persist = &PersistSpec{Version: "1"}

	inst := instantiateSpec(t, spec, Options{Storage: storage, Loop: loop})
	storage.ResetWrites()

	for i := 0; i < 3; i++ {
		_, err := inst.Dispatch("increment")
		require.NoError(t, err)
	}
	loop.Drain(context.Background())

	assert.Equal(t, []string{`{"n":3}`}, storage.WritesTo(persist.DataKey("counter")))
	version, _ := storage.Item(persist.VersionKey("counter"))
	assert.Equal(t, "1", version)
}

func TestRegisterAllFromFiles(t *testing.T) {
	specs, err := CompileFiles(filepath.Join("testdata", "counter.cue"), filepath.Join("testdata", "prefs.cue"))
	require.NoError(t, err)

	reg := store.NewRegistry()
	require.NoError(t, RegisterAll(reg, specs, Options{}))
	assert.Equal(t, []string{"counter", "prefs"}, reg.Keys())
}
