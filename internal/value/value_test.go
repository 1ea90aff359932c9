package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"int", 4, Int(4)},
		{"uint8", uint8(9), Int(9)},
		{"integral float", float64(12), Int(12)},
		{"json number", json.Number("42"), Int(42)},
		{"bool", true, Bool(true)},
		{"slice", []any{1, "a"}, Array{Int(1), String("a")}},
		{"typed slice", []string{"a", "b"}, Array{String("a"), String("b")}},
		{"map", map[string]any{"k": 1}, Object{"k": Int(1)}},
		{"typed map", map[string]int{"k": 2}, Object{"k": Int(2)}},
		{"value passthrough", Int(5), Int(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %#v", got)
		})
	}
}

func TestFromAny_Rejects(t *testing.T) {
	for _, in := range []any{0.25, func() {}, map[int]string{1: "a"}, uint64(1 << 63)} {
		_, err := FromAny(in)
		assert.Error(t, err, "input %T", in)
	}
}

func TestToNative(t *testing.T) {
	native := ToNative(Object{
		"n":    Int(2),
		"list": Array{Bool(true), Null{}},
	})

	assert.Equal(t, map[string]any{
		"n":    2,
		"list": []any{true, nil},
	}, native)
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	rec := Record{"n": Int(1)}
	clone := rec.Clone()
	clone["n"] = Int(2)

	assert.Equal(t, Int(1), rec["n"])
	assert.Nil(t, Record(nil).Clone())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Array{Int(1)}, Array{Int(1)}))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(2)}))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"b": Int(1)}))
	assert.True(t, Equal(Null{}, Null{}))
}

func TestRecord_JSONInterop(t *testing.T) {
	data, err := json.Marshal(struct {
		State Record `json:"state"`
	}{State: Record{"b": Int(1), "a": String("x")}})
	require.NoError(t, err)
	assert.Equal(t, `{"state":{"a":"x","b":1}}`, string(data))

	var decoded struct {
		State Record `json:"state"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Int(1), decoded.State["b"])
}
