package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gudam/internal/value"
)

func TestJSONCodec_Canonical(t *testing.T) {
	state := value.Record{
		"b":    value.Int(2),
		"a":    value.String("x"),
		"tags": value.Array{value.String("t")},
		"none": value.Null{},
	}

	data, err := JSONCodec{}.Encode(state)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"none":null,"tags":["t"]}`, data)

	back, err := JSONCodec{}.Decode(data)
	require.NoError(t, err)
	assert.True(t, back.Equal(state))
}

func TestYAMLCodec_NestedValues(t *testing.T) {
	state := value.Record{
		"profile": value.Object{"name": value.String("ada"), "age": value.Int(36)},
		"flags":   value.Array{value.Bool(true), value.Bool(false)},
		"none":    value.Null{},
	}

	data, err := YAMLCodec{}.Encode(state)
	require.NoError(t, err)

	back, err := YAMLCodec{}.Decode(data)
	require.NoError(t, err)
	assert.True(t, back.Equal(state))
}

func TestYAMLCodec_RejectsNonMapping(t *testing.T) {
	_, err := YAMLCodec{}.Decode("- 1\n- 2\n")
	assert.Error(t, err)

	_, err = YAMLCodec{}.Decode("")
	assert.Error(t, err)

	_, err = YAMLCodec{}.Decode("n: 1.5\n")
	assert.Error(t, err)
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSONCodec{}, "json": JSONCodec{}, "yaml": YAMLCodec{}} {
		got, err := CodecByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := CodecByName("xml")
	assert.Error(t, err)
}
