package persist

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gudam/internal/value"
)

// Codec converts state to and from its stored string form.
type Codec interface {
	Encode(state value.Record) (string, error)
	Decode(data string) (value.Record, error)
}

// JSONCodec stores state as RFC 8785 canonical JSON. It is the default.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(state value.Record) (string, error) {
	data, err := value.MarshalCanonical(state)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data string) (value.Record, error) {
	return value.ParseRecord([]byte(data))
}

// YAMLCodec stores state as a YAML mapping.
type YAMLCodec struct{}

// Encode implements Codec.
func (YAMLCodec) Encode(state value.Record) (string, error) {
	data, err := yaml.Marshal(state.Native())
	if err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return string(data), nil
}

// Decode implements Codec.
func (YAMLCodec) Decode(data string) (value.Record, error) {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("decode yaml: expected a mapping")
	}
	return value.RecordFromMap(m)
}

// CodecByName returns the codec registered under name. The empty name
// selects JSONCodec.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
