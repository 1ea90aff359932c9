package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a store's state: field name to value.
//
// Values are treated as immutable, so Clone is shallow. Writers replace a
// field's value instead of mutating nested Arrays or Objects in place.
type Record map[string]Value

// Clone returns a shallow copy of the record. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the field names in RFC 8785 order.
func (r Record) Keys() []string {
	return sortedKeys(r)
}

// Equal reports whether both records hold the same fields and values.
func (r Record) Equal(other Record) bool {
	return Equal(Object(r), Object(other))
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (r Record) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// ParseRecord decodes a JSON object into a Record.
// The top-level value must be an object; floats are rejected.
func ParseRecord(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("state payload must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var obj Object
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("parse state payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse state payload: trailing data after object")
	}
	return Record(obj), nil
}

// RecordFromMap converts a plain Go map into a Record.
func RecordFromMap(m map[string]any) (Record, error) {
	out := make(Record, len(m))
	for k, v := range m {
		conv, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = conv
	}
	return out, nil
}

// MustRecord is RecordFromMap for literals in tests and examples.
// Panics on unsupported values.
func MustRecord(m map[string]any) Record {
	rec, err := RecordFromMap(m)
	if err != nil {
		panic(err)
	}
	return rec
}

// Native converts the record into a plain map using ToNative per field.
func (r Record) Native() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = ToNative(v)
	}
	return out
}
