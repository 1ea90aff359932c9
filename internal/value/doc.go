// Package value provides the serializable value model for store state.
//
// State records hold only these sealed value types, so every record can be
// persisted and restored without loss:
//   - Null, String, Int (int64), Bool, Array, Object
//   - NO floats: numbers are int64 only, which keeps the canonical encoding
//     byte-stable across round trips
//   - NO functions or pointers
//
// Record is the per-store state mapping. MarshalCanonical and ParseRecord are
// the default stringify/parse pair used by the persistence plugin.
package value
