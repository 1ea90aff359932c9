// Package harness runs declarative store scenarios.
//
// The harness compiles CUE store specs, instantiates a session against a
// storage backend, runs a list of steps and validates the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: counter_burst
//	description: "Three increments collapse into one write"
//	specs:
//	  - specs/counter.cue
//	storage:
//	  gudam_version__counter: "1"
//	steps:
//	  - action: counter.increment
//	  - set: { store: counter, field: n, value: 5 }
//	  - preload: { store: counter, values: { n: 7 } }
//	  - reset: counter
//	  - trigger: counter
//	  - flush: true
//	  - reinstantiate: true
//	assertions:
//	  - type: state
//	    store: counter
//	    expect: { n: 3 }
//	  - type: storage
//	    key: gudam_data__counter
//	    value: '{"n":3}'
//
// # Assertion Types
//
//   - state: subset match on a store's final fields
//   - getter: a getter's value against the final state
//   - storage: the raw string at a storage key, or its absence
//   - notify_count: notifications published by a store
//   - write_count: writes to a storage key
//
// # Deterministic Testing
//
// Scenarios run with a fixed session ID and a logical sequence for trace
// events. Persistence writes are queued on a loop that only runs at flush
// and reinstantiate steps and once more before assertions, so the trace is
// identical across runs.
package harness
