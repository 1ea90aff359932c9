// Package compiler turns declarative CUE store specs into store definitions.
//
// A spec declares a store under the top-level "store" struct:
//
//	store: counter: {
//		state: {n: 0}
//		getters: {double: "n * 2"}
//		actions: {increment: {n: "n + 1"}}
//		persist: {version: "1"}
//	}
//
// Getters and action assignments are expr-lang expressions evaluated against
// the store's current fields. Action expressions also see "args", the list
// of arguments passed to Dispatch.
//
// The pipeline is CompileStore (CUE to StoreSpec), Validate (semantic
// checks) and Register (StoreSpec to a registered store.Definition).
package compiler
