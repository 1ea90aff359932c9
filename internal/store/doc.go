// Package store implements the store registry and the reactive instance
// engine.
//
// ARCHITECTURE:
//
// Registry (registry.go):
// Definitions are registered once, in declaration order, and never removed.
// Each definition's field list is captured at registration by calling its
// state function once; accessors are generated from that list rather than
// from whatever record happens to be live.
//
// Instantiation (session.go):
// Instantiate builds one live Instance per definition into a fresh Session.
// Initial state flows through the definition's plugin pipeline. A store that
// fails is left out of the session; the others still instantiate.
//
// Notification (notify.go):
// Every field write funnels through notify(), which
//  1. stamps a new token from the session clock and publishes a new View
//  2. hands each plugin a snapshot via OnChange
//  3. marks the instance as changed, closing the preload gate
//
// Views are plain values: a consumer holding the previous View compares it
// with the current one (old != new) to detect change without deep equality.
//
// Preload (preload.go):
// A one-shot silent window for hydrating state before the first ordinary
// mutation.
//
// Instances assume a single logical writer and are not safe for concurrent
// use. Getters are recomputed on every access and never memoized.
package store
