package store

import (
	"fmt"
	"slices"

	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

// Instance is the live, per-session materialization of a store.
//
// Field writes go through Set (or a Cell) and notify unless the instance is
// inside a silent preload window. The instance itself is passed to getters
// and actions as their explicit state handle.
type Instance struct {
	def     *Definition
	session *Session
	plugins plugin.Pipeline

	current     value.Record
	fields      map[string]struct{}
	silent      bool
	everChanged bool
	token       int64
}

func newInstance(s *Session, def *Definition, state value.Record) *Instance {
	fields := make(map[string]struct{}, len(def.fields))
	for _, f := range def.fields {
		fields[f] = struct{}{}
	}
	return &Instance{
		def:     def,
		session: s,
		plugins: plugin.Pipeline(def.Plugins),
		current: state,
		fields:  fields,
		token:   s.clock.Next(),
	}
}

// Key returns the store key.
func (i *Instance) Key() string {
	return i.def.Key
}

// Token returns the identity token of the most recently published view.
func (i *Instance) Token() int64 {
	return i.token
}

// Fields returns the writable field names in RFC 8785 order.
func (i *Instance) Fields() []string {
	return i.def.Fields()
}

// Has reports whether field is part of the store's schema.
func (i *Instance) Has(field string) bool {
	_, ok := i.fields[field]
	return ok
}

// Get returns the current value of field, or nil if it holds none.
func (i *Instance) Get(field string) value.Value {
	return i.current[field]
}

// Set writes field and notifies, unless inside a silent window.
// A nil v is stored as value.Null.
func (i *Instance) Set(field string, v value.Value) error {
	if !i.Has(field) {
		return &Error{
			Code:    ErrCodeUnknownField,
			Key:     i.def.Key,
			Name:    field,
			Message: "field is not part of the store state",
		}
	}
	if v == nil {
		v = value.Null{}
	}
	i.current[field] = v
	i.notify()
	return nil
}

// Snapshot returns a copy of the current state.
func (i *Instance) Snapshot() value.Record {
	return i.current.Clone()
}

// Getters returns the declared getter names, sorted.
func (i *Instance) Getters() []string {
	return sortedNames(i.def.Getters)
}

// Actions returns the declared action names, sorted.
func (i *Instance) Actions() []string {
	return sortedNames(i.def.Actions)
}

// Derived computes getter name against the current state. Not memoized:
// every call runs the getter again.
func (i *Instance) Derived(name string) (any, error) {
	getter, ok := i.def.Getters[name]
	if !ok {
		return nil, &Error{
			Code:    ErrCodeUnknownGetter,
			Key:     i.def.Key,
			Name:    name,
			Message: "getter not declared",
		}
	}
	return getter(i)
}

// Dispatch runs action name with the instance as its state handle.
func (i *Instance) Dispatch(name string, args ...any) (any, error) {
	action, ok := i.def.Actions[name]
	if !ok {
		return nil, &Error{
			Code:    ErrCodeUnknownAction,
			Key:     i.def.Key,
			Name:    name,
			Message: "action not declared",
		}
	}
	out, err := action(i, args...)
	if err != nil {
		return out, fmt.Errorf("action %s.%s: %w", i.def.Key, name, err)
	}
	return out, nil
}

// Reset replaces the state with a fresh result of the state function and
// notifies once. Plugins' InitState is not consulted again.
func (i *Instance) Reset() {
	state := i.def.State()
	if state == nil {
		state = value.Record{}
	}
	i.current = state.Clone()
	i.notify()
}

// Trigger forces a notification without changing state.
func (i *Instance) Trigger() {
	i.notify()
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
