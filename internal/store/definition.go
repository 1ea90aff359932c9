package store

import (
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

// StateFunc produces a fresh initial state record. It is called once at
// registration (to capture the field list), once per instantiation and once
// per Reset, so it must return a new record every time.
type StateFunc func() value.Record

// GetterFunc computes a derived value from the instance. Getters are
// recomputed on every read; keep them cheap and free of side effects.
type GetterFunc func(s *Instance) (any, error)

// ActionFunc mutates the instance. It may read and write fields, read
// getters, and call Reset, Trigger or Preload.
type ActionFunc func(s *Instance, args ...any) (any, error)

// Definition declares a store. Immutable once registered.
type Definition struct {
	Key     string
	State   StateFunc
	Getters map[string]GetterFunc
	Actions map[string]ActionFunc
	Plugins []plugin.Plugin

	// fields is the schema captured at registration, RFC 8785 ordered.
	fields []string
}

// Fields returns the field names captured at registration.
func (d *Definition) Fields() []string {
	out := make([]string, len(d.fields))
	copy(out, d.fields)
	return out
}

// DefineOption configures a definition passed to Registry.Define.
type DefineOption func(*Definition)

// WithGetter declares a derived value.
func WithGetter(name string, fn GetterFunc) DefineOption {
	return func(d *Definition) {
		if d.Getters == nil {
			d.Getters = make(map[string]GetterFunc)
		}
		d.Getters[name] = fn
	}
}

// WithAction declares a mutating operation.
func WithAction(name string, fn ActionFunc) DefineOption {
	return func(d *Definition) {
		if d.Actions == nil {
			d.Actions = make(map[string]ActionFunc)
		}
		d.Actions[name] = fn
	}
}

// WithPlugins appends plugins in the given order.
func WithPlugins(plugins ...plugin.Plugin) DefineOption {
	return func(d *Definition) {
		d.Plugins = append(d.Plugins, plugins...)
	}
}

// freeze returns a private copy whose maps and plugin slice cannot be
// changed by the caller after registration.
func (d Definition) freeze() *Definition {
	out := &Definition{
		Key:    d.Key,
		State:  d.State,
		fields: d.fields,
	}
	if len(d.Getters) > 0 {
		out.Getters = make(map[string]GetterFunc, len(d.Getters))
		for k, fn := range d.Getters {
			out.Getters[k] = fn
		}
	}
	if len(d.Actions) > 0 {
		out.Actions = make(map[string]ActionFunc, len(d.Actions))
		for k, fn := range d.Actions {
			out.Actions[k] = fn
		}
	}
	if len(d.Plugins) > 0 {
		out.Plugins = make([]plugin.Plugin, len(d.Plugins))
		copy(out.Plugins, d.Plugins)
	}
	return out
}
