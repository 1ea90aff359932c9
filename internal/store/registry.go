package store

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the table of store definitions.
//
// Construct one at application start and pass it to Instantiate. Definitions
// keep registration order, which is also instantiation order.
//
// Thread-safety: Register/Define and the read methods are safe for concurrent
// use; registration normally happens once during startup.
type Registry struct {
	mu    sync.RWMutex
	defs  []*Definition
	index map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Define registers a store built from key, state and options.
func (r *Registry) Define(key string, state StateFunc, opts ...DefineOption) (Reader, error) {
	def := Definition{Key: key, State: state}
	for _, opt := range opts {
		if opt != nil {
			opt(&def)
		}
	}
	return r.Register(def)
}

// MustDefine is Define for package-level declarations. Panics on error.
func (r *Registry) MustDefine(key string, state StateFunc, opts ...DefineOption) Reader {
	reader, err := r.Define(key, state, opts...)
	if err != nil {
		panic(err)
	}
	return reader
}

// Register adds a definition and returns a Reader bound to its key.
//
// Fails with ErrCodeDuplicateKey if the key is taken, and with
// ErrCodeInvalidDefinition if the key or state function is missing. The
// state function is called once here to capture the field list; nothing is
// instantiated.
func (r *Registry) Register(def Definition) (Reader, error) {
	if def.Key == "" {
		return Reader{}, &Error{Code: ErrCodeInvalidDefinition, Message: "store key is required"}
	}
	if def.State == nil {
		return Reader{}, &Error{Code: ErrCodeInvalidDefinition, Key: def.Key, Message: "state function is required"}
	}

	frozen := def.freeze()
	fields, err := captureFields(frozen)
	if err != nil {
		return Reader{}, err
	}
	frozen.fields = fields

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[def.Key]; exists {
		return Reader{}, &Error{
			Code:    ErrCodeDuplicateKey,
			Key:     def.Key,
			Message: "store key already registered",
		}
	}

	r.index[def.Key] = len(r.defs)
	r.defs = append(r.defs, frozen)

	return Reader{key: def.Key}, nil
}

func captureFields(def *Definition) (fields []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &Error{
				Code:    ErrCodeInvalidDefinition,
				Key:     def.Key,
				Message: fmt.Sprintf("state function panicked: %v", rec),
			}
		}
	}()
	return def.State().Keys(), nil
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.defs))
	for i, d := range r.defs {
		keys[i] = d.Key
	}
	return keys
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Lookup returns a copy of the registered definition for key. Changing the
// copy does not affect the registry.
func (r *Registry) Lookup(key string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.defs[i].freeze(), true
}

// definitions returns a snapshot of the definitions in registration order.
func (r *Registry) definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Reader resolves the live instance of one store from a distribution
// channel. The zero Reader resolves nothing.
type Reader struct {
	key string
}

// Key returns the store key this reader is bound to.
func (r Reader) Key() string {
	return r.key
}

// From resolves the instance from an explicit channel.
func (r Reader) From(ch Channel) (*Instance, bool) {
	if ch == nil || r.key == "" {
		return nil, false
	}
	return ch.Lookup(r.key)
}

// Use resolves the instance from the session carried by ctx.
func (r Reader) Use(ctx context.Context) (*Instance, bool) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return nil, false
	}
	return r.From(s)
}

// MustUse is Use for code that cannot run without the store.
// Panics if ctx carries no session or the session lacks the store.
func (r Reader) MustUse(ctx context.Context) *Instance {
	inst, ok := r.Use(ctx)
	if !ok {
		panic(fmt.Sprintf("store %q not available in context", r.key))
	}
	return inst
}
