package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/value"
)

// Options configures how compiled stores are registered.
type Options struct {
	// Storage backs every store that declares persist. When nil, persisted
	// stores run without durable storage.
	Storage persist.Storage

	// Loop runs deferred persistence writes. Required when Storage is set,
	// so that all stores share one write queue.
	Loop *engine.Loop

	// Plugins are appended after the persistence plugin for every store.
	Plugins []plugin.Plugin
}

// ErrInvalidSpec is wrapped by Build and Register when Validate reports
// errors.
var ErrInvalidSpec = errors.New("invalid store spec")

// Build validates spec and turns it into a store definition.
func Build(spec *StoreSpec, opts Options) (store.Definition, error) {
	if verrs := Validate(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return store.Definition{}, fmt.Errorf("store %s: %w: %w", spec.Key, ErrInvalidSpec, errors.Join(errs...))
	}
	if opts.Storage != nil && opts.Loop == nil {
		return store.Definition{}, fmt.Errorf("store %s: a loop is required with storage", spec.Key)
	}

	initial := spec.State.Clone()
	def := store.Definition{
		Key:     spec.Key,
		State:   func() value.Record { return initial.Clone() },
		Getters: make(map[string]store.GetterFunc, len(spec.Getters)),
		Actions: make(map[string]store.ActionFunc, len(spec.Actions)),
	}

	getterEnv := sampleEnv(spec.State, false)
	for name, src := range spec.Getters {
		prog, err := compileExpr(src, getterEnv)
		if err != nil {
			return store.Definition{}, fmt.Errorf("store %s: getter %s: %w", spec.Key, name, err)
		}
		def.Getters[name] = getterFunc(name, src, prog)
	}

	actionEnv := sampleEnv(spec.State, true)
	for name, action := range spec.Actions {
		var assigns []assignment
		for _, field := range action.Fields() {
			src := action.Assign[field]
			prog, err := compileExpr(src, actionEnv)
			if err != nil {
				return store.Definition{}, fmt.Errorf("store %s: action %s: %w", spec.Key, name, err)
			}
			assigns = append(assigns, assignment{field: field, src: src, prog: prog})
		}
		def.Actions[name] = actionFunc(assigns)
	}

	if spec.Persist != nil {
		codec, err := persist.CodecByName(spec.Persist.Codec)
		if err != nil {
			return store.Definition{}, fmt.Errorf("store %s: %w", spec.Key, err)
		}
		def.Plugins = append(def.Plugins, persist.New(persist.Options{
			Storage: opts.Storage,
			Version: spec.Persist.Version,
			Codec:   codec,
			Loop:    opts.Loop,
		}))
	}
	def.Plugins = append(def.Plugins, opts.Plugins...)

	return def, nil
}

// Register builds spec and adds it to reg.
func Register(reg *store.Registry, spec *StoreSpec, opts Options) (store.Reader, error) {
	def, err := Build(spec, opts)
	if err != nil {
		return store.Reader{}, err
	}
	return reg.Register(def)
}

// RegisterAll registers every spec in order, stopping at the first error.
func RegisterAll(reg *store.Registry, specs []*StoreSpec, opts Options) error {
	for _, spec := range specs {
		if _, err := Register(reg, spec, opts); err != nil {
			return err
		}
	}
	return nil
}
