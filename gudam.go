// Package gudam is a reactive store container.
//
// Application code declares named stores on a Registry: a function producing
// the initial state, plus optional getters, actions and plugins. Instantiate
// builds one live Instance per store into a Session, which consumers read
// either explicitly (Reader.From) or through a context (Reader.Use). Every
// notification publishes a new View whose Token changes, so a consumer
// detects change by comparing the View it last saw with the current one.
//
// A minimal counter:
//
//	var count = gudam.Field[gudam.Int]("n")
//
//	reg := gudam.NewRegistry()
//	counter := reg.MustDefine("counter",
//		func() gudam.Record { return gudam.Record{"n": gudam.Int(0)} },
//		gudam.WithAction("increment", func(s *gudam.Instance, _ ...any) (any, error) {
//			return nil, count.Update(s, func(n gudam.Int) gudam.Int { return n + 1 })
//		}),
//	)
//
//	sess, err := gudam.Instantiate(reg)
//	...
//	inst, _ := counter.From(sess)
//	inst.Dispatch("increment")
//
// State survives restarts through the persistence plugin (NewPersist) backed
// by any Storage: OpenSQLite, OpenTOMLFile or NewMemoryStorage.
package gudam

import (
	"github.com/roach88/gudam/internal/compiler"
	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/storage"
	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/value"
)

// State values.
type (
	Value  = value.Value
	Record = value.Record
	Null   = value.Null
	String = value.String
	Int    = value.Int
	Bool   = value.Bool
	Array  = value.Array
	Object = value.Object
)

// Stores.
type (
	Registry    = store.Registry
	Definition  = store.Definition
	Reader      = store.Reader
	Instance    = store.Instance
	Session     = store.Session
	View        = store.View
	Channel     = store.Channel
	StateFunc   = store.StateFunc
	GetterFunc  = store.GetterFunc
	ActionFunc  = store.ActionFunc
	Error       = store.Error
	ErrorCode   = store.ErrorCode
	Plugin      = plugin.Plugin
	PluginFuncs = plugin.Funcs
)

// Cell is a typed accessor for one state field.
type Cell[T Value] = store.Cell[T]

// Persistence.
type (
	Storage        = persist.Storage
	PersistOptions = persist.Options
	Persister      = persist.Plugin
	Codec          = persist.Codec
	JSONCodec      = persist.JSONCodec
	YAMLCodec      = persist.YAMLCodec
	Loop           = engine.Loop
)

// Registry and instantiation.
var (
	NewRegistry     = store.NewRegistry
	WithGetter      = store.WithGetter
	WithAction      = store.WithAction
	WithPlugins     = store.WithPlugins
	Instantiate     = store.Instantiate
	WithIDGenerator = store.WithIDGenerator
	WithSession     = store.WithSession
	SessionFrom     = store.SessionFrom
	IsDuplicateKey  = store.IsDuplicateKey
	IsPluginInit    = store.IsPluginInit
	IsUnknownField  = store.IsUnknownField
)

// Persistence and storage backends.
var (
	NewPersist       = persist.New
	NewLoop          = engine.NewLoop
	OpenSQLite       = storage.OpenSQLite
	OpenTOMLFile     = storage.OpenTOMLFile
	NewMemoryStorage = storage.NewMemory
)

// Field returns a typed accessor for the named field.
func Field[T Value](name string) Cell[T] {
	return store.Field[T](name)
}

// SpecOptions configures stores registered from CUE spec files.
type SpecOptions = compiler.Options

// RegisterSpecs compiles the stores declared in the given CUE files and
// registers them on reg in declaration order. Persisted stores need
// opts.Storage and opts.Loop.
func RegisterSpecs(reg *Registry, opts SpecOptions, paths ...string) error {
	specs, err := compiler.CompileFiles(paths...)
	if err != nil {
		return err
	}
	return compiler.RegisterAll(reg, specs, opts)
}
