// Package persist implements the versioned, debounced persistence plugin.
//
// Each store is stored under two string keys: the data key holds the
// encoded state and the version key holds a plain version string. When the
// stored version does not match the plugin's version, the store starts from
// its factory defaults and storage is rewritten.
//
// Writes are deferred to an engine.Loop. However many changes happen before
// the scheduled task runs, exactly one write of the latest state is made.
// Without a supplied loop the plugin runs its own and waits Options.Settle
// after a store's first change before queueing the write, so a burst of
// synchronous changes still lands as one write.
//
//	p := persist.New(persist.Options{Storage: db, Version: "1", Loop: loop})
//	reg.MustDefine("counter", state, store.WithPlugins(p))
package persist
