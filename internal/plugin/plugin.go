// Package plugin defines the lifecycle hooks a store definition may carry
// and the ordered pipeline that invokes them.
package plugin

import (
	"fmt"
	"log/slog"

	"github.com/roach88/gudam/internal/value"
)

// Plugin intercepts a store's initialization and every change.
//
// InitState receives the state produced so far and returns the state to
// continue with; returning a nil record keeps the input unchanged.
// OnChange receives a snapshot of the current state after each notification.
// Snapshots are copies: plugins never own or mutate the live state.
type Plugin interface {
	InitState(key string, state value.Record) (value.Record, error)
	OnChange(key string, state value.Record)
}

// Funcs adapts optional hook functions to Plugin. A nil Init acts as the
// identity and a nil Change is a no-op.
type Funcs struct {
	Init   func(key string, state value.Record) (value.Record, error)
	Change func(key string, state value.Record)
}

// InitState implements Plugin.
func (f Funcs) InitState(key string, state value.Record) (value.Record, error) {
	if f.Init == nil {
		return state, nil
	}
	return f.Init(key, state)
}

// OnChange implements Plugin.
func (f Funcs) OnChange(key string, state value.Record) {
	if f.Change != nil {
		f.Change(key, state)
	}
}

// InitError reports the plugin that failed while initializing a store.
type InitError struct {
	Index int
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("plugin %d init: %v", e.Index, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Pipeline is an ordered list of plugins. Order is declaration order and
// never changes after the owning definition is registered.
type Pipeline []Plugin

// InitState pipes state through every plugin's InitState in order.
// The first error (or panic) stops the pipe and is returned as *InitError.
func (p Pipeline) InitState(key string, initial value.Record) (value.Record, error) {
	state := initial
	for i, pl := range p {
		next, err := safeInit(pl, key, state)
		if err != nil {
			return nil, &InitError{Index: i, Err: err}
		}
		if next != nil {
			state = next
		}
	}
	return state, nil
}

// OnChange hands every plugin its own snapshot of state.
// A panicking plugin is logged and does not prevent the rest from running.
func (p Pipeline) OnChange(key string, state value.Record) {
	for i, pl := range p {
		safeChange(i, pl, key, state.Clone())
	}
}

func safeInit(pl Plugin, key string, state value.Record) (next value.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return pl.InitState(key, state)
}

func safeChange(index int, pl Plugin, key string, state value.Record) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("plugin change hook panicked",
				"store_key", key,
				"plugin", index,
				"error", r,
			)
		}
	}()
	pl.OnChange(key, state)
}
