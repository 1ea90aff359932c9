package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/gudam/internal/compiler"
	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/storage"
	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/testutil"
	"github.com/roach88/gudam/internal/value"
)

// Options configures a scenario run.
type Options struct {
	// Storage is the persistence backend. Default: a fresh in-memory
	// SQLite database per run.
	Storage persist.Storage
}

// Harness runs one scenario with a deterministic session ID and sequence.
//
// Everything happens on the caller's goroutine: persistence writes are
// queued on a loop that is only drained by flush steps and once more before
// assertions are evaluated.
type Harness struct {
	registry *store.Registry
	backend  persist.Storage
	loop     *engine.Loop
	ids      engine.IDGenerator
	seq      *engine.Clock
	session  *store.Session
	cancel   func()
	result   *Result
}

// Run executes a scenario against a fresh in-memory SQLite database.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Execution flow:
//  1. Pre-populate storage from scenario.Storage
//  2. Compile and register the spec files
//  3. Instantiate a session
//  4. Execute steps in order
//  5. Drain pending writes and evaluate assertions
//
// Step failures are recorded in the result; the returned error is reserved
// for problems that prevent the scenario from running at all.
func RunWithOptions(scenario *Scenario, opts Options) (*Result, error) {
	ctx := context.Background()

	backend := opts.Storage
	if backend == nil {
		db, err := storage.OpenSQLite(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory storage: %w", err)
		}
		defer db.Close()
		backend = db
	}

	for _, key := range sortedKeys(scenario.Storage) {
		if err := backend.SetItem(ctx, key, scenario.Storage[key]); err != nil {
			return nil, fmt.Errorf("failed to pre-populate storage: %w", err)
		}
	}

	specs, err := compiler.CompileFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	h := &Harness{
		registry: store.NewRegistry(),
		backend:  backend,
		loop:     engine.NewLoop(),
		ids:      testutil.NewFixedSessionGenerator(scenario.SessionID),
		seq:      engine.NewClock(),
		result:   NewResult(),
	}

	traced := &tracingStorage{inner: backend, h: h}
	if err := compiler.RegisterAll(h.registry, specs, compiler.Options{Storage: traced, Loop: h.loop}); err != nil {
		return nil, fmt.Errorf("failed to register stores: %w", err)
	}

	slog.Debug("scenario starting",
		"scenario", scenario.Name,
		"stores", h.registry.Len(),
		"steps", len(scenario.Steps),
	)

	h.instantiate()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step)
	}
	h.loop.Drain(ctx)
	h.captureState()

	actx := &AssertionContext{
		Session: h.session,
		Storage: backend,
		Ctx:     ctx,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// instantiate discards the current session, if any, and builds a new one.
func (h *Harness) instantiate() {
	if h.cancel != nil {
		h.cancel()
	}

	sess, err := store.Instantiate(h.registry, store.WithIDGenerator(h.ids))
	if err != nil {
		h.result.AddError(fmt.Sprintf("instantiate: %v", err))
	}
	h.session = sess
	h.cancel = sess.Subscribe(func(v store.View) {
		h.result.NotifyCounts[v.Key]++
		h.result.addTrace(TraceEvent{
			Type:  EventNotify,
			Store: v.Key,
			Token: v.Token,
			Seq:   h.seq.Next(),
		})
	})

	h.result.addTrace(TraceEvent{
		Type:    EventSession,
		Session: sess.ID(),
		Seq:     h.seq.Next(),
	})
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step) {
	h.result.addTrace(TraceEvent{
		Type: EventStep,
		Step: describeStep(step),
		Seq:  h.seq.Next(),
	})

	err := h.apply(ctx, step)

	if step.ExpectError != "" {
		switch {
		case err == nil:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none",
				index, describeStep(step), step.ExpectError))
		case !strings.Contains(err.Error(), step.ExpectError):
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %v",
				index, describeStep(step), step.ExpectError, err))
		}
		return
	}

	if err != nil {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: %v", index, describeStep(step), err))
	}
}

func (h *Harness) apply(ctx context.Context, step Step) error {
	switch step.Kind() {
	case StepAction:
		key, name, err := splitAction(step.Action)
		if err != nil {
			return err
		}
		inst, err := h.lookup(key)
		if err != nil {
			return err
		}
		_, err = inst.Dispatch(name, step.Args...)
		return err

	case StepSet:
		inst, err := h.lookup(step.Set.Store)
		if err != nil {
			return err
		}
		v, err := value.FromAny(step.Set.Value)
		if err != nil {
			return fmt.Errorf("value for %s: %w", step.Set.Field, err)
		}
		return inst.Set(step.Set.Field, v)

	case StepPreload:
		inst, err := h.lookup(step.Preload.Store)
		if err != nil {
			return err
		}
		values, err := value.RecordFromMap(step.Preload.Values)
		if err != nil {
			return fmt.Errorf("preload values: %w", err)
		}
		applied, err := inst.Preload(func(s *store.Instance) error {
			for _, field := range values.Keys() {
				if err := s.Set(field, values[field]); err != nil {
					return err
				}
			}
			return nil
		})
		h.result.addTrace(TraceEvent{
			Type:    EventPreload,
			Store:   step.Preload.Store,
			Applied: applied,
			Seq:     h.seq.Next(),
		})
		return err

	case StepReset:
		inst, err := h.lookup(step.Reset)
		if err != nil {
			return err
		}
		inst.Reset()
		return nil

	case StepTrigger:
		inst, err := h.lookup(step.Trigger)
		if err != nil {
			return err
		}
		inst.Trigger()
		return nil

	case StepFlush:
		ran := h.loop.Drain(ctx)
		slog.Debug("flushed pending writes", "tasks", ran)
		return nil

	case StepReinstantiate:
		h.loop.Drain(ctx)
		h.instantiate()
		return nil

	default:
		return fmt.Errorf("no operation given")
	}
}

func (h *Harness) lookup(key string) (*store.Instance, error) {
	inst, ok := h.session.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("store %q not in session", key)
	}
	return inst, nil
}

func (h *Harness) captureState() {
	h.result.State = make(map[string]value.Record, h.session.Len())
	for _, key := range h.session.Keys() {
		inst, _ := h.session.Lookup(key)
		h.result.State[key] = inst.Snapshot()
	}
}

func (h *Harness) recordWrite(key, val string) {
	h.result.WriteCounts[key]++
	h.result.addTrace(TraceEvent{
		Type:  EventWrite,
		Key:   key,
		Value: val,
		Seq:   h.seq.Next(),
	})
}

// tracingStorage records every successful write into the harness trace.
type tracingStorage struct {
	inner persist.Storage
	h     *Harness
}

func (s *tracingStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.inner.GetItem(ctx, key)
}

func (s *tracingStorage) SetItem(ctx context.Context, key, val string) error {
	if err := s.inner.SetItem(ctx, key, val); err != nil {
		return err
	}
	s.h.recordWrite(key, val)
	return nil
}

// splitAction parses "<store>.<action>".
func splitAction(ref string) (key, name string, err error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("action %q must be <store>.<action>", ref)
	}
	return ref[:i], ref[i+1:], nil
}

func describeStep(s Step) string {
	switch s.Kind() {
	case StepAction:
		return "action " + s.Action
	case StepSet:
		return "set " + s.Set.Store + "." + s.Set.Field
	case StepPreload:
		return "preload " + s.Preload.Store
	case StepReset:
		return "reset " + s.Reset
	case StepTrigger:
		return "trigger " + s.Trigger
	default:
		return s.Kind()
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
