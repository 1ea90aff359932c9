package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

// Channel is the distribution channel consumers read instances from.
// *Session implements it.
type Channel interface {
	Lookup(key string) (*Instance, bool)
}

// View is the externally observed identity of an instance. Each
// notification publishes a new View with a larger Token, so comparing the
// View a consumer last rendered with the current one detects change.
type View struct {
	Key   string
	Token int64
	inst  *Instance
}

// Instance returns the live instance behind the view.
func (v View) Instance() *Instance {
	return v.inst
}

// Session is the result of one instantiation pass: one live instance per
// registered definition, keyed by store key.
//
// A session is rebuilt in full by each Instantiate call; instances are never
// carried over or patched individually.
type Session struct {
	id        string
	clock     *engine.Clock
	keys      []string
	instances map[string]*Instance

	mu      sync.Mutex
	views   map[string]View
	subs    map[int]func(View)
	nextSub int
}

// InstantiateOption configures an instantiation pass.
type InstantiateOption func(*instantiateConfig)

type instantiateConfig struct {
	ids engine.IDGenerator
}

// WithIDGenerator sets the session ID source. Default: UUIDv7.
func WithIDGenerator(gen engine.IDGenerator) InstantiateOption {
	return func(c *instantiateConfig) {
		if gen != nil {
			c.ids = gen
		}
	}
}

// Instantiate builds a live instance for every definition in reg, in
// registration order.
//
// Each store is built independently: a store whose state function panics or
// whose plugin fails is left out of the session and its error is joined into
// the returned error. The session is returned even when err is non-nil.
func Instantiate(reg *Registry, opts ...InstantiateOption) (*Session, error) {
	cfg := instantiateConfig{ids: engine.UUIDv7Generator{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := &Session{
		id:        cfg.ids.Generate(),
		clock:     engine.NewClock(),
		instances: make(map[string]*Instance),
		views:     make(map[string]View),
		subs:      make(map[int]func(View)),
	}

	var errs []error
	for _, def := range reg.definitions() {
		inst, err := buildInstance(s, def)
		if err != nil {
			slog.Error("store instantiation failed",
				"store_key", def.Key,
				"session_id", s.id,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		s.keys = append(s.keys, def.Key)
		s.instances[def.Key] = inst
		s.views[def.Key] = inst.view()

		slog.Debug("store instantiated",
			"store_key", def.Key,
			"session_id", s.id,
			"fields", len(def.fields),
			"plugins", len(def.Plugins),
		)
	}

	return s, errors.Join(errs...)
}

// buildInstance resolves initial state through the plugin pipeline and wires
// the instance. Panics are converted into *Error.
func buildInstance(s *Session, def *Definition) (inst *Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = &Error{
				Code:    ErrCodeInstantiate,
				Key:     def.Key,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	initial := def.State()
	if initial == nil {
		initial = value.Record{}
	}

	state, err := plugin.Pipeline(def.Plugins).InitState(def.Key, initial.Clone())
	if err != nil {
		return nil, &Error{
			Code:    ErrCodePluginInit,
			Key:     def.Key,
			Message: "plugin init failed",
			Err:     err,
		}
	}

	return newInstance(s, def, state), nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Lookup implements Channel.
func (s *Session) Lookup(key string) (*Instance, bool) {
	if s == nil {
		return nil, false
	}
	inst, ok := s.instances[key]
	return inst, ok
}

// Keys returns the instantiated store keys in registration order.
func (s *Session) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of instantiated stores.
func (s *Session) Len() int {
	return len(s.keys)
}

// View returns the currently published view for key.
func (s *Session) View(key string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[key]
	return v, ok
}

// Views returns a copy of the published views. Two calls return maps whose
// entries differ exactly for the stores that notified in between.
func (s *Session) Views() map[string]View {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]View, len(s.views))
	for k, v := range s.views {
		out[k] = v
	}
	return out
}

// Subscribe registers fn to receive every newly published view, in order.
// fn runs synchronously on the writer's goroutine. Call cancel to stop.
func (s *Session) Subscribe(fn func(View)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) publish(v View) {
	s.mu.Lock()
	s.views[v.Key] = v
	subs := make([]func(View), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

type sessionKey struct{}

// WithSession returns a context carrying s as the ambient channel.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
