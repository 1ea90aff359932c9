package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/value"
)

const (
	// DataKeyPrefix prefixes the storage key holding a store's state.
	DataKeyPrefix = "gudam_data__"

	// VersionKeyPrefix prefixes the storage key holding a store's version.
	VersionKeyPrefix = "gudam_version__"

	// DefaultVersion is used when Options.Version is empty.
	DefaultVersion = "0.0.1"

	// DefaultSettle is used when Options.Settle is zero.
	DefaultSettle = 50 * time.Millisecond
)

// DataKey returns the storage key of key's state.
func DataKey(key string) string {
	return DataKeyPrefix + key
}

// VersionKey returns the storage key of key's version.
func VersionKey(key string) string {
	return VersionKeyPrefix + key
}

// Storage is a durable string key/value backend.
type Storage interface {
	// GetItem returns the value stored at key; ok is false when absent.
	GetItem(ctx context.Context, key string) (val string, ok bool, err error)

	// SetItem stores val at key, replacing any previous value.
	SetItem(ctx context.Context, key, val string) error
}

// Options configures a Plugin.
type Options struct {
	// Storage is the backend. Nil disables persistence: InitState returns
	// its input and OnChange does nothing.
	Storage Storage

	// Version tags stored data. Default: DefaultVersion.
	Version string

	// Codec encodes state. Default: JSONCodec.
	Codec Codec

	// Loop runs deferred writes. When nil (and Storage is set) the plugin
	// starts its own loop on a background goroutine; call Close to stop it.
	Loop *engine.Loop

	// Settle is how long the plugin's own loop waits after the first change
	// to a store before writing it. Changes made within the window share one
	// write. Ignored when Loop is supplied. Default: DefaultSettle.
	Settle time.Duration
}

// DecodeError reports a stored payload that could not be decoded.
// InitState recovers from it by falling back to the initial state.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode persisted state for %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Plugin persists store state through Storage.
//
// Thread-safety: OnChange may be called from the writer goroutine while a
// scheduled write runs on the loop goroutine; the pending table is guarded
// by a mutex.
type Plugin struct {
	storage Storage
	version string
	codec   Codec
	loop    *engine.Loop

	owned  bool
	settle time.Duration
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	pending map[string]bool
	latest  map[string]value.Record
	timers  map[string]*time.Timer
}

// New creates a persistence plugin.
func New(opts Options) *Plugin {
	p := &Plugin{
		storage: opts.Storage,
		version: opts.Version,
		codec:   opts.Codec,
		loop:    opts.Loop,
		settle:  opts.Settle,
		pending: make(map[string]bool),
		latest:  make(map[string]value.Record),
		timers:  make(map[string]*time.Timer),
	}
	if p.settle <= 0 {
		p.settle = DefaultSettle
	}
	if p.version == "" {
		p.version = DefaultVersion
	}
	if p.codec == nil {
		p.codec = JSONCodec{}
	}
	if p.loop == nil && p.storage != nil {
		p.loop = engine.NewLoop()
		p.owned = true
		p.done = make(chan struct{})
		go func() {
			defer close(p.done)
			_ = p.loop.Run(context.Background())
		}()
	}
	return p
}

// Version returns the version string this plugin writes.
func (p *Plugin) Version() string {
	return p.version
}

// Loop returns the loop that runs deferred writes, or nil when the plugin
// has no storage and no loop was supplied.
func (p *Plugin) Loop() *engine.Loop {
	return p.loop
}

// InitState resolves a store's starting state from storage.
//
// A missing payload or a version mismatch writes state as the new baseline
// and returns it. A payload that fails to decode is logged and treated the
// same way. Storage errors are returned.
func (p *Plugin) InitState(key string, state value.Record) (value.Record, error) {
	if p.storage == nil {
		return state, nil
	}
	ctx := context.Background()

	stored, hasVersion, err := p.storage.GetItem(ctx, VersionKey(key))
	if err != nil {
		return nil, fmt.Errorf("read version for %q: %w", key, err)
	}
	data, hasData, err := p.storage.GetItem(ctx, DataKey(key))
	if err != nil {
		return nil, fmt.Errorf("read state for %q: %w", key, err)
	}

	if !hasVersion || stored != p.version || !hasData {
		slog.Debug("writing persistence baseline",
			"store_key", key,
			"stored_version", stored,
			"version", p.version,
		)
		return state, p.writeBaseline(ctx, key, state)
	}

	decoded, err := p.codec.Decode(data)
	if err != nil {
		derr := &DecodeError{Key: key, Err: err}
		slog.Warn("persisted state unreadable, using defaults",
			"store_key", key,
			"error", derr,
		)
		return state, p.writeBaseline(ctx, key, state)
	}

	slog.Debug("restored persisted state", "store_key", key, "version", p.version)
	return decoded, nil
}

func (p *Plugin) writeBaseline(ctx context.Context, key string, state value.Record) error {
	data, err := p.codec.Encode(state)
	if err != nil {
		return fmt.Errorf("encode state for %q: %w", key, err)
	}
	if err := p.storage.SetItem(ctx, DataKey(key), data); err != nil {
		return fmt.Errorf("write state for %q: %w", key, err)
	}
	if err := p.storage.SetItem(ctx, VersionKey(key), p.version); err != nil {
		return fmt.Errorf("write version for %q: %w", key, err)
	}
	return nil
}

// OnChange records state as the latest snapshot for key and schedules a
// write if none is pending. Every change before the write runs collapses
// into that one write.
//
// On a supplied loop the write is queued at once and runs on the next Drain
// or Run tick. On the plugin's own loop it is queued only once the settle
// window has passed, since that loop runs concurrently with the caller.
func (p *Plugin) OnChange(key string, state value.Record) {
	if p.storage == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest[key] = state
	if p.pending[key] || p.closed {
		return
	}
	p.pending[key] = true

	if p.owned {
		p.timers[key] = time.AfterFunc(p.settle, func() { p.release(key) })
		return
	}
	p.scheduleLocked(key)
}

// release queues key's write once its settle window has passed.
func (p *Plugin) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.timers, key)
	if p.closed {
		return
	}
	p.scheduleLocked(key)
}

func (p *Plugin) scheduleLocked(key string) {
	if !p.loop.Schedule("persist "+key, p.flushTask(key)) {
		p.pending[key] = false
	}
}

func (p *Plugin) flushTask(key string) engine.Task {
	return func(ctx context.Context) error {
		p.mu.Lock()
		state, ok := p.latest[key]
		delete(p.latest, key)
		p.pending[key] = false
		p.mu.Unlock()

		if !ok {
			return nil
		}

		data, err := p.codec.Encode(state)
		if err != nil {
			return fmt.Errorf("encode state for %q: %w", key, err)
		}
		if err := p.storage.SetItem(ctx, DataKey(key), data); err != nil {
			return fmt.Errorf("write state for %q: %w", key, err)
		}
		slog.Debug("persisted state", "store_key", key, "bytes", len(data))
		return nil
	}
}

// Close stops the plugin's own loop after writing every pending change,
// including changes still inside their settle window. It does nothing when
// the loop was supplied through Options.
func (p *Plugin) Close() error {
	if !p.owned {
		return nil
	}

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for key, t := range p.timers {
			t.Stop()
			delete(p.timers, key)
		}
		for key, pending := range p.pending {
			if pending {
				p.scheduleLocked(key)
			}
		}
	}
	p.mu.Unlock()

	p.loop.Stop()
	<-p.done
	return nil
}
