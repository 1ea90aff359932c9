package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gudam/internal/engine"
	"github.com/roach88/gudam/internal/plugin"
	"github.com/roach88/gudam/internal/value"
)

var count = Field[value.Int]("n")

func counterState() value.Record {
	return value.Record{"n": value.Int(0), "label": value.String("clicks")}
}

func increment(s *Instance, _ ...any) (any, error) {
	return nil, count.Update(s, func(n value.Int) value.Int { return n + 1 })
}

func double(s *Instance) (any, error) {
	return count.Get(s) * 2, nil
}

// changeRecorder is a plugin that records every OnChange snapshot.
type changeRecorder struct {
	keys      []string
	snapshots []value.Record
}

func (r *changeRecorder) InitState(_ string, s value.Record) (value.Record, error) {
	return s, nil
}

func (r *changeRecorder) OnChange(key string, s value.Record) {
	r.keys = append(r.keys, key)
	r.snapshots = append(r.snapshots, s)
}

// newCounterSession registers a counter store and instantiates it.
func newCounterSession(t *testing.T, plugins ...plugin.Plugin) (*Session, *Instance) {
	t.Helper()

	reg := NewRegistry()
	_, err := reg.Define("counter", counterState,
		WithGetter("double", double),
		WithAction("increment", increment),
		WithPlugins(plugins...),
	)
	require.NoError(t, err)

	sess, err := Instantiate(reg, WithIDGenerator(engine.NewFixedGenerator("session-1")))
	require.NoError(t, err)

	inst, ok := sess.Lookup("counter")
	require.True(t, ok)
	return sess, inst
}

// countViews subscribes to sess and returns a pointer to the number of views
// published since.
func countViews(sess *Session) *int {
	n := 0
	sess.Subscribe(func(View) { n++ })
	return &n
}
