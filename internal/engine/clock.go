package engine

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// Sessions use one Clock to stamp every published store view, so tokens are
// unique within a session and strictly increase with each notification.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next() is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
