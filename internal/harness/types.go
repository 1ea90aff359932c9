package harness

import "github.com/roach88/gudam/internal/value"

// Trace event types.
const (
	EventSession = "session" // a session was instantiated
	EventStep    = "step"    // a scenario step started
	EventNotify  = "notify"  // a store published a new view
	EventWrite   = "write"   // a storage item was written
	EventPreload = "preload" // a preload step reached the gate
)

// TraceEvent is one observable effect of running a scenario.
type TraceEvent struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Step    string `json:"step,omitempty"`
	Store   string `json:"store,omitempty"`
	Token   int64  `json:"token,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Applied bool   `json:"applied,omitempty"`
	Seq     int64  `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: no step failed unexpectedly and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains every session, step, notification and write in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds each store's final snapshot in the last session.
	State map[string]value.Record `json:"state,omitempty"`

	// NotifyCounts counts notifications per store across all sessions.
	NotifyCounts map[string]int `json:"notify_counts,omitempty"`

	// WriteCounts counts storage writes per key.
	WriteCounts map[string]int `json:"write_counts,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Errors:       []string{},
		State:        make(map[string]value.Record),
		NotifyCounts: make(map[string]int),
		WriteCounts:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
