package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gudam/internal/value"
)

// TraceSnapshot captures the complete trace and final state of a scenario
// execution. All fields use canonical JSON serialization for deterministic
// comparison.
type TraceSnapshot struct {
	ScenarioName string                  `json:"scenario_name"`
	SessionID    string                  `json:"session_id,omitempty"`
	Trace        []TraceEvent            `json:"trace"`
	State        map[string]value.Record `json:"state"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Zero-valued event fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"seq":  ev.Seq,
		}
		if ev.Session != "" {
			m["session"] = ev.Session
		}
		if ev.Step != "" {
			m["step"] = ev.Step
		}
		if ev.Store != "" {
			m["store"] = ev.Store
		}
		if ev.Token != 0 {
			m["token"] = ev.Token
		}
		if ev.Key != "" {
			m["key"] = ev.Key
		}
		if ev.Value != "" {
			m["value"] = ev.Value
		}
		if ev.Type == EventPreload {
			m["applied"] = ev.Applied
		}
		traceList[i] = m
	}

	state := make(map[string]any, len(s.State))
	for key, rec := range s.State {
		state[key] = rec
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state":         state,
	}
	if s.SessionID != "" {
		result["session_id"] = s.SessionID
	}
	return result
}

// Snapshot builds the canonical JSON snapshot of a result.
func Snapshot(scenarioName, sessionID string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		SessionID:    sessionID,
		Trace:        result.Trace,
		State:        result.State,
	}
	return value.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return assertGolden(t, scenario.Name, scenario.SessionID, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return assertGolden(t, scenarioName, "", result)
}

func assertGolden(t *testing.T, name, sessionID string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, sessionID, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
