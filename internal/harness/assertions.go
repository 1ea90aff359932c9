package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context, may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describeEvent(ev))
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions inspect after a run.
type AssertionContext struct {
	Session *store.Session
	Storage persist.Storage
	Ctx     context.Context
}

// assertState checks that every expected field matches the store's final
// snapshot. Fields not named in Expect are ignored.
func assertState(sess *store.Session, a Assertion) error {
	inst, ok := sess.Lookup(a.Store)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("store %s in session", a.Store),
			Actual:   "store not found",
		}
	}

	want, err := value.RecordFromMap(a.Expect)
	if err != nil {
		return fmt.Errorf("state assertion on %s: %w", a.Store, err)
	}

	snap := inst.Snapshot()
	for _, field := range want.Keys() {
		got, present := snap[field]
		if !present {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s.%s = %s", a.Store, field, render(want[field])),
				Actual:   "field not present",
			}
		}
		if !value.Equal(got, want[field]) {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s.%s = %s", a.Store, field, render(want[field])),
				Actual:   fmt.Sprintf("%s.%s = %s", a.Store, field, render(got)),
			}
		}
	}
	return nil
}

// assertGetter evaluates a getter against the final state.
func assertGetter(sess *store.Session, a Assertion) error {
	inst, ok := sess.Lookup(a.Store)
	if !ok {
		return &AssertionError{
			Type:     AssertGetter,
			Expected: fmt.Sprintf("store %s in session", a.Store),
			Actual:   "store not found",
		}
	}

	raw, err := inst.Derived(a.Getter)
	if err != nil {
		return &AssertionError{
			Type:     AssertGetter,
			Expected: fmt.Sprintf("%s.%s = %v", a.Store, a.Getter, a.Value),
			Actual:   err.Error(),
		}
	}

	got, err := value.FromAny(raw)
	if err != nil {
		return fmt.Errorf("getter %s.%s result: %w", a.Store, a.Getter, err)
	}
	want, err := value.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("getter assertion on %s.%s: %w", a.Store, a.Getter, err)
	}

	if !value.Equal(got, want) {
		return &AssertionError{
			Type:     AssertGetter,
			Expected: fmt.Sprintf("%s.%s = %s", a.Store, a.Getter, render(want)),
			Actual:   fmt.Sprintf("%s.%s = %s", a.Store, a.Getter, render(got)),
		}
	}
	return nil
}

// assertStorage checks the raw string held by the backend.
func assertStorage(ctx context.Context, st persist.Storage, a Assertion) error {
	got, ok, err := st.GetItem(ctx, a.Key)
	if err != nil {
		return fmt.Errorf("storage assertion on %s: %w", a.Key, err)
	}

	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertStorage,
				Expected: fmt.Sprintf("%s absent", a.Key),
				Actual:   fmt.Sprintf("%s = %q", a.Key, got),
			}
		}
		return nil
	}

	want, isString := a.Value.(string)
	if !isString {
		return fmt.Errorf("storage assertion on %s: value must be a string, got %T", a.Key, a.Value)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertStorage,
			Expected: fmt.Sprintf("%s = %q", a.Key, want),
			Actual:   "key not present",
		}
	}
	if got != want {
		return &AssertionError{
			Type:     AssertStorage,
			Expected: fmt.Sprintf("%s = %q", a.Key, want),
			Actual:   fmt.Sprintf("%s = %q", a.Key, got),
		}
	}
	return nil
}

// assertNotifyCount checks how often a store notified across all sessions.
func assertNotifyCount(result *Result, a Assertion) error {
	got := result.NotifyCounts[a.Store]
	if got != a.Count {
		return &AssertionError{
			Type:     AssertNotifyCount,
			Expected: fmt.Sprintf("%s notified %d times", a.Store, a.Count),
			Actual:   fmt.Sprintf("%s notified %d times", a.Store, got),
			Trace:    filterTrace(result.Trace, EventNotify),
		}
	}
	return nil
}

// assertWriteCount checks how often a storage key was written.
func assertWriteCount(result *Result, a Assertion) error {
	got := result.WriteCounts[a.Key]
	if got != a.Count {
		return &AssertionError{
			Type:     AssertWriteCount,
			Expected: fmt.Sprintf("%s written %d times", a.Key, a.Count),
			Actual:   fmt.Sprintf("%s written %d times", a.Key, got),
			Trace:    filterTrace(result.Trace, EventWrite),
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertState:
			err = assertState(actx.Session, a)
		case AssertGetter:
			err = assertGetter(actx.Session, a)
		case AssertStorage:
			err = assertStorage(ctx, actx.Storage, a)
		case AssertNotifyCount:
			err = assertNotifyCount(result, a)
		case AssertWriteCount:
			err = assertWriteCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errs
}

func filterTrace(trace []TraceEvent, eventType string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case EventSession:
		return "session " + ev.Session
	case EventStep:
		return "step " + ev.Step
	case EventNotify:
		return fmt.Sprintf("notify %s token=%d", ev.Store, ev.Token)
	case EventWrite:
		return fmt.Sprintf("write %s = %s", ev.Key, ev.Value)
	case EventPreload:
		return fmt.Sprintf("preload %s applied=%t", ev.Store, ev.Applied)
	default:
		return ev.Type
	}
}

func render(v value.Value) string {
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
