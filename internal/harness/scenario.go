package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a store behavior scenario.
// Scenarios load declarative store specs, run a list of steps against a
// fresh session and assert on the resulting trace, state and storage.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE spec files to compile and load.
	Specs []string `yaml:"specs"`

	// Storage pre-populates the storage backend before instantiation.
	Storage map[string]string `yaml:"storage,omitempty"`

	// Steps run in order against the session.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, state and storage.
	Assertions []Assertion `yaml:"assertions"`

	// SessionID is an optional fixed session ID for deterministic traces.
	// If empty, defaults to "test-session".
	SessionID string `yaml:"session_id,omitempty"`
}

// Step is one operation against the session. Exactly one of its operation
// fields must be set.
type Step struct {
	// Action dispatches "<store>.<action>" with Args.
	Action string `yaml:"action,omitempty"`
	Args   []any  `yaml:"args,omitempty"`

	// Set writes one field.
	Set *SetStep `yaml:"set,omitempty"`

	// Preload silently applies values through the preload gate.
	Preload *PreloadStep `yaml:"preload,omitempty"`

	// Reset restores the named store to its initial state.
	Reset string `yaml:"reset,omitempty"`

	// Trigger forces a notification on the named store.
	Trigger string `yaml:"trigger,omitempty"`

	// Flush runs every pending persistence write.
	Flush bool `yaml:"flush,omitempty"`

	// Reinstantiate discards the session and builds a fresh one against the
	// same storage.
	Reinstantiate bool `yaml:"reinstantiate,omitempty"`

	// ExpectError, when set, requires the step to fail with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SetStep writes Value to Store.Field.
type SetStep struct {
	Store string `yaml:"store"`
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// PreloadStep writes Values to Store inside its preload window.
type PreloadStep struct {
	Store  string         `yaml:"store"`
	Values map[string]any `yaml:"values"`
}

// Kind names the operation a step performs.
func (s Step) Kind() string {
	switch {
	case s.Action != "":
		return StepAction
	case s.Set != nil:
		return StepSet
	case s.Preload != nil:
		return StepPreload
	case s.Reset != "":
		return StepReset
	case s.Trigger != "":
		return StepTrigger
	case s.Flush:
		return StepFlush
	case s.Reinstantiate:
		return StepReinstantiate
	default:
		return ""
	}
}

func (s Step) operationCount() int {
	n := 0
	for _, set := range []bool{
		s.Action != "",
		s.Set != nil,
		s.Preload != nil,
		s.Reset != "",
		s.Trigger != "",
		s.Flush,
		s.Reinstantiate,
	} {
		if set {
			n++
		}
	}
	return n
}

// Step kinds.
const (
	StepAction        = "action"
	StepSet           = "set"
	StepPreload       = "preload"
	StepReset         = "reset"
	StepTrigger       = "trigger"
	StepFlush         = "flush"
	StepReinstantiate = "reinstantiate"
)

// Assertion validates trace, state or storage.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": the store's final fields match Expect (subset match)
	// - "getter": the store's getter evaluates to Value
	// - "storage": storage holds Value at Key (or lacks Key when Absent)
	// - "notify_count": the store notified exactly Count times
	// - "write_count": Key was written exactly Count times
	Type string `yaml:"type"`

	// Store is the store key (state, getter, notify_count).
	Store string `yaml:"store,omitempty"`

	// Getter is the getter name (getter).
	Getter string `yaml:"getter,omitempty"`

	// Key is the storage key (storage, write_count).
	Key string `yaml:"key,omitempty"`

	// Expect contains expected field values (state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Value is the expected getter result or stored string.
	Value any `yaml:"value,omitempty"`

	// Absent requires Key to be missing from storage (storage).
	Absent bool `yaml:"absent,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertState       = "state"
	AssertGetter      = "getter"
	AssertStorage     = "storage"
	AssertNotifyCount = "notify_count"
	AssertWriteCount  = "write_count"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	switch s.operationCount() {
	case 0:
		return fmt.Errorf("steps[%d]: no operation given", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: exactly one operation is allowed per step", index)
	}

	switch s.Kind() {
	case StepAction:
		if _, _, err := splitAction(s.Action); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case StepSet:
		if s.Set.Store == "" || s.Set.Field == "" {
			return fmt.Errorf("steps[%d]: set requires store and field", index)
		}
	case StepPreload:
		if s.Preload.Store == "" {
			return fmt.Errorf("steps[%d]: preload requires store", index)
		}
	}
	if len(s.Args) > 0 && s.Kind() != StepAction {
		return fmt.Errorf("steps[%d]: args are only allowed with action", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for state", index)
		}
	case AssertGetter:
		if a.Store == "" || a.Getter == "" {
			return fmt.Errorf("assertions[%d]: store and getter are required for getter", index)
		}
	case AssertStorage:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for storage", index)
		}
		if !a.Absent && a.Value == nil {
			return fmt.Errorf("assertions[%d]: value or absent is required for storage", index)
		}
	case AssertNotifyCount:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for notify_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notify_count", index)
		}
	case AssertWriteCount:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for write_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for write_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
