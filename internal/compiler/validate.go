package compiler

import (
	"fmt"
	"regexp"
	"sort"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedType   = "E100" // unsupported value for validation
	ErrStoreNoState      = "E101" // state must declare at least one field
	ErrInvalidStoreKey   = "E102" // key must be an identifier
	ErrNameCollision     = "E103" // getter/action name clashes with another member
	ErrInvalidExpression = "E104" // expression does not compile
	ErrUnknownAssignment = "E105" // action assigns a field outside the state
	ErrFloatForbidden    = "E106" // float values not allowed
	ErrInvalidPersist    = "E107" // unknown codec
)

var storeKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled store spec. Returns all errors found (does not
// fail-fast), ordered by field.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *StoreSpec:
		return validateStoreSpec(spec)
	case StoreSpec:
		return validateStoreSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateStoreSpec(spec *StoreSpec) []ValidationError {
	var errs []ValidationError
	line := 0
	if spec.Pos.IsValid() {
		line = spec.Pos.Line()
	}
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    line,
		})
	}

	if !storeKeyPattern.MatchString(spec.Key) {
		add("key", ErrInvalidStoreKey, "store key %q must be an identifier", spec.Key)
	}

	if len(spec.State) == 0 {
		add("state", ErrStoreNoState, "state must declare at least one field")
	}

	getterEnv := sampleEnv(spec.State, false)
	for _, name := range sortedKeys(spec.Getters) {
		field := "getters." + name
		if _, ok := spec.State[name]; ok {
			add(field, ErrNameCollision, "getter %q shadows a state field", name)
		}
		if _, err := compileExpr(spec.Getters[name], getterEnv); err != nil {
			add(field, ErrInvalidExpression, "%v", err)
		}
	}

	actionEnv := sampleEnv(spec.State, true)
	for _, name := range sortedKeys(spec.Actions) {
		field := "actions." + name
		if _, ok := spec.State[name]; ok {
			add(field, ErrNameCollision, "action %q shadows a state field", name)
		}
		if _, ok := spec.Getters[name]; ok {
			add(field, ErrNameCollision, "action %q shadows a getter", name)
		}

		action := spec.Actions[name]
		for _, target := range action.Fields() {
			if _, ok := spec.State[target]; !ok {
				add(field+"."+target, ErrUnknownAssignment, "field %q is not part of the state", target)
				continue
			}
			if _, err := compileExpr(action.Assign[target], actionEnv); err != nil {
				add(field+"."+target, ErrInvalidExpression, "%v", err)
			}
		}
	}

	if spec.Persist != nil {
		switch spec.Persist.Codec {
		case "", "json", "yaml":
		default:
			add("persist.codec", ErrInvalidPersist, "unknown codec %q (want json or yaml)", spec.Persist.Codec)
		}
	}

	return errs
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
