package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/gudam/internal/value"
)

func validCounter() *StoreSpec {
	return &StoreSpec{
		Key:     "counter",
		State:   value.Record{"n": value.Int(0)},
		Getters: map[string]string{"double": "n * 2"},
		Actions: map[string]ActionSpec{
			"increment": {Assign: map[string]string{"n": "n + 1"}},
			"add":       {Assign: map[string]string{"n": "n + args[0]"}},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidStore(t *testing.T) {
	assert.Empty(t, Validate(validCounter()))
	assert.Empty(t, Validate(*validCounter()))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("counter")
	assert.Equal(t, []string{ErrUnsupportedType}, codes(errs))
}

func TestValidateStoreKey(t *testing.T) {
	spec := validCounter()
	spec.Key = "9lives"
	assert.Equal(t, []string{ErrInvalidStoreKey}, codes(Validate(spec)))

	spec.Key = "user-prefs"
	assert.Empty(t, Validate(spec))
}

func TestValidateEmptyState(t *testing.T) {
	spec := &StoreSpec{Key: "empty", State: value.Record{}}
	assert.Equal(t, []string{ErrStoreNoState}, codes(Validate(spec)))
}

func TestValidateNameCollisions(t *testing.T) {
	spec := validCounter()
	spec.Getters["n"] = "1"
	spec.Actions["double"] = ActionSpec{Assign: map[string]string{"n": "0"}}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrNameCollision, ErrNameCollision}, codes(errs))
	assert.Equal(t, "getters.n", errs[0].Field)
	assert.Equal(t, "actions.double", errs[1].Field)
}

func TestValidateExpressions(t *testing.T) {
	spec := validCounter()
	spec.Getters["broken"] = "n *"
	spec.Getters["unknown"] = "missing + 1"

	errs := Validate(spec)
	assert.Equal(t, []string{ErrInvalidExpression, ErrInvalidExpression}, codes(errs))
}

func TestValidateArgsOnlyInActions(t *testing.T) {
	spec := validCounter()
	spec.Getters["plus"] = "n + args[0]"

	errs := Validate(spec)
	assert.Equal(t, []string{ErrInvalidExpression}, codes(errs))
	assert.Equal(t, "getters.plus", errs[0].Field)
}

func TestValidateUnknownAssignment(t *testing.T) {
	spec := validCounter()
	spec.Actions["typo"] = ActionSpec{Assign: map[string]string{"count": "1"}}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrUnknownAssignment}, codes(errs))
	assert.Equal(t, "actions.typo.count", errs[0].Field)
}

func TestValidatePersistCodec(t *testing.T) {
	spec := validCounter()
	spec.Persist = &PersistSpec{Codec: "yaml"}
	assert.Empty(t, Validate(spec))

	spec.Persist.Codec = "xml"
	assert.Equal(t, []string{ErrInvalidPersist}, codes(Validate(spec)))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "state", Message: "missing", Code: ErrStoreNoState}
	assert.Equal(t, "[E101] state: missing", e.Error())

	e.Line = 4
	assert.Equal(t, "[E101] line 4: state: missing", e.Error())
}
