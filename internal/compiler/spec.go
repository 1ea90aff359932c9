package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gudam/internal/value"
)

// StoreSpec is the compiled form of one declarative store.
type StoreSpec struct {
	Key     string
	State   value.Record
	Getters map[string]string
	Actions map[string]ActionSpec

	// Persist is nil when the store is not persisted.
	Persist *PersistSpec

	// Pos is the position of the store's declaration.
	Pos token.Pos
}

// ActionSpec assigns expressions to fields. Every expression is evaluated
// against the state before the action runs; the results are then written
// in field order.
type ActionSpec struct {
	Assign map[string]string
}

// Fields returns the assigned field names, sorted.
func (a ActionSpec) Fields() []string {
	fields := make([]string, 0, len(a.Assign))
	for f := range a.Assign {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// PersistSpec configures the persistence plugin for a store.
type PersistSpec struct {
	// Version tags stored data. Empty means the plugin default.
	Version string

	// Codec is "json" (default) or "yaml".
	Codec string
}

// CompileStore parses a CUE value into a StoreSpec.
//
// The CUE value should be the store struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`store: counter: { state: {n: 0} }`)
//	spec, err := CompileStore(v.LookupPath(cue.ParsePath("store.counter")))
func CompileStore(v cue.Value) (*StoreSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &StoreSpec{Pos: v.Pos()}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Key = unquote(labels[len(labels)-1].String())
	}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if !stateVal.Exists() {
		return nil, &CompileError{
			Field:   "state",
			Message: "state is required",
			Pos:     v.Pos(),
		}
	}
	state, err := parseState(stateVal)
	if err != nil {
		return nil, err
	}
	spec.State = state

	spec.Getters, err = parseGetters(v)
	if err != nil {
		return nil, err
	}

	spec.Actions, err = parseActions(v)
	if err != nil {
		return nil, err
	}

	spec.Persist, err = parsePersist(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func parseState(v cue.Value) (value.Record, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "state",
			Message: "state must be a struct",
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	state := value.Record{}
	for iter.Next() {
		name := unquote(iter.Selector().String())
		val, err := toValue(iter.Value(), "state."+name)
		if err != nil {
			return nil, err
		}
		state[name] = val
	}
	return state, nil
}

// toValue converts a concrete CUE value into a state value.
// Floats are forbidden; use int instead.
func toValue(v cue.Value, field string) (value.Value, error) {
	if def, ok := v.Default(); ok {
		v = def
	}

	switch v.IncompleteKind() {
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	}

	if !v.IsConcrete() {
		return nil, &CompileError{
			Field:   field,
			Message: "initial value must be concrete",
			Pos:     v.Pos(),
		}
	}

	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Int(n), nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := value.Array{}
		for i := 0; iter.Next(); i++ {
			elem, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil

	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := value.Object{}
		for iter.Next() {
			name := unquote(iter.Selector().String())
			elem, err := toValue(iter.Value(), field+"."+name)
			if err != nil {
				return nil, err
			}
			obj[name] = elem
		}
		return obj, nil

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func parseGetters(v cue.Value) (map[string]string, error) {
	getters := map[string]string{}

	gettersVal := v.LookupPath(cue.ParsePath("getters"))
	if !gettersVal.Exists() {
		return getters, nil
	}

	iter, err := gettersVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := unquote(iter.Selector().String())
		src, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "getters." + name,
				Message: "getter must be an expression string",
				Pos:     iter.Value().Pos(),
			}
		}
		getters[name] = src
	}
	return getters, nil
}

func parseActions(v cue.Value) (map[string]ActionSpec, error) {
	actions := map[string]ActionSpec{}

	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return actions, nil
	}

	iter, err := actionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := unquote(iter.Selector().String())
		assignIter, err := iter.Value().Fields()
		if err != nil {
			return nil, &CompileError{
				Field:   "actions." + name,
				Message: "action must be a struct of field assignments",
				Pos:     iter.Value().Pos(),
			}
		}

		action := ActionSpec{Assign: map[string]string{}}
		for assignIter.Next() {
			field := unquote(assignIter.Selector().String())
			src, err := assignIter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "actions." + name + "." + field,
					Message: "assignment must be an expression string",
					Pos:     assignIter.Value().Pos(),
				}
			}
			action.Assign[field] = src
		}
		actions[name] = action
	}
	return actions, nil
}

func parsePersist(v cue.Value) (*PersistSpec, error) {
	persistVal := v.LookupPath(cue.ParsePath("persist"))
	if !persistVal.Exists() {
		return nil, nil
	}

	// persist: true is shorthand for the defaults.
	if b, err := persistVal.Bool(); err == nil {
		if !b {
			return nil, nil
		}
		return &PersistSpec{}, nil
	}

	spec := &PersistSpec{}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"version", &spec.Version},
		{"codec", &spec.Codec},
	} {
		fv := persistVal.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			continue
		}
		s, err := fv.String()
		if err != nil {
			return nil, &CompileError{
				Field:   "persist." + f.name,
				Message: "must be a string",
				Pos:     fv.Pos(),
			}
		}
		*f.dst = s
	}
	return spec, nil
}

// unquote strips the quotes CUE keeps on non-identifier labels.
func unquote(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}
