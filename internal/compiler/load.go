package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileFiles compiles the stores declared across the given CUE files.
// The files are unified into one value, so a store may be split across
// files. Stores are returned in declaration order.
func CompileFiles(paths ...string) ([]*StoreSpec, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no spec files given")
	}

	ctx := cuecontext.New()
	var unified cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			unified = v
		} else {
			unified = unified.Unify(v)
		}
	}
	if err := unified.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileStores(unified)
}

// CompileStores compiles every store under the top-level "store" struct
// of v. Stops at the first error.
func CompileStores(v cue.Value) ([]*StoreSpec, error) {
	storesVal := v.LookupPath(cue.ParsePath("store"))
	if !storesVal.Exists() {
		return nil, &CompileError{
			Field:   "store",
			Message: "no stores declared",
			Pos:     v.Pos(),
		}
	}

	iter, err := storesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*StoreSpec
	for iter.Next() {
		spec, err := CompileStore(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
