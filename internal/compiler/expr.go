package compiler

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/gudam/internal/store"
	"github.com/roach88/gudam/internal/value"
)

// argsVar names the action argument list inside expressions.
const argsVar = "args"

// sampleEnv builds the type-checking environment for a store's expressions
// from its initial state.
func sampleEnv(state value.Record, withArgs bool) map[string]any {
	env := state.Native()
	if withArgs {
		env[argsVar] = []any{}
	}
	return env
}

func compileExpr(src string, env map[string]any) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(env))
}

// runExpr evaluates prog against the instance's current fields and converts
// the result back into a state value.
func runExpr(prog *vm.Program, s *store.Instance, args []any) (value.Value, error) {
	env := s.Snapshot().Native()
	if args != nil {
		env[argsVar] = nativeArgs(args)
	}

	out, err := expr.Run(prog, env)
	if err != nil {
		return nil, err
	}
	return value.FromAny(out)
}

func nativeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if v, ok := a.(value.Value); ok {
			out[i] = value.ToNative(v)
			continue
		}
		out[i] = a
	}
	return out
}

func getterFunc(name, src string, prog *vm.Program) store.GetterFunc {
	return func(s *store.Instance) (any, error) {
		v, err := runExpr(prog, s, nil)
		if err != nil {
			return nil, fmt.Errorf("getter %s (%s): %w", name, src, err)
		}
		return v, nil
	}
}

type assignment struct {
	field string
	src   string
	prog  *vm.Program
}

// actionFunc evaluates every assignment against the pre-action state, then
// writes the results in field order. Each write notifies.
func actionFunc(assigns []assignment) store.ActionFunc {
	return func(s *store.Instance, args ...any) (any, error) {
		if args == nil {
			args = []any{}
		}

		results := make([]value.Value, len(assigns))
		for i, a := range assigns {
			v, err := runExpr(a.prog, s, args)
			if err != nil {
				return nil, fmt.Errorf("assign %s (%s): %w", a.field, a.src, err)
			}
			results[i] = v
		}

		for i, a := range assigns {
			if err := s.Set(a.field, results[i]); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}
