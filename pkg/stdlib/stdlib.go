// Package stdlib registers the illustrative builtin commands and
// functions spec.md §4.6 calls for onto a *runtime.RunContext: enough
// of a standard library to run the end-to-end scenarios in spec.md §8,
// not an attempt at a complete one (spec.md §1's Non-goals).
package stdlib

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ahobson/parlance/pkg/object"
	"github.com/ahobson/parlance/pkg/runtime"
	"github.com/ahobson/parlance/pkg/value"
)

// equalityTolerance is the `=`/`≠` double-comparison slop spec.md §4.6
// names explicitly.
const equalityTolerance = 1e-5

// Register installs every builtin this package knows onto ctx. output
// writes through out, so a host (a test, the REPL, a CLI subcommand)
// controls where command output lands rather than stdlib reaching for
// os.Stdout itself. The returned Registry owns the create/object/
// weakObject object table; a host only needs it to inspect state in
// tests.
func Register(ctx *runtime.RunContext, out io.Writer) *Registry {
	registerOutput(ctx, out)
	registerContainerCommands(ctx)
	registerArithmetic(ctx)
	registerDivide(ctx)
	registerComparisons(ctx)
	ctx.RegisterFunction("=", equalityBuiltin(false))
	ctx.RegisterFunction("≠", equalityBuiltin(true))
	ctx.RegisterFunction("&", concatBuiltin(false))
	ctx.RegisterFunction("&&", concatBuiltin(true))
	ctx.RegisterFunction("length", lengthBuiltin)

	reg := NewRegistry()
	reg.register(ctx)
	return reg
}

func registerOutput(ctx *runtime.RunContext, out io.Writer) {
	ctx.RegisterCommand("output", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) == 0 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		s, err := args[0].AsString(ctx.Stack)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", s)
		return err
	})
}

// containerIndex resolves a container argument (spec.md §4.6: "a Value
// whose reference_index is defined") to the stack slot it mutates
// through, failing InvalidPutDestination on anything else.
func containerIndex(v value.Value, stack []value.Value) (int, error) {
	idx, ok, err := v.ReferenceIndex(stack)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &value.RuntimeError{Kind: value.InvalidPutDestination}
	}
	return idx, nil
}

// registerContainerCommands wires `put`/`add`/`subtract`. All three
// templates parse as (expression, container) — see SPEC_FULL.md §4 —
// so args[0] is always the right-hand value and args[1] the
// destination.
func registerContainerCommands(ctx *runtime.RunContext) {
	ctx.RegisterCommand("put", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) < 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		idx, err := containerIndex(args[1], ctx.Stack)
		if err != nil {
			return err
		}
		ctx.Stack[idx] = args[0]
		return nil
	})
	ctx.RegisterCommand("add", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) < 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		idx, err := containerIndex(args[1], ctx.Stack)
		if err != nil {
			return err
		}
		sum, err := numericBinary(ctx.Stack[idx], args[0], ctx.Stack,
			func(a, b int64) int64 { return a + b },
			func(a, b float64) float64 { return a + b })
		if err != nil {
			return err
		}
		ctx.Stack[idx] = sum
		return nil
	})
	ctx.RegisterCommand("subtract", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) < 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		idx, err := containerIndex(args[1], ctx.Stack)
		if err != nil {
			return err
		}
		diff, err := numericBinary(ctx.Stack[idx], args[0], ctx.Stack,
			func(a, b int64) int64 { return a - b },
			func(a, b float64) float64 { return a - b })
		if err != nil {
			return err
		}
		ctx.Stack[idx] = diff
		return nil
	})
}

// numericOperand resolves v to a number, preferring the integer
// coercion so whole-number doubles and decimal strings still take the
// integer arithmetic path; only falls back to the double coercion (and
// its error) when AsInteger fails.
func numericOperand(v value.Value, stack []value.Value) (i int64, isInt bool, f float64, err error) {
	if n, ierr := v.AsInteger(stack); ierr == nil {
		return n, true, float64(n), nil
	}
	f, err = v.AsDouble(stack)
	return 0, false, f, err
}

func numericBinary(a, b value.Value, stack []value.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (value.Value, error) {
	ai, aInt, af, err := numericOperand(a, stack)
	if err != nil {
		return value.Value{}, err
	}
	bi, bInt, bf, err := numericOperand(b, stack)
	if err != nil {
		return value.Value{}, err
	}
	if aInt && bInt {
		return value.NewInteger(intOp(ai, bi)), nil
	}
	return value.NewDouble(floatOp(af, bf)), nil
}

// registerArithmetic wires `+`, `-`, `*` — everything but `/`, which
// needs its own ZeroDivision check (see registerDivide).
func registerArithmetic(ctx *runtime.RunContext) {
	ops := map[string]struct {
		intOp   func(a, b int64) int64
		floatOp func(a, b float64) float64
	}{
		"+": {func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }},
		"-": {func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }},
		"*": {func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }},
	}
	for name, fns := range ops {
		fns := fns
		ctx.RegisterFunction(name, func(args []value.Value, ctx *runtime.RunContext) error {
			if len(args) != 2 {
				return &value.RuntimeError{Kind: value.TooFewOperands}
			}
			result, err := numericBinary(args[0], args[1], ctx.Stack, fns.intOp, fns.floatOp)
			if err != nil {
				return err
			}
			ctx.Stack = append(ctx.Stack, result)
			return nil
		})
	}
}

// registerDivide keeps `/` as true division — no reproduction of the
// divide-that-actually-multiplies bug spec.md §9 notes as historical —
// falling back to an integer result only when both operands are
// integers and the division is exact.
func registerDivide(ctx *runtime.RunContext) {
	ctx.RegisterFunction("/", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) != 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		ai, aInt, af, err := numericOperand(args[0], ctx.Stack)
		if err != nil {
			return err
		}
		bi, bInt, bf, err := numericOperand(args[1], ctx.Stack)
		if err != nil {
			return err
		}
		if bf == 0 {
			return &value.RuntimeError{Kind: value.ZeroDivision}
		}
		if aInt && bInt && ai%bi == 0 {
			ctx.Stack = append(ctx.Stack, value.NewInteger(ai/bi))
		} else {
			ctx.Stack = append(ctx.Stack, value.NewDouble(af/bf))
		}
		return nil
	})
}

func registerComparisons(ctx *runtime.RunContext) {
	ops := map[string]struct {
		intCmp   func(a, b int64) bool
		floatCmp func(a, b float64) bool
	}{
		"<":  {func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b }},
		">":  {func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b }},
		"<=": {func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b }},
		">=": {func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b }},
	}
	for name, fns := range ops {
		fns := fns
		ctx.RegisterFunction(name, func(args []value.Value, ctx *runtime.RunContext) error {
			if len(args) != 2 {
				return &value.RuntimeError{Kind: value.TooFewOperands}
			}
			ai, aInt, af, err := numericOperand(args[0], ctx.Stack)
			if err != nil {
				return err
			}
			bi, bInt, bf, err := numericOperand(args[1], ctx.Stack)
			if err != nil {
				return err
			}
			var result bool
			if aInt && bInt {
				result = fns.intCmp(ai, bi)
			} else {
				result = fns.floatCmp(af, bf)
			}
			ctx.Stack = append(ctx.Stack, value.NewBoolean(result))
			return nil
		})
	}
}

// equalityBuiltin implements spec.md §4.6's three-way cascade: integer
// comparison if both sides coerce, else double comparison within
// equalityTolerance, else string comparison.
func equalityBuiltin(negate bool) runtime.Builtin {
	return func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) != 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		eq, err := equalsCascade(args[0], args[1], ctx.Stack)
		if err != nil {
			return err
		}
		if negate {
			eq = !eq
		}
		ctx.Stack = append(ctx.Stack, value.NewBoolean(eq))
		return nil
	}
}

func equalsCascade(lhs, rhs value.Value, stack []value.Value) (bool, error) {
	// AsInteger/AsDouble read a malformed string as 0, not as a failure.
	numeric := func(v value.Value, asInt bool) bool {
		if idx, ok, err := v.ReferenceIndex(stack); err == nil && ok {
			v = stack[idx]
		}
		s, _ := v.AsString(stack)
		_, ierr := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		_, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v.Kind() != value.KindString || (asInt && ierr == nil) || (!asInt && ferr == nil)
	}
	li, lierr := lhs.AsInteger(stack)
	ri, rierr := rhs.AsInteger(stack)
	if lierr == nil && rierr == nil && numeric(lhs, true) && numeric(rhs, true) {
		return li == ri, nil
	}
	lf, lferr := lhs.AsDouble(stack)
	rf, rferr := rhs.AsDouble(stack)
	if lferr == nil && rferr == nil && numeric(lhs, false) && numeric(rhs, false) {
		return math.Abs(lf-rf) < equalityTolerance, nil
	}
	ls, err := lhs.AsString(stack)
	if err != nil {
		return false, err
	}
	rs, err := rhs.AsString(stack)
	if err != nil {
		return false, err
	}
	return ls == rs, nil
}

// concatBuiltin implements `&` (bare concatenation) and `&&`
// (concatenation with an inserted space), per spec.md §4.6.
func concatBuiltin(space bool) runtime.Builtin {
	return func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) != 2 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		ls, err := args[0].AsString(ctx.Stack)
		if err != nil {
			return err
		}
		rs, err := args[1].AsString(ctx.Stack)
		if err != nil {
			return err
		}
		sep := ""
		if space {
			sep = " "
		}
		ctx.Stack = append(ctx.Stack, value.NewString(ls+sep+rs))
		return nil
	}
}

// lengthBuiltin exposes `length` as an ordinary function call
// (`length(x)`) alongside the `length of x` property spec.md §4.1
// already gives every Value via PropertyValue.
func lengthBuiltin(args []value.Value, ctx *runtime.RunContext) error {
	if len(args) == 0 {
		return &value.RuntimeError{Kind: value.TooFewOperands}
	}
	s, err := args[0].AsString(ctx.Stack)
	if err != nil {
		return err
	}
	ctx.Stack = append(ctx.Stack, value.NewInteger(int64(len(s))))
	return nil
}

// Registry backs `create`/`object`/`weakObject`: a name-keyed table of
// strong object references, demonstrating the strong/weak distinction
// spec.md §5/§6 describes — overwriting a name drops the previous
// strong holder, so a weak Value obtained before the overwrite goes
// stale and starts failing ObjectDoesNotExist.
type Registry struct {
	objects map[string]*value.Ref
}

// NewRegistry returns an empty object table.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*value.Ref)}
}

func (reg *Registry) register(ctx *runtime.RunContext) {
	ctx.RegisterCommand("create", func(args []value.Value, ctx *runtime.RunContext) error {
		if len(args) == 0 {
			return &value.RuntimeError{Kind: value.TooFewOperands}
		}
		name, err := args[0].AsString(ctx.Stack)
		if err != nil {
			return err
		}
		bag := object.NewPropertyBag()
		if len(args) > 1 {
			if err := bag.SetProperty("value", args[1]); err != nil {
				return err
			}
		}
		_, ref := object.StrongRef(bag)
		reg.objects[name] = ref
		return nil
	})

	ctx.RegisterFunction("object", func(args []value.Value, ctx *runtime.RunContext) error {
		ref, err := reg.lookup(args, ctx.Stack)
		if err != nil {
			return err
		}
		ctx.Stack = append(ctx.Stack, value.NewNativeObjectRef(ref))
		return nil
	})
	ctx.RegisterFunction("weakobject", func(args []value.Value, ctx *runtime.RunContext) error {
		ref, err := reg.lookup(args, ctx.Stack)
		if err != nil {
			return err
		}
		ctx.Stack = append(ctx.Stack, object.Weak(ref))
		return nil
	})
}

func (reg *Registry) lookup(args []value.Value, stack []value.Value) (*value.Ref, error) {
	if len(args) == 0 {
		return nil, &value.RuntimeError{Kind: value.TooFewOperands}
	}
	name, err := args[0].AsString(stack)
	if err != nil {
		return nil, err
	}
	ref, ok := reg.objects[name]
	if !ok {
		return nil, &value.RuntimeError{Kind: value.ObjectDoesNotExist, Detail: name}
	}
	return ref, nil
}

// Forget drops the strong reference held for name, if any — the hook
// a test uses to demonstrate a weak Value going stale. The weak Value
// reports ObjectDoesNotExist only once the garbage collector has
// reclaimed the object, not immediately after Forget.
func (reg *Registry) Forget(name string) {
	delete(reg.objects, name)
}
