package stdlib

import (
	"bytes"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/runtime"
	"github.com/ahobson/parlance/pkg/value"
)

func newCtx(t *testing.T) (*runtime.RunContext, *bytes.Buffer, *Registry) {
	t.Helper()
	ctx := runtime.NewRunContext(bytecode.NewScript())
	var buf bytes.Buffer
	reg := Register(ctx, &buf)
	return ctx, &buf, reg
}

func call(t *testing.T, ctx *runtime.RunContext, isCommand bool, name string, args ...value.Value) value.Value {
	t.Helper()
	var fn runtime.Builtin
	var ok bool
	if isCommand {
		fn, ok = ctx.Commands[name]
	} else {
		fn, ok = ctx.Functions[name]
	}
	require.True(t, ok, "no builtin registered for %q", name)
	before := len(ctx.Stack)
	require.NoError(t, fn(args, ctx))
	if isCommand {
		return value.Value{}
	}
	require.Equal(t, before+1, len(ctx.Stack))
	return ctx.Stack[len(ctx.Stack)-1]
}

func TestOutputWritesValueAndNewline(t *testing.T) {
	ctx, buf, _ := newCtx(t)
	call(t, ctx, true, "output", value.NewString("before"))
	assert.Equal(t, "before\n", buf.String())
}

func TestArithmeticPrefersIntegerPath(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "+", value.NewInteger(1), value.NewInteger(2))
	assert.Equal(t, value.KindInteger, result.Kind())
	s, _ := result.AsString(ctx.Stack)
	assert.Equal(t, "3", s)
}

func TestArithmeticFallsBackToDouble(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "+", value.NewDouble(1.5), value.NewInteger(2))
	assert.Equal(t, value.KindDouble, result.Kind())
	s, _ := result.AsString(ctx.Stack)
	assert.Equal(t, "3.5", s)
}

func TestDivideFailsZeroDivision(t *testing.T) {
	ctx, _, _ := newCtx(t)
	fn := ctx.Functions["/"]
	err := fn([]value.Value{value.NewInteger(1), value.NewInteger(0)}, ctx)
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.ZeroDivision))
}

func TestDivideExactIntegersStayInteger(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "/", value.NewInteger(6), value.NewInteger(3))
	assert.Equal(t, value.KindInteger, result.Kind())
}

func TestDivideInexactFallsBackToDouble(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "/", value.NewInteger(7), value.NewInteger(2))
	assert.Equal(t, value.KindDouble, result.Kind())
}

func TestEqualityCascadeFallsBackToString(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "=", value.NewString("abc"), value.NewString("abc"))
	assert.Equal(t, value.NewBoolean(true), result)

	notEqual := call(t, ctx, false, "≠", value.NewString("abc"), value.NewString("xyz"))
	assert.Equal(t, value.NewBoolean(true), notEqual)
}

func TestEqualityCascadeDoubleTolerance(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "=", value.NewDouble(1.0000001), value.NewDouble(1.0))
	assert.Equal(t, value.NewBoolean(true), result)
}

func TestConcatWithoutSpace(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "&", value.NewString("'"), value.NewString("yay!"))
	s, _ := result.AsString(ctx.Stack)
	assert.Equal(t, "'yay!", s)
}

func TestConcatWithSpaceInsertsOneSpace(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "&&", value.NewString("looping"), value.NewInteger(5))
	s, _ := result.AsString(ctx.Stack)
	assert.Equal(t, "looping 5", s)
}

func TestLengthFunction(t *testing.T) {
	ctx, _, _ := newCtx(t)
	result := call(t, ctx, false, "length", value.NewString("Four"))
	assert.Equal(t, value.NewInteger(4), result)
}

func TestPutWritesThroughReference(t *testing.T) {
	ctx, _, _ := newCtx(t)
	ctx.Stack = append(ctx.Stack, value.Unset())
	call(t, ctx, true, "put", value.NewInteger(5), value.NewReference(0))
	assert.Equal(t, value.NewInteger(5), ctx.Stack[0])
}

func TestPutRejectsNonReferenceDestination(t *testing.T) {
	ctx, _, _ := newCtx(t)
	fn := ctx.Commands["put"]
	err := fn([]value.Value{value.NewInteger(5), value.NewInteger(9)}, ctx)
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.InvalidPutDestination))
}

func TestAddMutatesContainerInPlace(t *testing.T) {
	ctx, _, _ := newCtx(t)
	ctx.Stack = append(ctx.Stack, value.NewInteger(5))
	call(t, ctx, true, "add", value.NewInteger(1), value.NewReference(0))
	assert.Equal(t, value.NewInteger(6), ctx.Stack[0])
}

func TestSubtractMutatesContainerInPlace(t *testing.T) {
	ctx, _, _ := newCtx(t)
	ctx.Stack = append(ctx.Stack, value.NewInteger(5))
	call(t, ctx, true, "subtract", value.NewInteger(1), value.NewReference(0))
	assert.Equal(t, value.NewInteger(4), ctx.Stack[0])
}

func TestCreateAndObjectRoundTrip(t *testing.T) {
	ctx, _, _ := newCtx(t)
	call(t, ctx, true, "create", value.NewString("widget"), value.NewInteger(42))

	obj := call(t, ctx, false, "object", value.NewString("widget"))
	require.Equal(t, value.KindNativeObject, obj.Kind())
	v, err := obj.PropertyValue("value", ctx.Stack)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(42), v)
}

// TestWeakObjectGoesStaleAfterForget demonstrates spec.md §5's
// "ObjectDoesNotExist on a stale weak reference": once Registry drops
// its strong holder, a weak.Pointer only reports the target gone after
// the runtime actually reclaims it, so the test forces a collection
// rather than asserting staleness immediately after Forget.
func TestWeakObjectGoesStaleAfterForget(t *testing.T) {
	ctx, _, reg := newCtx(t)
	call(t, ctx, true, "create", value.NewString("widget"))

	weak := call(t, ctx, false, "weakobject", value.NewString("widget"))
	require.Equal(t, value.KindWeakNativeObject, weak.Kind())

	reg.Forget("widget")
	goruntime.GC()
	goruntime.GC()

	_, err := weak.PropertyValue("id", ctx.Stack)
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.ObjectDoesNotExist))
}

func TestObjectLookupMissingFailsObjectDoesNotExist(t *testing.T) {
	ctx, _, _ := newCtx(t)
	fn := ctx.Functions["object"]
	err := fn([]value.Value{value.NewString("nope")}, ctx)
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.ObjectDoesNotExist))
}
