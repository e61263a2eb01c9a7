// Package value implements the tagged-variant Value type that is both
// parlance's only runtime value representation and the cell type of
// the runtime stack (spec.md §3). A handful of the variants
// (InstructionIndex, StackIndex, ParameterCount) exist purely as VM
// frame bookkeeping, never as values a script can produce — their
// accessors fail loudly rather than silently coercing, so a mistaken
// script expression that stumbles onto a bookkeeping cell gets a
// distinct, internal RuntimeErrorKind instead of garbage (spec.md §9).
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"weak"
)

// Kind discriminates the Value variants of spec.md §3.
type Kind int

const (
	KindUnset Kind = iota
	KindEmpty
	KindString
	KindInteger
	KindDouble
	KindBoolean
	KindReference
	KindInstructionIndex
	KindStackIndex
	KindParameterCount
	KindNativeObject
	KindWeakNativeObject
)

func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindReference:
		return "reference"
	case KindInstructionIndex:
		return "instruction index"
	case KindStackIndex:
		return "stack index"
	case KindParameterCount:
		return "parameter count"
	case KindNativeObject:
		return "native object"
	case KindWeakNativeObject:
		return "weak native object"
	default:
		return "unknown"
	}
}

// NativeObject is the narrow capability surface a host-owned object
// exposes to parlance property access (spec.md §6). The default
// `id` property is read-only; everything else is up to the host.
type NativeObject interface {
	ID() int64
	GetProperty(name string) (Value, error)
	SetProperty(name string, v Value) error
}

// Ref is a strong box around a NativeObject. A Value's NativeObject
// variant holds a *Ref directly, keeping the object reachable for as
// long as the Value is; the WeakNativeObject variant holds a
// weak.Pointer[Ref] (stdlib `weak`, Go 1.24+) obtained from the same
// *Ref, so it only resolves for as long as *some* strong holder —
// typically a host-side object table — keeps that *Ref reachable.
// Once the host drops its strong holder and the Ref is collected, the
// weak Value resolves to ObjectDoesNotExist (spec.md §5).
type Ref struct {
	Object NativeObject
}

// NewRef boxes obj for use as a strong or weak Value.
func NewRef(obj NativeObject) *Ref {
	return &Ref{Object: obj}
}

// Value is parlance's tagged-variant runtime cell.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	ref  *Ref
	weak weak.Pointer[Ref]
}

func Unset() Value                 { return Value{kind: KindUnset} }
func Empty() Value                 { return Value{kind: KindEmpty} }
func NewString(s string) Value     { if s == "" { return Empty() }; return Value{kind: KindString, str: s} }
func NewInteger(i int64) Value     { return Value{kind: KindInteger, i: i} }
func NewDouble(f float64) Value    { return Value{kind: KindDouble, f: f} }
func NewBoolean(b bool) Value      { return Value{kind: KindBoolean, b: b} }
func NewReference(idx int) Value   { return Value{kind: KindReference, i: int64(idx)} }
func NewInstructionIndex(i int) Value { return Value{kind: KindInstructionIndex, i: int64(i)} }
func NewStackIndex(i int) Value    { return Value{kind: KindStackIndex, i: int64(i)} }
func NewParameterCount(n int) Value { return Value{kind: KindParameterCount, i: int64(n)} }

// NewNativeObject returns a strong Value wrapping obj.
func NewNativeObject(obj NativeObject) Value {
	return Value{kind: KindNativeObject, ref: NewRef(obj)}
}

// NewNativeObjectRef returns a strong Value sharing an existing Ref —
// used when the host wants both a strong Value and, separately, a
// weak Value observing the same object.
func NewNativeObjectRef(ref *Ref) Value {
	return Value{kind: KindNativeObject, ref: ref}
}

// NewWeakNativeObject returns a Value that observes ref without
// keeping it alive.
func NewWeakNativeObject(ref *Ref) Value {
	return Value{kind: KindWeakNativeObject, weak: weak.Make(ref)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUnset() bool     { return v.kind == KindUnset }
func (v Value) IsReference() bool { return v.kind == KindReference }

// RawInt exposes the integer payload for Reference/InstructionIndex/
// StackIndex/ParameterCount variants — VM frame code only, never
// reachable from script-level value access.
func (v Value) RawInt() int64 { return v.i }

// resolveNativeObject dereferences the Strong or Weak NativeObject
// variant, failing ObjectDoesNotExist if a weak reference's target
// has been collected.
func (v Value) resolveNativeObject() (NativeObject, error) {
	switch v.kind {
	case KindNativeObject:
		return v.ref.Object, nil
	case KindWeakNativeObject:
		ref := v.weak.Value()
		if ref == nil {
			return nil, &RuntimeError{Kind: ObjectDoesNotExist}
		}
		return ref.Object, nil
	default:
		return nil, &RuntimeError{Kind: ObjectDoesNotExist}
	}
}

// maxReferenceChainDepth bounds ReferenceIndex's walk. The parser
// never produces a cycle, but a native object's get_property could in
// principle hand back a Reference pointing into a cycle; this is the
// guard spec.md §9 calls for.
const maxReferenceChainDepth = 1000

// ReferenceIndex walks a possible chain of References and returns the
// ultimate stack index they resolve to, or ok=false if v is not a
// Reference at all.
func (v Value) ReferenceIndex(stack []Value) (int, bool, error) {
	if v.kind != KindReference {
		return 0, false, nil
	}
	idx := int(v.i)
	for depth := 0; ; depth++ {
		if depth >= maxReferenceChainDepth {
			return 0, false, &RuntimeError{Kind: StackIndexOutOfRange}
		}
		if idx < 0 || idx >= len(stack) {
			return 0, false, &RuntimeError{Kind: StackIndexOutOfRange}
		}
		next := stack[idx]
		if next.kind != KindReference {
			return idx, true, nil
		}
		idx = int(next.i)
	}
}

// resolve follows a Reference to its target Value, or returns v
// itself unchanged.
func (v Value) resolve(stack []Value) (Value, error) {
	idx, ok, err := v.ReferenceIndex(stack)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return v, nil
	}
	return stack[idx], nil
}

// AsString coerces v to its decimal/verbatim string form.
func (v Value) AsString(stack []Value) (string, error) {
	switch v.kind {
	case KindUnset, KindEmpty:
		return "", nil
	case KindString:
		return v.str, nil
	case KindInteger:
		return strconv.FormatInt(v.i, 10), nil
	case KindDouble:
		return formatDouble(v.f), nil
	case KindBoolean:
		if v.b {
			return "true", nil
		}
		return "false", nil
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return "", err
		}
		return target.AsString(stack)
	default:
		return "", &RuntimeError{Kind: BookkeepingAccessedAsString}
	}
}

// formatDouble trims a double to integer form when it is exactly
// integral, per spec.md §3's as_string rule.
func formatDouble(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AsInteger coerces v to an integer.
func (v Value) AsInteger(stack []Value) (int64, error) {
	switch v.kind {
	case KindUnset, KindEmpty:
		return 0, &RuntimeError{Kind: ExpectedIntegerHere}
	case KindInteger:
		return v.i, nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		if err != nil {
			return 0, nil // "parse or 0 on malformed", per spec.md §3
		}
		return n, nil
	case KindDouble:
		if v.f != math.Trunc(v.f) {
			return 0, &RuntimeError{Kind: ExpectedIntegerHere}
		}
		return int64(v.f), nil
	case KindBoolean:
		return 0, &RuntimeError{Kind: ExpectedIntegerHere}
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return 0, err
		}
		return target.AsInteger(stack)
	default:
		return 0, &RuntimeError{Kind: BookkeepingAccessedAsInteger}
	}
}

// AsDouble coerces v to a double.
func (v Value) AsDouble(stack []Value) (float64, error) {
	switch v.kind {
	case KindUnset:
		return 0, &RuntimeError{Kind: ExpectedNumberHere}
	case KindEmpty:
		return 0.0, nil
	case KindInteger:
		return float64(v.i), nil
	case KindDouble:
		return v.f, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0.0, nil // "parse or 0.0 on malformed"
		}
		return f, nil
	case KindBoolean:
		return 0, &RuntimeError{Kind: ExpectedNumberHere}
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return 0, err
		}
		return target.AsDouble(stack)
	default:
		return 0, &RuntimeError{Kind: BookkeepingAccessedAsDouble}
	}
}

// AsBoolean coerces v to a boolean. Only Boolean, a case-insensitive
// "true"/"false" string, or a Reference resolving to one of those,
// succeeds.
func (v Value) AsBoolean(stack []Value) (bool, error) {
	switch v.kind {
	case KindBoolean:
		return v.b, nil
	case KindString:
		switch strings.ToLower(v.str) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return false, &RuntimeError{Kind: ExpectedBooleanHere}
		}
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return false, err
		}
		return target.AsBoolean(stack)
	case KindUnset, KindEmpty, KindInteger, KindDouble:
		return false, &RuntimeError{Kind: ExpectedBooleanHere}
	default:
		return false, &RuntimeError{Kind: BookkeepingAccessedAsBoolean}
	}
}

// PropertyValue implements spec.md §4.1's property_value: native
// objects delegate to their GetProperty; otherwise the only readable
// property is the read-only "length" of the value's string form.
func (v Value) PropertyValue(name string, stack []Value) (Value, error) {
	switch v.kind {
	case KindNativeObject, KindWeakNativeObject:
		obj, err := v.resolveNativeObject()
		if err != nil {
			return Value{}, err
		}
		return obj.GetProperty(name)
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return Value{}, err
		}
		return target.PropertyValue(name, stack)
	default:
		if name == "length" {
			s, err := v.AsString(stack)
			if err != nil {
				return Value{}, err
			}
			return NewInteger(int64(len(s))), nil
		}
		return Value{}, &RuntimeError{Kind: UnknownProperty}
	}
}

// SetProperty mirrors PropertyValue for writes: native delegates,
// "length" is ReadOnlyProperty, everything else is UnknownProperty.
func (v Value) SetProperty(name string, newValue Value, stack []Value) error {
	switch v.kind {
	case KindNativeObject, KindWeakNativeObject:
		obj, err := v.resolveNativeObject()
		if err != nil {
			return err
		}
		return obj.SetProperty(name, newValue)
	case KindReference:
		target, err := v.resolve(stack)
		if err != nil {
			return err
		}
		return target.SetProperty(name, newValue, stack)
	default:
		if name == "length" {
			return &RuntimeError{Kind: ReadOnlyProperty}
		}
		return &RuntimeError{Kind: UnknownProperty}
	}
}

// Equal is structural equality, case-sensitive on string content
// (spec.md §4.1). It does not perform the numeric-then-string
// coercion cascade that the "=" operator builtin applies — that
// cascade lives in pkg/stdlib, one layer up, where it has access to
// the stack for Reference resolution on both sides.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUnset, KindEmpty:
		return true
	case KindString:
		return v.str == other.str
	case KindInteger, KindReference, KindInstructionIndex, KindStackIndex, KindParameterCount:
		return v.i == other.i
	case KindDouble:
		return v.f == other.f
	case KindBoolean:
		return v.b == other.b
	case KindNativeObject:
		return v.ref == other.ref
	case KindWeakNativeObject:
		return v.weak == other.weak
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindUnset:
		return "<unset>"
	case KindEmpty:
		return "\"\""
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return formatDouble(v.f)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindReference:
		return fmt.Sprintf("<ref %d>", v.i)
	default:
		return fmt.Sprintf("<%s %d>", v.kind, v.i)
	}
}

