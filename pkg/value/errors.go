package value

import (
	"errors"
	"fmt"
)

// RuntimeErrorKind discriminates parlance's runtime error domain
// (spec.md §7). It's defined here, alongside Value, because most of
// its variants originate from Value's own coercion and property
// methods; pkg/runtime reuses this type for the handful of kinds that
// originate from the stack machine itself (StackIndexOutOfRange,
// TooFewOperands, and so on).
type RuntimeErrorKind int

const (
	StackIndexOutOfRange RuntimeErrorKind = iota
	TooFewOperands
	TooManyOperands
	ZeroDivision
	UnknownMessage
	UnknownInstruction
	InvalidPutDestination
	StackNotCleanedUpAtEndOfCall
	UnknownProperty
	ReadOnlyProperty
	ObjectDoesNotExist
	ExpectedIntegerHere
	ExpectedNumberHere
	ExpectedBooleanHere

	// The four "attempt to access a bookkeeping cell as a user value"
	// kinds, one per coercion function (spec.md §9).
	BookkeepingAccessedAsString
	BookkeepingAccessedAsInteger
	BookkeepingAccessedAsDouble
	BookkeepingAccessedAsBoolean
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case StackIndexOutOfRange:
		return "stack index out of range"
	case TooFewOperands:
		return "too few operands"
	case TooManyOperands:
		return "too many operands"
	case ZeroDivision:
		return "division by zero"
	case UnknownMessage:
		return "unknown message"
	case UnknownInstruction:
		return "unknown instruction"
	case InvalidPutDestination:
		return "invalid put destination"
	case StackNotCleanedUpAtEndOfCall:
		return "stack not cleaned up at end of call"
	case UnknownProperty:
		return "unknown property"
	case ReadOnlyProperty:
		return "read-only property"
	case ObjectDoesNotExist:
		return "object does not exist"
	case ExpectedIntegerHere:
		return "expected integer here"
	case ExpectedNumberHere:
		return "expected number here"
	case ExpectedBooleanHere:
		return "expected boolean here"
	case BookkeepingAccessedAsString, BookkeepingAccessedAsInteger,
		BookkeepingAccessedAsDouble, BookkeepingAccessedAsBoolean:
		return "attempt to access VM bookkeeping cell as a value"
	default:
		return "runtime error"
	}
}

// RuntimeError is parlance's runtime error domain. MessageName and
// IsCommand are only populated for UnknownMessage, so a host can
// distinguish "no such command" from "no such function" (spec.md §9:
// "unknown-message errors must report the flag").
type RuntimeError struct {
	Kind        RuntimeErrorKind
	MessageName string
	IsCommand   bool
	Detail      string
}

func (e *RuntimeError) Error() string {
	switch e.Kind {
	case UnknownMessage:
		ns := "function"
		if e.IsCommand {
			ns = "command"
		}
		return fmt.Sprintf("unknown %s: %s", ns, e.MessageName)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
		}
		return e.Kind.String()
	}
}

// IsRuntimeErrorKind reports whether err is (or wraps, per errors.As) a
// *RuntimeError of the given kind.
func IsRuntimeErrorKind(err error, kind RuntimeErrorKind) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Kind == kind
}
