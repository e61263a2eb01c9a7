package lexer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ahobson/parlance/pkg/token"
)

// ParseErrorKind discriminates the ways a Cursor's Expect* primitives
// can fail, per spec.md §7.
type ParseErrorKind int

const (
	ExpectedIdentifier ParseErrorKind = iota
	ExpectedOperator
	ExpectedOperandAfterOperator
	ExpectedInteger
	ExpectedNumber
	ExpectedString
	ExpectedValue
	ExpectedExpression
	ExpectedEndOfLine
	ExpectedFunctionName
)

func (k ParseErrorKind) String() string {
	switch k {
	case ExpectedIdentifier:
		return "expected identifier"
	case ExpectedOperator:
		return "expected operator"
	case ExpectedOperandAfterOperator:
		return "expected operand after operator"
	case ExpectedInteger:
		return "expected integer"
	case ExpectedNumber:
		return "expected number"
	case ExpectedString:
		return "expected string"
	case ExpectedValue:
		return "expected value"
	case ExpectedExpression:
		return "expected expression"
	case ExpectedEndOfLine:
		return "expected end of line"
	case ExpectedFunctionName:
		return "expected function name"
	default:
		return "parse error"
	}
}

// ParseError carries the offending token's location alongside the
// failure kind so a host can point a user at the exact source
// position. Parsing never recovers from one of these (spec.md §1
// Non-goals) — the first ParseError aborts parsing entirely.
type ParseError struct {
	Kind     ParseErrorKind
	Expected string // filled in for ExpectedIdentifier, naming the word(s) wanted
	Got      token.Token
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s: %s, got %s at %s", e.Kind, e.Expected, e.Got.Kind, e.Got.Pos)
	}
	return fmt.Sprintf("%s: got %s %q at %s", e.Kind, e.Got.Kind, e.Got.Text, e.Got.Pos)
}

// NewParseError wraps a ParseError with github.com/pkg/errors so a
// host embedding can recover the original *ParseError via
// errors.Cause while still getting a capturable stack on first
// construction.
func NewParseError(kind ParseErrorKind, got token.Token, expected string) error {
	return errors.WithStack(&ParseError{Kind: kind, Expected: expected, Got: got})
}
