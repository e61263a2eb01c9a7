package runtime

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// StackFrame names one handler call in progress at the moment an
// error propagated through it: a handler name and the calling
// instruction's PC, captured per Call/Return frame.
type StackFrame struct {
	Name string
	PC   int
}

// TracedError decorates the leaf error raised inside a call — usually
// a *value.RuntimeError — with the call stack active at the moment it
// first surfaced. step attaches the trace exactly once, at the
// innermost frame; it is never rewrapped as the error continues to
// propagate up through Return.
type TracedError struct {
	cause error
	Trace []StackFrame
}

func (e *TracedError) Error() string {
	var b strings.Builder
	b.WriteString(e.cause.Error())
	if len(e.Trace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Trace) - 1; i >= 0; i-- {
			f := e.Trace[i]
			fmt.Fprintf(&b, "\n  at %s [pc %d]", f.Name, f.PC)
		}
	}
	return b.String()
}

// Unwrap lets errors.As/errors.Is and value.IsRuntimeErrorKind's
// callers see through the trace to the underlying leaf error.
func (e *TracedError) Unwrap() error { return e.cause }

func newTracedError(cause error, frames []StackFrame) error {
	var traced *TracedError
	if errors.As(cause, &traced) {
		return cause
	}
	trace := make([]StackFrame, len(frames))
	copy(trace, frames)
	return &TracedError{cause: cause, Trace: trace}
}
