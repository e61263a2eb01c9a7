// Package bytecode defines the closed instruction set the parser
// emits and the runtime executes (spec.md §3), plus the Script
// container that ties a flat instruction vector to per-handler frame
// descriptors.
//
// Architecture:
//
// parlance's bytecode is a flat, stack-machine instruction sequence
// with no separate constant pool — literals are carried as immediate
// operands on the instruction itself (PushString("foo"), PushInteger
// 5), because unlike a general-purpose VM, every literal here appears
// exactly once in the source and is never worth deduplicating. What a
// constant pool would buy elsewhere (compact operands, shared
// strings) isn't a real cost at the scale a HyperTalk-like handler
// script runs at.
//
// Instead, the thing that needs its own lookup structure is handler
// dispatch: every `Call` carries a name and a namespace flag, and the
// runtime resolves it against one of two name -> frame-descriptor
// maps, `Script.Commands` and `Script.Functions` — kept deliberately
// distinct (spec.md §9: "do not merge").
//
// Example compilation:
//
//	Source:  on main
//	           put 1 + 2 into x
//	         end main
//
//	Instructions:
//	  0: Reserve(2)              ; result, x
//	  1: StackValueBPRelative(3) ; &x, the last argument, pushed first
//	  2: PushInteger(2)
//	  3: PushInteger(1)
//	  4: PushParameterCount(2)
//	  5: Call("+", is_command=false)
//	  6: PushParameterCount(2)
//	  7: Call("put", is_command=true)   ; writes through the reference
//	  8: PushUnset
//	  9: Return(is_command=true)
package bytecode

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Opcode is the closed set of instruction operations parlance's
// runtime understands (spec.md §3's Instruction table).
type Opcode int

const (
	// PushUnset pushes the distinguished Unset value.
	PushUnset Opcode = iota

	// PushString pushes Str as a String value.
	PushString

	// PushInteger pushes Int as an Integer value.
	PushInteger

	// PushDouble pushes Double as a Double value.
	PushDouble

	// PushParameterCount pushes Int as a ParameterCount bookkeeping
	// value, always immediately followed by Call.
	PushParameterCount

	// Reserve pushes Int copies of Unset — a handler's locals. Always
	// the first instruction of a handler body.
	Reserve

	// StackValueBPRelative pushes Reference(BP + Int). Int may be
	// negative (e.g. relative to a caller's frame is never produced
	// by this parser, but the opcode itself doesn't forbid it).
	StackValueBPRelative

	// Parameter pushes Reference(BP - 1 - Int) if the caller supplied
	// at least Int arguments, else pushes Unset — missing-parameter
	// tolerance with no arity enforcement (spec.md §4.5).
	Parameter

	// Call dispatches to the user handler or host builtin named Str
	// in the namespace selected by Flag (true = commands, false =
	// functions). See pkg/runtime for the full calling convention.
	Call

	// Return unwinds the current frame. Flag selects whether the
	// return value is written into the caller's `result` local
	// (true, command) or pushed for the caller to consume directly
	// (false, function).
	Return

	// JumpBy adds Int to PC, unconditionally, without the usual +1
	// (i.e. it is relative to the JumpBy instruction itself).
	JumpBy

	// JumpByIfFalse pops a Boolean; if false, adds Int to PC (same
	// relative-to-self convention as JumpBy); otherwise PC += 1.
	JumpByIfFalse

	// JumpByIfTrue is JumpByIfFalse's mirror image.
	JumpByIfTrue

	// PushProperty pops a target Value and pushes its Str property.
	PushProperty
)

func (op Opcode) String() string {
	switch op {
	case PushUnset:
		return "PUSH_UNSET"
	case PushString:
		return "PUSH_STRING"
	case PushInteger:
		return "PUSH_INTEGER"
	case PushDouble:
		return "PUSH_DOUBLE"
	case PushParameterCount:
		return "PUSH_PARAMETER_COUNT"
	case Reserve:
		return "RESERVE"
	case StackValueBPRelative:
		return "STACK_VALUE_BP_RELATIVE"
	case Parameter:
		return "PARAMETER"
	case Call:
		return "CALL"
	case Return:
		return "RETURN"
	case JumpBy:
		return "JUMP_BY"
	case JumpByIfFalse:
		return "JUMP_BY_IF_FALSE"
	case JumpByIfTrue:
		return "JUMP_BY_IF_TRUE"
	case PushProperty:
		return "PUSH_PROPERTY"
	default:
		return "UNKNOWN"
	}
}

// Instruction is one bytecode instruction. Only the fields relevant
// to Op are meaningful; which ones those are is documented on the
// Opcode constant above.
type Instruction struct {
	Op     Opcode
	Str    string  // PushString, Call, PushProperty
	Int    int     // PushInteger, PushParameterCount, Reserve, StackValueBPRelative, Parameter, JumpBy, JumpByIfFalse, JumpByIfTrue
	Double float64 // PushDouble
	Flag   bool    // Call.is_command, Return.is_command
}

func (i Instruction) String() string {
	switch i.Op {
	case PushString:
		return fmt.Sprintf("%s %q", i.Op, i.Str)
	case PushInteger, PushParameterCount, Reserve, StackValueBPRelative, Parameter, JumpBy, JumpByIfFalse, JumpByIfTrue:
		return fmt.Sprintf("%s %d", i.Op, i.Int)
	case PushDouble:
		return fmt.Sprintf("%s %g", i.Op, i.Double)
	case Call, Return:
		ns := "function"
		if i.Flag {
			ns = "command"
		}
		if i.Op == Call {
			return fmt.Sprintf("%s %s (%s)", i.Op, i.Str, ns)
		}
		return fmt.Sprintf("%s (%s)", i.Op, ns)
	case PushProperty:
		return fmt.Sprintf("%s %q", i.Op, i.Str)
	default:
		return i.Op.String()
	}
}

// BindingKind discriminates the two ways a handler's frame can bind a
// variable name (spec.md §3's VariableBinding).
type BindingKind int

const (
	// BindingParameter binds to Parameter(Index) — a 1-based
	// argument slot.
	BindingParameter BindingKind = iota

	// BindingLocal binds to StackValueBPRelative(Index), where Index
	// is in [2, 2+NumLocals) for a well-formed handler.
	BindingLocal
)

// VariableBinding records how a name resolves within one handler's
// frame.
type VariableBinding struct {
	Kind  BindingKind
	Index int
}

// Handler is a frame descriptor: everything the parser recorded about
// one `on`/`function` definition besides its body (which lives inline
// in Script.Instructions).
type Handler struct {
	Name             string
	FirstInstruction int
	NumLocals        int
	Variables        map[string]VariableBinding
}

// Script is the parser's complete output: a flat instruction vector
// plus the two disjoint command/function namespaces (spec.md §9: "do
// not merge").
type Script struct {
	Instructions []Instruction
	Commands     map[string]*Handler
	Functions    map[string]*Handler
}

// NewScript returns an empty Script ready for a parser to populate.
func NewScript() *Script {
	return &Script{
		Commands:  make(map[string]*Handler),
		Functions: make(map[string]*Handler),
	}
}

// Emit appends inst and returns its index.
func (s *Script) Emit(inst Instruction) int {
	s.Instructions = append(s.Instructions, inst)
	return len(s.Instructions) - 1
}

// Lookup finds the handler named name in the commands or functions
// namespace, per isCommand.
func (s *Script) Lookup(name string, isCommand bool) (*Handler, bool) {
	var h *Handler
	var ok bool
	if isCommand {
		h, ok = s.Commands[name]
	} else {
		h, ok = s.Functions[name]
	}
	return h, ok
}

// Disassemble renders every instruction with its index, plus a header
// naming which handler (if any) starts at that index, for debugging
// and the `disassemble` CLI subcommand. Instruction counts over 999
// are rendered with thousands separators so a large handler's listing
// stays easy to scan at a glance.
func (s *Script) Disassemble() string {
	startOf := make(map[int][]string)
	for name, h := range s.Commands {
		startOf[h.FirstInstruction] = append(startOf[h.FirstInstruction], "on "+name)
	}
	for name, h := range s.Functions {
		startOf[h.FirstInstruction] = append(startOf[h.FirstInstruction], "function "+name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; %s instructions\n", humanize.Comma(int64(len(s.Instructions))))
	for i, inst := range s.Instructions {
		for _, header := range startOf[i] {
			fmt.Fprintf(&b, "%s:\n", header)
		}
		fmt.Fprintf(&b, "%6s  %s\n", humanize.Comma(int64(i)), inst)
	}
	return b.String()
}
