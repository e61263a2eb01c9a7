// Package runtime executes a bytecode.Script produced by pkg/parser.
//
// Runtime architecture:
//
// A RunContext is a tight fetch-dispatch loop over a flat instruction
// vector plus one growable value stack (spec §4.4). There is no
// separate call-stack structure: every call frame's bookkeeping
// (return address, saved base pointer, argument count) is itself
// pushed onto the same value stack the script's own Push* opcodes
// use, tagged with a bookkeeping Kind the pkg/value coercions refuse
// to treat as user data. That's what lets Call and Return stay two
// opcodes instead of a family of them — user handlers and host
// builtins share one dispatch path, differing only in whether a
// matching name resolves to a Script frame descriptor or to an entry
// in RunContext's own Commands/Functions maps.
//
// Example frame during `quoted "yay!"` calling into `on quoted str`:
//
//	BP-2  "yay!"                (caller's argument)
//	BP-1  ParameterCount(1)
//	BP    InstructionIndex(return_pc)
//	BP+1  StackIndex(caller_bp)
//	BP+2  Unset                 (the `result` local)
//	BP+3  ...                   (quoted's own local slots, if any)
package runtime

import (
	"fmt"
	"strings"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/value"
)

// Builtin is the uniform signature every host-provided command or
// function handler implements (spec §4.4). A function-namespace
// builtin must push exactly one Value; a command-namespace builtin
// must push none (it mutates through a Reference argument instead).
type Builtin func(args []value.Value, ctx *RunContext) error

// RunContext owns everything one script execution needs: the Script
// being run, the stack, the program counter and base pointer, and the
// two builtin namespaces a host installs before calling Run.
type RunContext struct {
	Script    *bytecode.Script
	Stack     []value.Value
	PC        int
	BP        int
	Commands  map[string]Builtin
	Functions map[string]Builtin

	frames []StackFrame
}

// NewRunContext returns a RunContext ready for builtin registration
// and Run calls against script.
func NewRunContext(script *bytecode.Script) *RunContext {
	return &RunContext{
		Script:    script,
		PC:        -1,
		BP:        -1,
		Commands:  make(map[string]Builtin),
		Functions: make(map[string]Builtin),
	}
}

// RegisterCommand installs fn as the command-namespace builtin named
// name, overriding any existing entry. Names are matched
// case-insensitively, matching the rest of the language.
func (ctx *RunContext) RegisterCommand(name string, fn Builtin) {
	ctx.Commands[strings.ToLower(name)] = fn
}

// RegisterFunction installs fn as the function-namespace builtin
// named name.
func (ctx *RunContext) RegisterFunction(name string, fn Builtin) {
	ctx.Functions[strings.ToLower(name)] = fn
}

// Run invokes the user handler named handlerName from the
// appropriate namespace with args, runs the fetch-dispatch loop to
// completion, and returns the value left on top of the stack (spec
// §4.4's Entry steps 1-6; see execReturn for why "top of stack" is
// the right answer for both commands and functions once the call has
// unwound all the way back to this synthetic entry frame).
func (ctx *RunContext) Run(handlerName string, isCommand bool, args ...value.Value) (value.Value, error) {
	for i := len(args) - 1; i >= 0; i-- {
		ctx.push(args[i])
	}
	ctx.push(value.NewParameterCount(len(args)))

	handler, ok := ctx.Script.Lookup(strings.ToLower(handlerName), isCommand)
	if !ok {
		return value.Value{}, &value.RuntimeError{
			Kind: value.UnknownMessage, MessageName: handlerName, IsCommand: isCommand,
		}
	}

	ctx.BP = len(ctx.Stack)
	ctx.push(value.NewInstructionIndex(-1))
	ctx.push(value.NewStackIndex(-1))
	ctx.PC = handler.FirstInstruction
	ctx.frames = append(ctx.frames, StackFrame{Name: handlerName, PC: -1})

	for ctx.PC >= 0 {
		if err := ctx.step(); err != nil {
			return value.Value{}, err
		}
	}

	if len(ctx.Stack) == 0 {
		return value.Value{}, &value.RuntimeError{Kind: value.StackIndexOutOfRange}
	}
	return ctx.Stack[len(ctx.Stack)-1], nil
}

// step fetches and executes exactly one instruction, attaching a call
// stack trace (see TracedError) to whatever error first escapes it.
// Every opcode is responsible for advancing PC itself (spec §4.4's
// dispatch contract): straight-line ops do PC++, Call/Return set PC
// from restored bookkeeping, and the Jump family add their operand to
// their own index with no implicit +1.
func (ctx *RunContext) step() error {
	if err := ctx.dispatch(); err != nil {
		return newTracedError(err, ctx.frames)
	}
	return nil
}

func (ctx *RunContext) dispatch() error {
	if ctx.PC < 0 || ctx.PC >= len(ctx.Script.Instructions) {
		return &value.RuntimeError{Kind: value.UnknownInstruction}
	}
	inst := ctx.Script.Instructions[ctx.PC]

	switch inst.Op {
	case bytecode.PushUnset:
		ctx.push(value.Unset())
		ctx.PC++
	case bytecode.PushString:
		ctx.push(value.NewString(inst.Str))
		ctx.PC++
	case bytecode.PushInteger:
		ctx.push(value.NewInteger(int64(inst.Int)))
		ctx.PC++
	case bytecode.PushDouble:
		ctx.push(value.NewDouble(inst.Double))
		ctx.PC++
	case bytecode.PushParameterCount:
		ctx.push(value.NewParameterCount(inst.Int))
		ctx.PC++
	case bytecode.Reserve:
		for i := 0; i < inst.Int; i++ {
			ctx.push(value.Unset())
		}
		ctx.PC++
	case bytecode.StackValueBPRelative:
		ctx.push(value.NewReference(ctx.BP + inst.Int))
		ctx.PC++
	case bytecode.Parameter:
		ctx.execParameter(inst.Int)
		ctx.PC++
	case bytecode.Call:
		return ctx.execCall(inst.Str, inst.Flag)
	case bytecode.Return:
		return ctx.execReturn(inst.Flag)
	case bytecode.JumpBy:
		ctx.PC += inst.Int
	case bytecode.JumpByIfFalse:
		return ctx.execJumpIf(inst.Int, false)
	case bytecode.JumpByIfTrue:
		return ctx.execJumpIf(inst.Int, true)
	case bytecode.PushProperty:
		return ctx.execPushProperty(inst.Str)
	default:
		return &value.RuntimeError{Kind: value.UnknownInstruction}
	}
	return nil
}

func (ctx *RunContext) push(v value.Value) { ctx.Stack = append(ctx.Stack, v) }

func (ctx *RunContext) pop() (value.Value, error) {
	if len(ctx.Stack) == 0 {
		return value.Value{}, &value.RuntimeError{Kind: value.TooFewOperands}
	}
	v := ctx.Stack[len(ctx.Stack)-1]
	ctx.Stack = ctx.Stack[:len(ctx.Stack)-1]
	return v, nil
}

func (ctx *RunContext) paramCountAt(idx int) (int, bool) {
	if idx < 0 || idx >= len(ctx.Stack) {
		return 0, false
	}
	v := ctx.Stack[idx]
	if v.Kind() != value.KindParameterCount {
		return 0, false
	}
	return int(v.RawInt()), true
}

// execParameter implements Parameter(i): push Reference(BP-1-i) if
// the caller supplied at least i arguments, else Unset — missing-
// argument tolerance with no arity enforcement.
func (ctx *RunContext) execParameter(i int) {
	count, ok := ctx.paramCountAt(ctx.BP - 1)
	if ok && count >= i {
		ctx.push(value.NewReference(ctx.BP - 1 - i))
		return
	}
	ctx.push(value.Unset())
}

func (ctx *RunContext) execJumpIf(offset int, wantTrue bool) error {
	v, err := ctx.pop()
	if err != nil {
		return err
	}
	b, err := v.AsBoolean(ctx.Stack)
	if err != nil {
		return err
	}
	if b == wantTrue {
		ctx.PC += offset
	} else {
		ctx.PC++
	}
	return nil
}

func (ctx *RunContext) execPushProperty(name string) error {
	target, err := ctx.pop()
	if err != nil {
		return err
	}
	result, err := target.PropertyValue(name, ctx.Stack)
	if err != nil {
		return err
	}
	ctx.push(result)
	ctx.PC++
	return nil
}

// execCall implements spec §4.5's Call dispatch: a user handler wins
// over a builtin of the same name; builtins are only consulted when
// no script-defined handler in the same namespace matches.
func (ctx *RunContext) execCall(name string, isCommand bool) error {
	key := strings.ToLower(name)

	if handler, ok := ctx.Script.Lookup(key, isCommand); ok {
		bpNew := len(ctx.Stack)
		ctx.push(value.NewInstructionIndex(ctx.PC + 1))
		ctx.push(value.NewStackIndex(ctx.BP))
		ctx.BP = bpNew
		ctx.frames = append(ctx.frames, StackFrame{Name: name, PC: ctx.PC})
		ctx.PC = handler.FirstInstruction
		return nil
	}

	var builtin Builtin
	var ok bool
	if isCommand {
		builtin, ok = ctx.Commands[key]
	} else {
		builtin, ok = ctx.Functions[key]
	}
	if !ok {
		return &value.RuntimeError{Kind: value.UnknownMessage, MessageName: name, IsCommand: isCommand}
	}

	count, ok := ctx.paramCountAt(len(ctx.Stack) - 1)
	if !ok {
		return &value.RuntimeError{Kind: value.StackIndexOutOfRange}
	}
	ctx.Stack = ctx.Stack[:len(ctx.Stack)-1] // discard ParameterCount
	if count < 0 || count > len(ctx.Stack) {
		return &value.RuntimeError{Kind: value.TooFewOperands}
	}
	args := make([]value.Value, count)
	for i := 0; i < count; i++ {
		args[i] = ctx.Stack[len(ctx.Stack)-1-i]
	}
	ctx.Stack = ctx.Stack[:len(ctx.Stack)-count]

	before := len(ctx.Stack)
	if err := builtin(args, ctx); err != nil {
		return err
	}
	pushed := len(ctx.Stack) - before
	wantPushed := 0
	if !isCommand {
		wantPushed = 1
	}
	if pushed != wantPushed {
		return &value.RuntimeError{
			Kind: value.StackNotCleanedUpAtEndOfCall, Detail: fmt.Sprintf("builtin %q pushed %d value(s)", name, pushed),
		}
	}
	ctx.PC++
	return nil
}

// execReturn implements spec §4.5's Return: unwind this frame
// entirely (including its own `result` local, which is distinct from
// retVal — see the package doc comment's frame diagram), then either
// write retVal into the now-current caller's `result` cell (a command
// returning into a real caller) or push it (a function, or a command
// unwinding all the way to the synthetic top-level entry frame, whose
// saved BP sentinel is -1).
func (ctx *RunContext) execReturn(isCommand bool) error {
	retVal, err := ctx.pop()
	if err != nil {
		return err
	}

	if ctx.BP+2 > len(ctx.Stack) {
		return &value.RuntimeError{Kind: value.StackIndexOutOfRange}
	}
	ctx.Stack = ctx.Stack[:ctx.BP+2]

	savedBP, err := ctx.pop()
	if err != nil {
		return err
	}
	savedPC, err := ctx.pop()
	if err != nil {
		return err
	}
	paramCount, err := ctx.pop()
	if err != nil {
		return err
	}
	if savedBP.Kind() != value.KindStackIndex || savedPC.Kind() != value.KindInstructionIndex || paramCount.Kind() != value.KindParameterCount {
		return &value.RuntimeError{Kind: value.StackIndexOutOfRange}
	}

	argc := int(paramCount.RawInt())
	if argc > len(ctx.Stack) {
		return &value.RuntimeError{Kind: value.StackIndexOutOfRange}
	}
	ctx.Stack = ctx.Stack[:len(ctx.Stack)-argc]

	restoredBP := int(savedBP.RawInt())
	ctx.BP = restoredBP
	ctx.PC = int(savedPC.RawInt())
	if len(ctx.frames) > 0 {
		ctx.frames = ctx.frames[:len(ctx.frames)-1]
	}

	if isCommand && restoredBP >= 0 {
		idx := restoredBP + 2
		if idx >= len(ctx.Stack) {
			return &value.RuntimeError{Kind: value.StackIndexOutOfRange}
		}
		ctx.Stack[idx] = retVal
	} else {
		ctx.push(retVal)
	}
	return nil
}
