package parser

import (
	"github.com/google/uuid"

	"github.com/ahobson/parlance/pkg/bytecode"
)

// parseRepeat dispatches the three `repeat` loop shapes spec §4.3.3
// describes, "repeat" already consumed.
func (p *Parser) parseRepeat() error {
	switch {
	case p.cursor.HasIdentifier("while", true):
		return p.parseRepeatWhile()
	case p.cursor.HasIdentifier("with", true):
		return p.parseRepeatWith()
	default:
		return p.parseRepeatCount()
	}
}

// parseRepeatWhile emits [condition, JumpByIfFalse, body, JumpBy] and
// patches both jumps once the body's length is known, rather than
// hand-deriving the offsets algebraically — the same placeholder-
// then-patch idiom parseHandler uses for its Reserve instruction.
func (p *Parser) parseRepeatWhile() error {
	condStart := len(p.script.Instructions)
	if err := p.parseExpression(nil, false); err != nil {
		return err
	}
	jumpFalse := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpByIfFalse})

	if err := p.parseStatementsUntilIdentifiers([]string{"end", "repeat"}); err != nil {
		return err
	}

	jumpBack := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpBy})
	p.patchJumpTo(jumpBack, condStart)
	p.patchJumpTo(jumpFalse, len(p.script.Instructions))

	return p.cursor.ExpectIdentifiers([]string{"end", "repeat"})
}

// parseRepeatWith implements `repeat with <name> from <a> [down] to
// <b>`, synthesized as the equivalent of:
//
//	put <a> into <name>
//	while <name> <= <b>
//	  body
//	  add/subtract 1 to/from <name>
//
// using <= regardless of direction — the `down` variant's comparator
// is an observed source oddity preserved per spec §9, not a bug to
// fix: a descending range whose start is above its end never runs the
// body.
func (p *Parser) parseRepeatWith() error {
	name, err := p.cursor.ExpectUnquotedString()
	if err != nil {
		return err
	}
	if err := p.cursor.ExpectIdentifiers([]string{"from"}); err != nil {
		return err
	}
	binding := p.declareLocal(name)

	p.emitPush(binding) // container, pushed first
	if err := p.parseExpression(nil, false); err != nil {
		return err
	}
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: "put", Flag: true})

	down := p.cursor.HasIdentifier("down", true)
	if err := p.cursor.ExpectIdentifiers([]string{"to"}); err != nil {
		return err
	}

	condStart := len(p.script.Instructions)
	if err := p.parseExpression(nil, false); err != nil { // end bound, pushed first (rhs)
		return err
	}
	p.emitPush(binding) // <name>, pushed last/topmost (lhs)
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: "<=", Flag: false})
	jumpFalse := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpByIfFalse})

	if err := p.parseStatementsUntilIdentifiers([]string{"end", "repeat"}); err != nil {
		return err
	}

	stepCmd := "add"
	if down {
		stepCmd = "subtract"
	}
	p.emitPush(binding) // container first
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushInteger, Int: 1})
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: stepCmd, Flag: true})

	jumpBack := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpBy})
	p.patchJumpTo(jumpBack, condStart)
	p.patchJumpTo(jumpFalse, len(p.script.Instructions))

	return p.cursor.ExpectIdentifiers([]string{"end", "repeat"})
}

// parseRepeatCount implements `repeat [for] <n> [times]`. The source
// behavior this faithfully reproduces counts down: a synthetic
// counter is set to <n> and the loop runs while counter > 0,
// decrementing by one each pass — so a negative or zero count runs
// the body zero times (spec §9: "preserve this too").
func (p *Parser) parseRepeatCount() error {
	p.cursor.HasIdentifier("for", true)

	counterName := "repeat$" + uuid.NewString()
	binding := p.declareLocal(counterName)

	p.emitPush(binding) // container first
	if err := p.parseExpression(nil, false); err != nil {
		return err
	}
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: "put", Flag: true})

	p.cursor.HasIdentifier("times", true)

	condStart := len(p.script.Instructions)
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushInteger, Int: 0}) // rhs
	p.emitPush(binding)                                                  // lhs, topmost
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: ">", Flag: false})
	jumpFalse := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpByIfFalse})

	if err := p.parseStatementsUntilIdentifiers([]string{"end", "repeat"}); err != nil {
		return err
	}

	p.emitPush(binding) // container first
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushInteger, Int: 1})
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: "subtract", Flag: true})

	jumpBack := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpBy})
	p.patchJumpTo(jumpBack, condStart)
	p.patchJumpTo(jumpFalse, len(p.script.Instructions))

	return p.cursor.ExpectIdentifiers([]string{"end", "repeat"})
}
