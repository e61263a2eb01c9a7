package parser

import (
	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
)

// parseValue implements spec §4.3.2's parse_value: it matches (in
// order) a quoted string, an integer, a double, or an identifier, and
// reports ok=false without consuming anything if none of those token
// kinds is current. Every identifier path succeeds — the bare-word
// fallback at the bottom is what makes unquoted HyperTalk-style
// tokens like `put button into x` work.
func (p *Parser) parseValue(writable bool) (bool, error) {
	if s, ok := p.cursor.HasQuotedString(true); ok {
		p.script.Emit(bytecode.Instruction{Op: bytecode.PushString, Str: s})
		return true, nil
	}
	if n, ok := p.cursor.HasInteger(true); ok {
		p.script.Emit(bytecode.Instruction{Op: bytecode.PushInteger, Int: int(n)})
		return true, nil
	}
	if f, ok := p.cursor.HasDouble(true); ok {
		p.script.Emit(bytecode.Instruction{Op: bytecode.PushDouble, Double: f})
		return true, nil
	}

	name, ok := p.cursor.HasAnyUnquotedString(false)
	if !ok {
		return false, nil
	}

	if inst, isConst := constantInstruction(name); isConst {
		p.cursor.HasAnyUnquotedString(true)
		p.script.Emit(inst)
		return true, nil
	}

	p.cursor.HasAnyUnquotedString(true) // commit to consuming the identifier

	if p.cursor.HasSymbol("(", true) {
		args, err := p.parseArgumentList(func() bool { return p.cursor.HasSymbol(")", false) })
		if err != nil {
			return false, err
		}
		if err := p.cursor.ExpectSymbol(")"); err != nil {
			return false, err
		}
		p.emitCall(args, name, false)
		return true, nil
	}

	if p.cursor.HasIdentifier("of", true) {
		ok, err := p.parseValue(false)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, lexer.NewParseError(lexer.ExpectedValue, p.cursor.Current(), "")
		}
		p.script.Emit(bytecode.Instruction{Op: bytecode.PushProperty, Str: name})
		return true, nil
	}

	if b, ok := p.frame.variables[normalizeName(name)]; ok {
		p.emitPush(b)
		return true, nil
	}

	if writable {
		b := p.declareLocal(name)
		p.emitPush(b)
		return true, nil
	}

	p.script.Emit(bytecode.Instruction{Op: bytecode.PushString, Str: name})
	return true, nil
}

// parseArgumentList parses a comma-separated expression list (each
// argument stops at "," per spec §4.3.6 / §4.3.2), used for both
// parenthesized function calls and bare generic calls. atEnd reports
// whether the cursor already sits just past the list (closing paren,
// or line end for an unparenthesized call) before any argument is
// attempted — in which case the call has zero arguments.
//
// Each argument's instructions are captured into its own slice rather
// than left in place, because the calling convention pushes arguments
// in reverse source order (spec §4.3.2 step 5 / §4.3.6): the first
// argument ends up topmost on the stack.
func (p *Parser) parseArgumentList(atEnd func() bool) ([][]bytecode.Instruction, error) {
	var args [][]bytecode.Instruction
	if atEnd() {
		return args, nil
	}
	for {
		start := len(p.script.Instructions)
		if err := p.parseExpression([]string{","}, false); err != nil {
			return nil, err
		}
		args = append(args, append([]bytecode.Instruction(nil), p.script.Instructions[start:]...))
		p.script.Instructions = p.script.Instructions[:start]
		if !p.cursor.HasSymbol(",", true) {
			break
		}
	}
	return args, nil
}

// emitCall appends args in reverse order (so the first argument ends
// up topmost), then PushParameterCount(len(args)) and Call(name,
// isCommand) — the shared tail of every call site: generic calls,
// function-call syntax, and English command templates alike.
func (p *Parser) emitCall(args [][]bytecode.Instruction, name string, isCommand bool) {
	for i := len(args) - 1; i >= 0; i-- {
		p.script.Instructions = append(p.script.Instructions, args[i]...)
	}
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: len(args)})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: name, Flag: isCommand})
}
