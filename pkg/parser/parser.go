// Package parser implements parlance's combined parser/codegen stage:
// it consumes the token buffer a lexer.Tokenizer produced and emits a
// bytecode.Script directly, one statement at a time, with no
// intermediate syntax tree retained once a statement's instructions
// have been appended.
//
// Parser architecture:
//
// The parser is a single-pass recursive-descent matcher over a
// lexer.Cursor. Every decision point that can fail without that
// failure being a real syntax error — "is this an English command
// template, or just a generic call?", "does this identifier name an
// existing variable?" — is implemented as save-cursor / attempt /
// restore-on-mismatch, exactly the pattern lexer.Cursor's has_*
// family exists for. There is no backtracking across statement
// boundaries: once a statement commits (its first keyword or a
// matched Syntax template), the rest of that statement must parse or
// the whole parse aborts (spec's "fail fast, no recovery").
//
// The one place the parser keeps structure beyond straight-line
// instruction emission is expression parsing (expr.go): operator
// precedence requires building a small binary tree so operators of
// different binding strength can rearrange an already-parsed operand,
// which a single emit-as-you-go pass cannot do.
//
// Host extension point: a host embeds additional English-command
// shapes by calling RegisterSyntax before Parse.
package parser

import (
	"strings"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
	"github.com/ahobson/parlance/pkg/token"
)

// Parser turns a token buffer into a Script. It is single-use: create
// a fresh Parser per source file.
type Parser struct {
	cursor   *lexer.Cursor
	script   *bytecode.Script
	frame    *frameState
	syntaxes []*Syntax
}

// frameState is the parser's working context while it is inside one
// handler body: the local-variable table being built up, and the
// index of that handler's placeholder Reserve instruction.
type frameState struct {
	isCommand    bool
	variables    map[string]bytecode.VariableBinding
	numLocals    int
	reserveIndex int
}

// New returns a Parser with the built-in English-command templates
// (put/add/subtract/create) already registered.
func New() *Parser {
	return &Parser{syntaxes: DefaultSyntaxes()}
}

// RegisterSyntax adds a host-provided English-command template. It
// must be called before Parse; templates are tried in registration
// order, built-ins first.
func (p *Parser) RegisterSyntax(s *Syntax) {
	p.syntaxes = append(p.syntaxes, s)
}

// Parse consumes every token in tk and returns the assembled Script,
// or the first ParseError encountered.
func (p *Parser) Parse(tk *lexer.Tokenizer) (*bytecode.Script, error) {
	p.cursor = lexer.NewCursor(tk.Tokens())
	p.script = bytecode.NewScript()

	for {
		p.cursor.SkipNewlines()
		if p.cursor.IsAtEnd() {
			break
		}
		switch {
		case p.cursor.HasIdentifier("on", true):
			if err := p.parseHandler(true); err != nil {
				return nil, err
			}
		case p.cursor.HasIdentifier("function", true):
			if err := p.parseHandler(false); err != nil {
				return nil, err
			}
		default:
			p.cursor.SkipLine()
		}
	}
	return p.script, nil
}

// parseHandler parses one `on NAME ... end NAME` or `function NAME
// ... end NAME` block (spec §4.3's numbered handler-parsing steps),
// "on"/"function" already consumed.
func (p *Parser) parseHandler(isCommand bool) error {
	name, err := p.cursor.ExpectUnquotedString()
	if err != nil {
		return err
	}

	reserveIdx := p.script.Emit(bytecode.Instruction{Op: bytecode.Reserve})

	fr := &frameState{
		isCommand:    isCommand,
		reserveIndex: reserveIdx,
		variables: map[string]bytecode.VariableBinding{
			normalizeName("result"): {Kind: bytecode.BindingLocal, Index: 2},
		},
		numLocals: 1, // result
	}
	p.frame = fr
	defer func() { p.frame = nil }()

	paramIndex := 1
	for !p.cursor.HasSymbol(token.NewlineSymbol, false) && !p.cursor.IsAtEnd() {
		pname, err := p.cursor.ExpectUnquotedString()
		if err != nil {
			return err
		}
		fr.variables[normalizeName(pname)] = bytecode.VariableBinding{Kind: bytecode.BindingParameter, Index: paramIndex}
		paramIndex++
		if !p.cursor.HasSymbol(",", true) {
			break
		}
	}
	if err := p.cursor.ExpectNewline(); err != nil {
		return err
	}

	for {
		p.cursor.SkipNewlines()
		if p.cursor.HasIdentifier("end", false) {
			break
		}
		if p.cursor.IsAtEnd() {
			return lexer.NewParseError(lexer.ExpectedIdentifier, p.cursor.Current(), "end "+name)
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}

	p.script.Emit(bytecode.Instruction{Op: bytecode.PushUnset})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Return, Flag: isCommand})

	if err := p.cursor.ExpectIdentifiers([]string{"end", name}); err != nil {
		return err
	}

	p.script.Instructions[reserveIdx].Int = fr.numLocals

	handler := &bytecode.Handler{
		Name:             name,
		FirstInstruction: reserveIdx,
		NumLocals:        fr.numLocals,
		Variables:        fr.variables,
	}
	if isCommand {
		p.script.Commands[normalizeName(name)] = handler
	} else {
		p.script.Functions[normalizeName(name)] = handler
	}
	return nil
}

// normalizeName canonicalizes an identifier for variable/handler
// table lookups; every identifier comparison in the language is
// case-insensitive (spec §4.2).
func normalizeName(s string) string { return strings.ToLower(s) }

// declareLocal returns name's existing local binding, or allocates a
// fresh one at the next free frame slot.
func (p *Parser) declareLocal(name string) bytecode.VariableBinding {
	key := normalizeName(name)
	if b, ok := p.frame.variables[key]; ok {
		return b
	}
	b := bytecode.VariableBinding{Kind: bytecode.BindingLocal, Index: 2 + p.frame.numLocals}
	p.frame.variables[key] = b
	p.frame.numLocals++
	return b
}

// emitPush appends the single instruction that reads a variable
// binding's current value (as a Reference, so it can double as a
// write destination for put/add/subtract).
func (p *Parser) emitPush(b bytecode.VariableBinding) {
	switch b.Kind {
	case bytecode.BindingParameter:
		p.script.Emit(bytecode.Instruction{Op: bytecode.Parameter, Int: b.Index})
	case bytecode.BindingLocal:
		p.script.Emit(bytecode.Instruction{Op: bytecode.StackValueBPRelative, Int: b.Index})
	}
}

// atLineEnd reports whether the cursor sits at a statement boundary
// (newline or EOF) — used to detect a zero-argument call.
func (p *Parser) atLineEnd() bool {
	return p.cursor.IsAtEnd() || p.cursor.HasSymbol(token.NewlineSymbol, false)
}

// patchJumpTo rewrites a previously emitted JumpBy/JumpByIfFalse/
// JumpByIfTrue's operand so it lands exactly on targetIdx, using the
// "relative to the jump instruction's own index" convention spec §3
// defines for all three jump opcodes.
func (p *Parser) patchJumpTo(jumpIdx, targetIdx int) {
	p.script.Instructions[jumpIdx].Int = targetIdx - jumpIdx
}
