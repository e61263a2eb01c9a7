package parser

import (
	"strings"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
)

// parseStatement dispatches one statement per spec §4.3.1's ordering:
// repeat, if, an English command template, `local`, `return`, and
// finally a generic handler call as the catch-all.
func (p *Parser) parseStatement() error {
	if p.cursor.HasIdentifier("repeat", true) {
		return p.parseRepeat()
	}
	if p.cursor.HasIdentifier("if", true) {
		return p.parseIf()
	}

	matched, err := p.tryEnglishCall()
	if err != nil {
		return err
	}
	if matched {
		return nil
	}

	if p.cursor.HasIdentifier("local", true) {
		before := len(p.script.Instructions)
		if _, err := p.parseValue(true); err != nil {
			return err
		}
		// The value-parse's only purpose here is its side effect of
		// registering a new local; the instructions it emitted are
		// never executed.
		p.script.Instructions = p.script.Instructions[:before]
		return nil
	}

	if p.cursor.HasIdentifier("return", true) {
		if p.atLineEnd() {
			p.script.Emit(bytecode.Instruction{Op: bytecode.PushUnset})
		} else if err := p.parseExpression(nil, false); err != nil {
			return err
		}
		p.script.Emit(bytecode.Instruction{Op: bytecode.Return, Flag: p.frame.isCommand})
		return nil
	}

	return p.parseGenericCommandCall()
}

// parseGenericCommandCall implements spec §4.3.6 for statement
// position: a bare identifier followed by a comma-separated argument
// list, dispatched as a command call.
func (p *Parser) parseGenericCommandCall() error {
	name, err := p.cursor.ExpectUnquotedString()
	if err != nil {
		return err
	}
	args, err := p.parseArgumentList(p.atLineEnd)
	if err != nil {
		return err
	}
	p.emitCall(args, name, true)
	return nil
}

// parseStatementsUntilIdentifiers parses statements until the cursor
// sits at the exact (unconsumed) identifier sequence words — used for
// `end repeat`, which the caller then consumes itself.
func (p *Parser) parseStatementsUntilIdentifiers(words []string) error {
	for {
		p.cursor.SkipNewlines()
		if p.cursor.IsAtEnd() {
			return lexer.NewParseError(lexer.ExpectedIdentifier, p.cursor.Current(), strings.Join(words, " "))
		}
		if p.cursor.HasIdentifiers(words, false) {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}

// parseStatementsUntilAny parses statements until the cursor sits at
// any one of the (unconsumed) single-word identifiers in words.
func (p *Parser) parseStatementsUntilAny(words ...string) error {
	for {
		p.cursor.SkipNewlines()
		if p.cursor.IsAtEnd() {
			return lexer.NewParseError(lexer.ExpectedIdentifier, p.cursor.Current(), strings.Join(words, "/"))
		}
		for _, w := range words {
			if p.cursor.HasIdentifier(w, false) {
				return nil
			}
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}
