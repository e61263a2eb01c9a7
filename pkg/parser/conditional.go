package parser

import (
	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/token"
)

// parseIf implements spec §4.3.4's single-line and multi-line `if`
// shapes uniformly: a branch is multi-line whenever a newline
// immediately follows `then` (for the true branch) or `else` (for the
// false branch), and `end if` is required iff at least one branch
// took the multi-line form.
func (p *Parser) parseIf() error {
	if err := p.parseExpression(nil, false); err != nil {
		return err
	}
	p.cursor.HasSymbol(token.NewlineSymbol, true) // optional newline before `then`
	if err := p.cursor.ExpectIdentifiers([]string{"then"}); err != nil {
		return err
	}

	jumpFalse := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpByIfFalse})

	trueMultiline := p.cursor.HasSymbol(token.NewlineSymbol, true)
	if trueMultiline {
		if err := p.parseStatementsUntilAny("end", "else"); err != nil {
			return err
		}
	} else if err := p.parseStatement(); err != nil {
		return err
	}

	hasElse := false
	mark := p.cursor.Save()
	p.cursor.SkipNewlines()
	if p.cursor.HasIdentifier("else", true) {
		hasElse = true
	} else {
		p.cursor.Restore(mark)
	}

	if !hasElse {
		p.patchJumpTo(jumpFalse, len(p.script.Instructions))
		if trueMultiline {
			return p.cursor.ExpectIdentifiers([]string{"end", "if"})
		}
		return nil
	}

	jumpEnd := p.script.Emit(bytecode.Instruction{Op: bytecode.JumpBy})
	p.patchJumpTo(jumpFalse, len(p.script.Instructions))

	falseMultiline := p.cursor.HasSymbol(token.NewlineSymbol, true)
	if falseMultiline {
		if err := p.parseStatementsUntilAny("end"); err != nil {
			return err
		}
	} else if err := p.parseStatement(); err != nil {
		return err
	}
	p.patchJumpTo(jumpEnd, len(p.script.Instructions))

	if trueMultiline || falseMultiline {
		return p.cursor.ExpectIdentifiers([]string{"end", "if"})
	}
	return nil
}
