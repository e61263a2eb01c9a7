package parser

import "github.com/ahobson/parlance/pkg/bytecode"

// ElementKind discriminates the value kinds a SyntaxElement can parse
// (spec §4.3.5).
type ElementKind int

const (
	// ElementExpression parses a value expression normally.
	ElementExpression ElementKind = iota
	// ElementContainer is identical to Expression, but every value it
	// parses runs in writable mode, so a bare variable name that
	// isn't bound yet is declared rather than falling back to a
	// string literal.
	ElementContainer
	// ElementIdentifier consumes whichever of Words matches and
	// pushes the matched word itself as a String argument.
	ElementIdentifier
	// ElementAnyIdentifier consumes any single identifier token and
	// pushes its text as a String argument.
	ElementAnyIdentifier
)

// SyntaxElement is one slot in a Syntax template: an optional literal
// keyword Prefix that must match first, followed by a value of Kind.
// Optional elements that fail to match are simply skipped rather than
// failing the whole template (spec's `create` template: "any-
// identifier, optional expression").
type SyntaxElement struct {
	Prefix   []string
	Kind     ElementKind
	Words    []string // ElementIdentifier's accepted keyword set
	Optional bool
}

// Syntax is an English command template: an introductory keyword
// sequence (Intro) followed by Elements. A successful match emits a
// command Call named by concatenating Intro (spec §4.3.5).
type Syntax struct {
	Intro    []string
	Elements []SyntaxElement
}

func (s *Syntax) name() string {
	name := ""
	for _, w := range s.Intro {
		name += w
	}
	return name
}

// DefaultSyntaxes returns the built-in templates spec §4.3.5 requires
// the parser to register: put, add, subtract, create.
func DefaultSyntaxes() []*Syntax {
	return []*Syntax{
		{
			Intro: []string{"put"},
			Elements: []SyntaxElement{
				{Kind: ElementExpression},
				{Prefix: []string{"into"}, Kind: ElementContainer},
			},
		},
		{
			Intro: []string{"add"},
			Elements: []SyntaxElement{
				{Kind: ElementExpression},
				{Prefix: []string{"to"}, Kind: ElementContainer},
			},
		},
		{
			Intro: []string{"subtract"},
			Elements: []SyntaxElement{
				{Kind: ElementExpression},
				{Prefix: []string{"from"}, Kind: ElementContainer},
			},
		},
		{
			Intro: []string{"create"},
			Elements: []SyntaxElement{
				{Kind: ElementAnyIdentifier},
				{Kind: ElementExpression, Optional: true},
			},
		},
	}
}

// tryEnglishCall attempts every registered Syntax in order, restoring
// the cursor after each failed attempt, and emits a command Call on
// the first match (spec §4.3.5). It reports matched=false, nil error
// if nothing matched, leaving the cursor untouched.
func (p *Parser) tryEnglishCall() (bool, error) {
	for _, syn := range p.syntaxes {
		mark := p.cursor.Save()
		ok, args, err := p.matchSyntax(syn)
		if err != nil {
			return false, err
		}
		if !ok {
			p.cursor.Restore(mark)
			continue
		}
		p.emitCall(args, syn.name(), true)
		return true, nil
	}
	return false, nil
}

// matchSyntax attempts one Syntax template starting at the cursor's
// current position. On any required element failing to match, it
// reports ok=false without restoring the cursor itself — that's
// tryEnglishCall's job, so matchSyntax can be tried standalone too.
func (p *Parser) matchSyntax(syn *Syntax) (bool, [][]bytecode.Instruction, error) {
	if !p.cursor.HasIdentifiers(syn.Intro, true) {
		return false, nil, nil
	}

	var args [][]bytecode.Instruction
	for _, el := range syn.Elements {
		if len(el.Prefix) > 0 && !p.cursor.HasIdentifiers(el.Prefix, true) {
			if el.Optional {
				continue
			}
			return false, nil, nil
		}

		switch el.Kind {
		case ElementExpression, ElementContainer:
			ok, instrs, err := p.captureTryExpression(el.Kind == ElementContainer)
			if err != nil {
				return false, nil, err
			}
			if !ok {
				if el.Optional {
					continue
				}
				return false, nil, nil
			}
			args = append(args, instrs)

		case ElementIdentifier:
			matched := ""
			for _, w := range el.Words {
				if p.cursor.HasIdentifier(w, true) {
					matched = w
					break
				}
			}
			if matched == "" {
				if el.Optional {
					continue
				}
				return false, nil, nil
			}
			args = append(args, []bytecode.Instruction{{Op: bytecode.PushString, Str: matched}})

		case ElementAnyIdentifier:
			name, ok := p.cursor.HasAnyUnquotedString(true)
			if !ok {
				if el.Optional {
					continue
				}
				return false, nil, nil
			}
			args = append(args, []bytecode.Instruction{{Op: bytecode.PushString, Str: name}})
		}
	}
	return true, args, nil
}

// captureTryExpression parses an optional expression and hands back
// its instructions as a standalone slice, leaving the script exactly
// as it was if nothing matched.
func (p *Parser) captureTryExpression(writable bool) (bool, []bytecode.Instruction, error) {
	start := len(p.script.Instructions)
	ok, err := p.tryParseExpression(nil, writable)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	instrs := append([]bytecode.Instruction(nil), p.script.Instructions[start:]...)
	p.script.Instructions = p.script.Instructions[:start]
	return true, instrs, nil
}
