package parser

import (
	"math"
	"strings"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
	"github.com/ahobson/parlance/pkg/token"
)

// exprNode is the operator-precedence tree parse_expression builds up
// one operator at a time (spec §4.3.2). It never leaves this file:
// once an expression is fully parsed, emitNode walks it once into
// bytecode and the tree is discarded — parlance keeps no retained
// AST.
type exprNode interface {
	emit(p *Parser)
}

// operand is a leaf: the already-generated instructions for one
// value (a literal, variable read, property access, or nested call).
type operand struct {
	instrs []bytecode.Instruction
}

func (o *operand) emit(p *Parser) {
	p.script.Instructions = append(p.script.Instructions, o.instrs...)
}

// operation is a binary node. op is the source operator's token text,
// emitted as a function-namespace Call of that name.
type operation struct {
	op  string
	lhs exprNode
	rhs exprNode
}

// emit is post-order: rhs, then lhs, then the call — spec §4.3.2 step
// 5's "right-then-left" order, which puts the first-written operand
// (lhs) topmost on the stack for the Call convention.
func (o *operation) emit(p *Parser) {
	o.rhs.emit(p)
	o.lhs.emit(p)
	p.script.Emit(bytecode.Instruction{Op: bytecode.PushParameterCount, Int: 2})
	p.script.Emit(bytecode.Instruction{Op: bytecode.Call, Str: o.op, Flag: false})
}

// precedence gives each known arithmetic/concatenation operator a
// binding strength; lower binds tighter (spec §4.3.2's table: `*` <
// `/` < `-` < `+` < `&` < `&&`). Anything not in the table — notably
// every comparison operator, and any bare symbol the parser doesn't
// recognize — is treated as maximally coarse, so it is always the
// outermost combinator when mixed with arithmetic (spec §9).
func precedence(op string) int {
	switch op {
	case "*":
		return 0
	case "/":
		return 1
	case "-":
		return 2
	case "+":
		return 3
	case "&":
		return 4
	case "&&":
		return 5
	default:
		return math.MaxInt32
	}
}

// insertOperator splices a freshly parsed (operator, operand) pair
// into root. It descends to the rightmost operation node, remembering
// that node's parent along the way. If the rightmost node's operator
// is strictly coarser than the new one, the new operation is spliced
// in as that node's new RHS (binding tighter, deeper in the tree);
// otherwise the new operation takes the rightmost node's place —
// wrapping just that subtree, not the whole of root — as the parent's
// new RHS, or as the new root itself if there was no parent (spec
// §4.3.2 step 4). Re-rooting at the whole of root instead of at the
// rightmost subtree would mis-group any chain of three or more
// same-or-tighter-precedence operators.
func insertOperator(root exprNode, op string, rhs exprNode) exprNode {
	cur, ok := root.(*operation)
	if !ok {
		return &operation{op: op, lhs: root, rhs: rhs}
	}
	var parent *operation
	for {
		next, ok := cur.rhs.(*operation)
		if !ok {
			break
		}
		parent = cur
		cur = next
	}
	if precedence(cur.op) > precedence(op) {
		cur.rhs = &operation{op: op, lhs: cur.rhs, rhs: rhs}
		return root
	}
	newNode := &operation{op: op, lhs: cur, rhs: rhs}
	if parent == nil {
		return newNode
	}
	parent.rhs = newNode
	return root
}

func isBracketSymbol(s string) bool {
	return strings.ContainsAny(s, "()[]{}")
}

// parseExpression requires a leading value and fails with
// ExpectedExpression if none is present; use tryParseExpression where
// "no expression here" is a legitimate non-error outcome (English
// template matching, optional elements).
func (p *Parser) parseExpression(forbidden []string, writable bool) error {
	ok, err := p.tryParseExpression(forbidden, writable)
	if err != nil {
		return err
	}
	if !ok {
		return lexer.NewParseError(lexer.ExpectedExpression, p.cursor.Current(), "")
	}
	return nil
}

// tryParseExpression implements spec §4.3.2's parse_expression: parse
// a leading value, then repeatedly consume a binary operator plus its
// following value, stopping at a newline, a bracket/paren symbol, or
// a forbidden operator. writable threads through to every value the
// expression parses (so a Container element's bare-variable operand
// can declare a new local; see parse_value's writable branch).
func (p *Parser) tryParseExpression(forbidden []string, writable bool) (bool, error) {
	start := len(p.script.Instructions)
	ok, err := p.parseValue(writable)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var root exprNode = &operand{instrs: append([]bytecode.Instruction(nil), p.script.Instructions[start:]...)}
	p.script.Instructions = p.script.Instructions[:start]

	for {
		tok := p.cursor.Current()
		if tok.Kind != token.Symbol || tok.Text == token.NewlineSymbol || isBracketSymbol(tok.Text) {
			break
		}
		if contains(forbidden, tok.Text) {
			break
		}
		mark := p.cursor.Save()
		p.cursor.HasSymbol(tok.Text, true)

		opStart := len(p.script.Instructions)
		ok, err := p.parseValue(false)
		if err != nil {
			return false, err
		}
		if !ok {
			p.cursor.Restore(mark)
			break
		}
		rhs := &operand{instrs: append([]bytecode.Instruction(nil), p.script.Instructions[opStart:]...)}
		p.script.Instructions = p.script.Instructions[:opStart]
		root = insertOperator(root, tok.Text, rhs)
	}

	root.emit(p)
	return true, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
