package parser

import (
	"testing"

	"github.com/ahobson/parlance/pkg/bytecode"
)

// callSeq extracts the Call operator names in emission order, which is
// enough to read off how an expression tree nested without walking it.
func callSeq(script *bytecode.Script, h *bytecode.Handler) []string {
	var out []string
	for _, inst := range script.Instructions[h.FirstInstruction:] {
		if inst.Op == bytecode.Call && !inst.Flag {
			out = append(out, inst.Str)
		}
	}
	return out
}

func TestPrecedenceMultiplyBindsTighterThanAdd(t *testing.T) {
	// 1 + 2 * 3 should emit "*" before "+": the deepest (tightest)
	// operation is evaluated first in the post-order rhs/lhs/Call walk.
	script := mustParse(t, "function f\n  return 1 + 2 * 3\nend f\n")
	h, _ := script.Lookup("f", false)

	seq := callSeq(script, h)
	if len(seq) != 2 || seq[0] != "*" || seq[1] != "+" {
		t.Fatalf("expected Call sequence [* +], got %v", seq)
	}
}

func TestPrecedenceLeftAssociativeSamePrecedence(t *testing.T) {
	// 1 - 2 - 3 parses as (1 - 2) - 3: when precedence ties,
	// insertOperator wraps the existing "-" node as the new node's lhs
	// rather than nesting the new operation under it.
	script := mustParse(t, "function f\n  return 1 - 2 - 3\nend f\n")
	h, _ := script.Lookup("f", false)

	seq := callSeq(script, h)
	if len(seq) != 2 || seq[0] != "-" || seq[1] != "-" {
		t.Fatalf("expected Call sequence [- -], got %v", seq)
	}

	// (1 - 2) - 3 pushes 3, then 2 and 1 for the inner "-"; 1 - (2 - 3)
	// would call the inner "-" before pushing 1.
	want := []bytecode.Opcode{
		bytecode.PushInteger, bytecode.PushInteger, bytecode.PushInteger,
		bytecode.PushParameterCount, bytecode.Call,
		bytecode.PushParameterCount, bytecode.Call,
	}
	got := opcodes(script, h.FirstInstruction+1, h.FirstInstruction+1+len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected opcodes %v for (1 - 2) - 3, got %v", want, got)
		}
	}
}

func TestPrecedenceComparisonIsCoarsestOperator(t *testing.T) {
	// 1 + 2 < 3 + 4 should evaluate both additions before the
	// comparison: comparisons aren't in the arithmetic precedence
	// table, so they fall to math.MaxInt32 and always end up outermost.
	script := mustParse(t, "function f\n  return 1 + 2 < 3 + 4\nend f\n")
	h, _ := script.Lookup("f", false)

	seq := callSeq(script, h)
	if len(seq) != 3 || seq[2] != "<" {
		t.Fatalf("expected the comparison last in %v", seq)
	}
	if seq[0] != "+" || seq[1] != "+" {
		t.Fatalf("expected both additions to run before the comparison, got %v", seq)
	}
}

func TestPrecedenceThreeTightOperatorsChainTogetherUnderLooserOne(t *testing.T) {
	// 1 + 2 * 3 * 4 must group the two multiplies together as
	// (2 * 3) * 4 under the "+", not re-root the whole expression as
	// (1 + 2 * 3) * 4 — insertOperator must splice at the rightmost
	// subtree it descended to, not at the original root.
	script := mustParse(t, "function f\n  return 1 + 2 * 3 * 4\nend f\n")
	h, _ := script.Lookup("f", false)

	seq := callSeq(script, h)
	if len(seq) != 3 || seq[0] != "*" || seq[1] != "*" || seq[2] != "+" {
		t.Fatalf("expected Call sequence [* * +], got %v", seq)
	}
}

func TestInsertOperatorReRootsOnCoarserOperator(t *testing.T) {
	// Directly exercise insertOperator: building "2 * 3" then splicing
	// in "+ 1" must re-root (since * binds tighter than +), producing
	// (2 * 3) + 1 rather than 2 * (3 + 1).
	lhs := &operand{}
	rhsMul := &operand{}
	root := insertOperator(lhs, "*", rhsMul)

	rhsAdd := &operand{}
	root = insertOperator(root, "+", rhsAdd)

	top, ok := root.(*operation)
	if !ok || top.op != "+" {
		t.Fatalf("expected '+' at the new root, got %+v", root)
	}
	inner, ok := top.lhs.(*operation)
	if !ok || inner.op != "*" {
		t.Fatalf("expected '*' nested as the new root's lhs, got %+v", top.lhs)
	}
}

func TestInsertOperatorNestsOnTighterOperator(t *testing.T) {
	// Building "1 + 2" then splicing in "* 3" must nest *under* the
	// existing '+' (since * binds tighter), producing 1 + (2 * 3).
	lhs := &operand{}
	rhsAdd := &operand{}
	root := insertOperator(lhs, "+", rhsAdd)

	rhsMul := &operand{}
	root = insertOperator(root, "*", rhsMul)

	top, ok := root.(*operation)
	if !ok || top.op != "+" {
		t.Fatalf("expected '+' to remain the root, got %+v", root)
	}
	inner, ok := top.rhs.(*operation)
	if !ok || inner.op != "*" {
		t.Fatalf("expected '*' nested as the root's rhs, got %+v", top.rhs)
	}
}
