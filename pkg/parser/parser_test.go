package parser

import (
	"testing"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
)

func mustParse(t *testing.T, src string) *bytecode.Script {
	t.Helper()
	tz := lexer.NewTokenizer()
	tz.AddTokens(src, "test.pc")
	script, err := New().Parse(tz)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", src, err)
	}
	return script
}

func opcodes(script *bytecode.Script, from, to int) []bytecode.Opcode {
	var out []bytecode.Opcode
	for _, inst := range script.Instructions[from:to] {
		out = append(out, inst.Op)
	}
	return out
}

func TestParseEmptyHandler(t *testing.T) {
	script := mustParse(t, "on beep\nend beep\n")

	h, ok := script.Lookup("beep", true)
	if !ok {
		t.Fatal("expected command 'beep' to be registered")
	}
	if h.NumLocals != 1 {
		t.Errorf("expected NumLocals=1 (just `result`), got %d", h.NumLocals)
	}
	if script.Instructions[h.FirstInstruction].Op != bytecode.Reserve {
		t.Errorf("expected handler to start with Reserve, got %s", script.Instructions[h.FirstInstruction].Op)
	}
}

func TestParseHandlerIsCaseInsensitive(t *testing.T) {
	script := mustParse(t, "on Beep\nend Beep\n")
	if _, ok := script.Lookup("beep", true); !ok {
		t.Fatal("expected lowercase lookup to find a handler declared as 'Beep'")
	}
}

func TestParseFunctionGoesInFunctionNamespace(t *testing.T) {
	script := mustParse(t, "function double n\nend double\n")
	if _, ok := script.Lookup("double", false); !ok {
		t.Fatal("expected 'double' registered as a function")
	}
	if _, ok := script.Lookup("double", true); ok {
		t.Fatal("expected 'double' absent from the command namespace")
	}
}

func TestParseHandlerParameters(t *testing.T) {
	script := mustParse(t, "on greet name, greeting\nend greet\n")
	h, _ := script.Lookup("greet", true)

	nameBinding, ok := h.Variables["name"]
	if !ok || nameBinding.Kind != bytecode.BindingParameter || nameBinding.Index != 1 {
		t.Errorf("expected 'name' bound as Parameter(1), got %+v, ok=%v", nameBinding, ok)
	}
	greetBinding, ok := h.Variables["greeting"]
	if !ok || greetBinding.Kind != bytecode.BindingParameter || greetBinding.Index != 2 {
		t.Errorf("expected 'greeting' bound as Parameter(2), got %+v, ok=%v", greetBinding, ok)
	}
}

func TestParsePutIntoLocalAllocatesAndReuses(t *testing.T) {
	script := mustParse(t, "on main\n  put 1 into x\n  put 2 into x\nend main\n")
	h, _ := script.Lookup("main", true)

	if h.NumLocals != 2 {
		t.Fatalf("expected 2 locals (result, x), got %d", h.NumLocals)
	}
	xBinding, ok := h.Variables["x"]
	if !ok || xBinding.Kind != bytecode.BindingLocal || xBinding.Index != 3 {
		t.Errorf("expected 'x' bound as StackValueBPRelative(3), got %+v, ok=%v", xBinding, ok)
	}
}

func TestParseGenericCommandCallEmitsCall(t *testing.T) {
	script := mustParse(t, "on main\n  quoted \"hi\"\nend main\n")
	found := false
	for _, inst := range script.Instructions {
		if inst.Op == bytecode.Call && inst.Str == "quoted" && inst.Flag {
			found = true
		}
	}
	if !found {
		t.Error("expected a command Call to 'quoted' in the emitted instructions")
	}
}

func TestParseReturnEmitsExpressionThenReturn(t *testing.T) {
	script := mustParse(t, "function one\n  return 1\nend one\n")
	h, _ := script.Lookup("one", false)

	var sawReturn bool
	for _, inst := range script.Instructions[h.FirstInstruction:] {
		if inst.Op == bytecode.Return {
			sawReturn = true
			if inst.Flag {
				t.Error("expected a function's Return to have Flag=false")
			}
		}
	}
	if !sawReturn {
		t.Error("expected a Return instruction")
	}
}

func TestParseIfWithoutElseSingleLine(t *testing.T) {
	script := mustParse(t, "on main\n  if 1 then put 2 into x\nend main\n")
	var sawJumpFalse bool
	for _, inst := range script.Instructions {
		if inst.Op == bytecode.JumpByIfFalse {
			sawJumpFalse = true
		}
	}
	if !sawJumpFalse {
		t.Error("expected a JumpByIfFalse for the single-line if")
	}
}

func TestParseIfWithElseMultiline(t *testing.T) {
	script := mustParse(t, `on main
  if 1 then
    put 2 into x
  else
    put 3 into x
  end if
end main
`)
	var falseJumps, unconditionalJumps int
	for _, inst := range script.Instructions {
		switch inst.Op {
		case bytecode.JumpByIfFalse:
			falseJumps++
		case bytecode.JumpBy:
			unconditionalJumps++
		}
	}
	if falseJumps != 1 {
		t.Errorf("expected exactly 1 JumpByIfFalse, got %d", falseJumps)
	}
	if unconditionalJumps != 1 {
		t.Errorf("expected exactly 1 JumpBy (skipping the else branch), got %d", unconditionalJumps)
	}
}

func TestParseRepeatWhileJumpsBackToCondition(t *testing.T) {
	script := mustParse(t, `on main
  repeat while x < 10
    put 1 into x
  end repeat
end main
`)
	var sawBack, sawFalse bool
	for i, inst := range script.Instructions {
		if inst.Op == bytecode.JumpBy && inst.Int < 0 {
			sawBack = true
			target := i + inst.Int
			if target < 0 || target >= len(script.Instructions) {
				t.Errorf("JumpBy at %d targets out-of-range index %d", i, target)
			}
		}
		if inst.Op == bytecode.JumpByIfFalse {
			sawFalse = true
		}
	}
	if !sawBack || !sawFalse {
		t.Error("expected both a backward JumpBy and a JumpByIfFalse in a repeat-while loop")
	}
}

func TestParseRepeatWithSynthesizesPutAndStep(t *testing.T) {
	script := mustParse(t, `on main
  repeat with i from 1 to 3
    put i into x
  end repeat
end main
`)
	var putCalls, addCalls int
	for _, inst := range script.Instructions {
		if inst.Op == bytecode.Call && inst.Flag {
			switch inst.Str {
			case "put":
				putCalls++
			case "add":
				addCalls++
			}
		}
	}
	if putCalls < 2 { // one to init i, one for `put i into x`
		t.Errorf("expected at least 2 put calls, got %d", putCalls)
	}
	if addCalls != 1 {
		t.Errorf("expected exactly 1 add call for the step, got %d", addCalls)
	}
}

func TestParseUnknownTopLevelLineIsSkipped(t *testing.T) {
	script := mustParse(t, "this is not a handler\non beep\nend beep\n")
	if _, ok := script.Lookup("beep", true); !ok {
		t.Error("expected parsing to skip an unrecognized top-level line and still find 'beep'")
	}
}
