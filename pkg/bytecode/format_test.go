package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewScript()
	original.Emit(Instruction{Op: Reserve, Int: 1})
	original.Emit(Instruction{Op: PushInteger, Int: 42})
	original.Emit(Instruction{Op: Return, Flag: true})
	original.Commands["beep"] = &Handler{
		Name:             "beep",
		FirstInstruction: 0,
		NumLocals:        1,
		Variables: map[string]VariableBinding{
			"result": {Kind: BindingLocal, Index: 2},
		},
	}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Encode wrote no bytes")
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(decoded.Instructions) != len(original.Instructions) {
		t.Fatalf("expected %d instructions, got %d", len(original.Instructions), len(decoded.Instructions))
	}
	for i, inst := range original.Instructions {
		if decoded.Instructions[i] != inst {
			t.Errorf("instruction %d: expected %+v, got %+v", i, inst, decoded.Instructions[i])
		}
	}

	h, ok := decoded.Lookup("beep", true)
	if !ok {
		t.Fatal("expected decoded script to still have the 'beep' command")
	}
	if h.NumLocals != 1 || h.FirstInstruction != 0 {
		t.Errorf("unexpected decoded handler: %+v", h)
	}
	if b, ok := h.Variables["result"]; !ok || b.Index != 2 || b.Kind != BindingLocal {
		t.Errorf("expected 'result' local binding to survive round-trip, got %+v, ok=%v", b, ok)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 0, 0, 0, 1})
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected Decode to reject a buffer with the wrong magic number")
	}
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	// A corrupt or adversarial instruction count must be rejected before
	// it reaches make([]Instruction, count); otherwise a single crafted
	// 4-byte count can force a multi-gigabyte allocation attempt.
	var buf bytes.Buffer
	buf.Write([]byte{0x50, 0x4C, 0x4E, 0x43}) // magic
	buf.Write([]byte{0, 0, 0, 1})             // version
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // instruction count

	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected Decode to reject an oversized instruction count")
	}
}

func TestInstructionStringFormsMatchOperandShape(t *testing.T) {
	tests := []struct {
		inst Instruction
		want string
	}{
		{Instruction{Op: PushString, Str: "hi"}, `PUSH_STRING "hi"`},
		{Instruction{Op: PushInteger, Int: 42}, "PUSH_INTEGER 42"},
		{Instruction{Op: PushDouble, Double: 3.5}, "PUSH_DOUBLE 3.5"},
		{Instruction{Op: Call, Str: "put", Flag: true}, "CALL put (command)"},
		{Instruction{Op: Call, Str: "+", Flag: false}, "CALL + (function)"},
		{Instruction{Op: Return, Flag: false}, "RETURN (function)"},
		{Instruction{Op: PushProperty, Str: "name"}, `PUSH_PROPERTY "name"`},
	}
	for _, tt := range tests {
		if got := tt.inst.String(); got != tt.want {
			t.Errorf("Instruction{%v}.String() = %q, want %q", tt.inst.Op, got, tt.want)
		}
	}
}

func TestScriptEmitReturnsSequentialIndices(t *testing.T) {
	s := NewScript()
	i0 := s.Emit(Instruction{Op: PushUnset})
	i1 := s.Emit(Instruction{Op: PushInteger, Int: 1})
	if i0 != 0 || i1 != 1 {
		t.Fatalf("expected sequential indices 0,1, got %d,%d", i0, i1)
	}
	if len(s.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(s.Instructions))
	}
}

func TestScriptLookupRespectsNamespace(t *testing.T) {
	s := NewScript()
	s.Commands["put"] = &Handler{Name: "put", FirstInstruction: 3}
	s.Functions["put"] = &Handler{Name: "put", FirstInstruction: 7}

	cmd, ok := s.Lookup("put", true)
	if !ok || cmd.FirstInstruction != 3 {
		t.Errorf("expected command 'put' at instruction 3, got %+v, ok=%v", cmd, ok)
	}
	fn, ok := s.Lookup("put", false)
	if !ok || fn.FirstInstruction != 7 {
		t.Errorf("expected function 'put' at instruction 7, got %+v, ok=%v", fn, ok)
	}
}

func TestScriptLookupMissing(t *testing.T) {
	s := NewScript()
	if _, ok := s.Lookup("nope", true); ok {
		t.Error("expected lookup of an undefined command to fail")
	}
}

func TestDisassembleLabelsHandlerStarts(t *testing.T) {
	s := NewScript()
	s.Emit(Instruction{Op: Reserve, Int: 1})
	s.Emit(Instruction{Op: PushUnset})
	s.Emit(Instruction{Op: Return, Flag: true})
	s.Commands["beep"] = &Handler{Name: "beep", FirstInstruction: 0, NumLocals: 1}

	out := s.Disassemble()
	if !strings.Contains(out, "on beep:") {
		t.Errorf("expected a handler header in disassembly, got:\n%s", out)
	}
	if !strings.Contains(out, "RESERVE 1") {
		t.Errorf("expected the Reserve instruction to appear, got:\n%s", out)
	}
}
