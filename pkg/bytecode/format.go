// Binary persistence for a compiled Script: the `.pc` ("parsed code")
// format the `compile`/`run` CLI subcommands round-trip through so a
// script can be parsed once and executed many times without re-running
// the lexer and parser.
//
// File layout:
//
//	[Header]
//	  Magic (4 bytes):   "PLNC"
//	  Version (4 bytes): format version, currently 1
//
//	[Instructions section]
//	  Count (4 bytes)
//	  For each instruction:
//	    Op (1 byte)
//	    Str    (4-byte length + UTF-8 bytes)
//	    Int    (8 bytes, big-endian signed)
//	    Double (8 bytes, IEEE 754)
//	    Flag   (1 byte: 0/1)
//
//	[Handler tables]
//	  One section per namespace (Commands, then Functions):
//	    Count (4 bytes)
//	    For each handler:
//	      Name (length-prefixed string)
//	      FirstInstruction (4 bytes)
//	      NumLocals (4 bytes)
//	      Variables count (4 bytes), then for each:
//	        Name (length-prefixed string)
//	        Kind (1 byte: 0=Parameter, 1=Local)
//	        Index (4 bytes)
//
// Every instruction carries all four operand fields regardless of
// which ones its Opcode actually uses — the same "no per-opcode
// payload shape" choice Instruction itself makes, traded for a
// slightly larger file against a much simpler codec with no
// opcode-keyed branching.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicNumber   uint32 = 0x504C4E43 // "PLNC"
	formatVersion uint32 = 1

	// maxDecodeCount bounds any length/count field read from a .pc file
	// before it is used to size an allocation. A corrupt or adversarial
	// file can claim an arbitrary 32-bit count; without this check that
	// value reaches make() directly and can OOM the process long before
	// io.ReadFull gets a chance to fail on the truncated input.
	maxDecodeCount = 1 << 24
)

// Encode serializes script to w in the .pc binary format.
func Encode(script *Script, w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, magicNumber); err != nil {
		return fmt.Errorf("bytecode: write magic: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return fmt.Errorf("bytecode: write version: %w", err)
	}
	if err := writeInstructions(w, script.Instructions); err != nil {
		return fmt.Errorf("bytecode: write instructions: %w", err)
	}
	if err := writeHandlers(w, script.Commands); err != nil {
		return fmt.Errorf("bytecode: write commands: %w", err)
	}
	if err := writeHandlers(w, script.Functions); err != nil {
		return fmt.Errorf("bytecode: write functions: %w", err)
	}
	return nil
}

// Decode reconstructs a Script previously written by Encode.
func Decode(r io.Reader) (*Script, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("bytecode: read magic: %w", err)
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("bytecode: bad magic number %#x", magic)
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("bytecode: read version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", version)
	}

	instructions, err := readInstructions(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read instructions: %w", err)
	}
	commands, err := readHandlers(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read commands: %w", err)
	}
	functions, err := readHandlers(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read functions: %w", err)
	}

	return &Script{Instructions: instructions, Commands: commands, Functions: functions}, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxDecodeCount {
		return "", fmt.Errorf("bytecode: string length %d exceeds maximum %d", n, maxDecodeCount)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeInstructions(w io.Writer, instrs []Instruction) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(instrs))); err != nil {
		return err
	}
	for _, inst := range instrs {
		if err := binary.Write(w, binary.BigEndian, uint8(inst.Op)); err != nil {
			return err
		}
		if err := writeString(w, inst.Str); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int64(inst.Int)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, inst.Double); err != nil {
			return err
		}
		var flag uint8
		if inst.Flag {
			flag = 1
		}
		if err := binary.Write(w, binary.BigEndian, flag); err != nil {
			return err
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count > maxDecodeCount {
		return nil, fmt.Errorf("bytecode: instruction count %d exceeds maximum %d", count, maxDecodeCount)
	}
	instrs := make([]Instruction, count)
	for i := range instrs {
		var op uint8
		if err := binary.Read(r, binary.BigEndian, &op); err != nil {
			return nil, err
		}
		str, err := readString(r)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		var d float64
		if err := binary.Read(r, binary.BigEndian, &d); err != nil {
			return nil, err
		}
		var flag uint8
		if err := binary.Read(r, binary.BigEndian, &flag); err != nil {
			return nil, err
		}
		instrs[i] = Instruction{Op: Opcode(op), Str: str, Int: int(n), Double: d, Flag: flag == 1}
	}
	return instrs, nil
}

func writeHandlers(w io.Writer, handlers map[string]*Handler) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(handlers))); err != nil {
		return err
	}
	for name, h := range handlers {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(h.FirstInstruction)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(h.NumLocals)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(h.Variables))); err != nil {
			return err
		}
		for varName, b := range h.Variables {
			if err := writeString(w, varName); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, uint8(b.Kind)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, uint32(b.Index)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readHandlers(r io.Reader) (map[string]*Handler, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count > maxDecodeCount {
		return nil, fmt.Errorf("bytecode: handler count %d exceeds maximum %d", count, maxDecodeCount)
	}
	handlers := make(map[string]*Handler, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var first, numLocals, varCount uint32
		if err := binary.Read(r, binary.BigEndian, &first); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &numLocals); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &varCount); err != nil {
			return nil, err
		}
		if varCount > maxDecodeCount {
			return nil, fmt.Errorf("bytecode: variable count %d exceeds maximum %d", varCount, maxDecodeCount)
		}
		vars := make(map[string]VariableBinding, varCount)
		for j := uint32(0); j < varCount; j++ {
			varName, err := readString(r)
			if err != nil {
				return nil, err
			}
			var kind uint8
			if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
				return nil, err
			}
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, err
			}
			vars[varName] = VariableBinding{Kind: BindingKind(kind), Index: int(idx)}
		}
		handlers[name] = &Handler{Name: name, FirstInstruction: int(first), NumLocals: int(numLocals), Variables: vars}
	}
	return handlers, nil
}
