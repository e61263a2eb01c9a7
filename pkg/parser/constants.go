package parser

import (
	"math"
	"strings"

	"github.com/ahobson/parlance/pkg/bytecode"
)

// constantInstruction recognizes the handful of identifier constants
// parse_value checks before anything else (spec §4.3.2): quote,
// return, linefeed/newline, tab, pi.
func constantInstruction(name string) (bytecode.Instruction, bool) {
	switch strings.ToLower(name) {
	case "quote":
		return bytecode.Instruction{Op: bytecode.PushString, Str: "\""}, true
	case "return":
		return bytecode.Instruction{Op: bytecode.PushString, Str: "\r"}, true
	case "linefeed", "newline":
		return bytecode.Instruction{Op: bytecode.PushString, Str: "\n"}, true
	case "tab":
		return bytecode.Instruction{Op: bytecode.PushString, Str: "\t"}, true
	case "pi":
		return bytecode.Instruction{Op: bytecode.PushDouble, Double: math.Pi}, true
	default:
		return bytecode.Instruction{}, false
	}
}
