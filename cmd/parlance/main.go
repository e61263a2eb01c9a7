// Command parlance is the CLI front end for the language package: a
// hand-dispatched `switch os.Args[1]`, with a `tokens` subcommand and
// a REPL that detects a piped stdin via go-isatty instead of always
// printing a prompt banner.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ahobson/parlance/pkg/bytecode"
	"github.com/ahobson/parlance/pkg/lexer"
	"github.com/ahobson/parlance/pkg/parser"
	"github.com/ahobson/parlance/pkg/runtime"
	"github.com/ahobson/parlance/pkg/stdlib"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		runREPL()
		return
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Printf("parlance version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	case "repl":
		runREPL()
	case "run":
		requireArg(2, "run <file>")
		runFile(os.Args[2])
	case "compile":
		requireArg(2, "compile <input.pl> [output.pc]")
		out := ""
		if len(os.Args) >= 4 {
			out = os.Args[3]
		}
		compileFile(os.Args[2], out)
	case "disassemble", "disasm":
		requireArg(2, "disassemble <file.pc>")
		disassembleFile(os.Args[2])
	case "tokens":
		requireArg(2, "tokens <file>")
		tokensFile(os.Args[2])
	default:
		runFile(os.Args[1])
	}
}

func requireArg(n int, usage string) {
	if len(os.Args) <= n {
		fmt.Fprintf(os.Stderr, "Error: missing argument\n\nUsage: parlance %s\n", usage)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("parlance - a small HyperTalk-like scripting language")
	fmt.Println("\nUsage:")
	fmt.Println("  parlance                       Start interactive REPL")
	fmt.Println("  parlance [file]                Run a .pl or .pc file")
	fmt.Println("  parlance run [file]            Run a .pl or .pc file")
	fmt.Println("  parlance compile <in> [out]    Compile .pl source to .pc bytecode")
	fmt.Println("  parlance disassemble <file>    Disassemble a .pc bytecode file")
	fmt.Println("  parlance tokens <file>         Print the token stream for a .pl file")
	fmt.Println("  parlance repl                  Start interactive REPL")
	fmt.Println("  parlance version               Show version")
	fmt.Println("  parlance help                  Show this help")
	fmt.Println("\nFile Extensions:")
	fmt.Println("  .pl    Source code files (text)")
	fmt.Println("  .pc    Compiled bytecode files (binary)")
}

// newContext builds a RunContext with the illustrative stdlib
// registered, writing `output` to stdout.
func newContext(script *bytecode.Script) *runtime.RunContext {
	ctx := runtime.NewRunContext(script)
	stdlib.Register(ctx, os.Stdout)
	return ctx
}

// runFile runs a .pl source file or a .pc bytecode file, detected by
// extension, invoking the script's `main` command once loaded.
func runFile(filename string) {
	script := loadScript(filename)
	ctx := newContext(script)
	if _, err := ctx.Run("main", true); err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		os.Exit(1)
	}
}

func loadScript(filename string) *bytecode.Script {
	if filepath.Ext(filename) == ".pc" {
		return loadBytecodeFile(filename)
	}
	return compileSourceFile(filename)
}

func compileSourceFile(filename string) *bytecode.Script {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	tz := lexer.NewTokenizer()
	tz.AddTokens(string(data), filename)

	script, err := parser.New().Parse(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}
	return script
}

func loadBytecodeFile(filename string) *bytecode.Script {
	file, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	script, err := bytecode.Decode(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bytecode: %v\n", err)
		os.Exit(1)
	}
	return script
}

// compileFile parses a .pl source file and writes its compiled .pc
// form, defaulting the output name by swapping the extension.
func compileFile(inputFile, outputFile string) {
	if outputFile == "" {
		if filepath.Ext(inputFile) == ".pl" {
			outputFile = inputFile[:len(inputFile)-len(".pl")] + ".pc"
		} else {
			outputFile = inputFile + ".pc"
		}
	}

	script := compileSourceFile(inputFile)

	outFile, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()

	if err := bytecode.Encode(script, outFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing bytecode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Compiled %s -> %s\n", inputFile, outputFile)
}

func disassembleFile(filename string) {
	script := loadScript(filename)
	fmt.Printf("=== Bytecode Disassembly: %s ===\n\n", filename)
	fmt.Print(script.Disassemble())
}

func tokensFile(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	tz := lexer.NewTokenizer()
	tz.AddTokens(string(data), filename)
	for _, tok := range tz.Tokens() {
		fmt.Println(tok.String())
	}
}

// runREPL starts an interactive loop: each complete line is parsed and
// run as its own one-off script sharing a persistent RunContext, so
// variables a handler puts into don't survive between lines (there is
// no top-level frame to hold them) but registered builtins do. The
// prompt banner is suppressed when stdin isn't a terminal (go-isatty),
// matching how a piped-in script is expected to behave silently.
func runREPL() {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Printf("parlance REPL v%s\n", version)
		fmt.Println("Type ':help' for help, ':quit' or ':exit' to exit")
		fmt.Println()
	}

	ctx := newContext(bytecode.NewScript())
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("parlance> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case ":quit", ":exit":
			if interactive {
				fmt.Println("Goodbye!")
			}
			return
		case ":help":
			printREPLHelp()
			continue
		case "":
			continue
		}
		evalREPLLine(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

// evalREPLLine wraps a bare line in a throwaway `on main` handler,
// parses it against a fresh Script sharing ctx's builtins, and runs
// it. Errors are printed but never stop the loop.
func evalREPLLine(ctx *runtime.RunContext, line string) {
	tz := lexer.NewTokenizer()
	tz.AddTokens("on main\n"+line+"\nend main\n", "<repl>")

	script, err := parser.New().Parse(tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		return
	}

	ctx.Script = script
	if _, err := ctx.Run("main", true); err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
	}
	ctx.Stack = ctx.Stack[:0] // each line is its own synthetic handler; nothing to carry forward
}

func printREPLHelp() {
	fmt.Println("parlance REPL Help")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  :help     Show this help message")
	fmt.Println("  :quit     Exit the REPL")
	fmt.Println("  :exit     Exit the REPL")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  - Enter one statement per line, as if inside an `on main` handler")
	fmt.Println("  - e.g. output \"hi\" && 1 + 2")
	fmt.Println()
}
