// Command lox is the CLI entry point for the Lox tree-walking interpreter.
//
// Usage:
//
//	lox              Start the interactive REPL
//	lox <script>     Run a source file
package main

import (
	"fmt"
	"io"
	"os"

	"lox/internal/diag"
	"lox/internal/interp"
	"lox/internal/parser"
	"lox/internal/resolver"
	"lox/internal/scanner"
)

// Exit codes follow the sysexits.h convention jlox borrows: 64 for a CLI
// usage error, 65 for a static (scan/parse/resolve) error, 70 for a runtime
// error. A static error takes precedence over a runtime one if somehow both
// get recorded against the same sink.
const (
	exitUsage   = 64
	exitStatic  = 65
	exitRuntime = 70
)

func main() {
	switch len(os.Args) {
	case 1:
		runRepl()
	case 2:
		os.Exit(runFile(os.Args[1]))
	default:
		fmt.Fprintln(os.Stderr, "Usage: lox [script]")
		os.Exit(exitUsage)
	}
}

func runFile(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read file %s: %v\n", path, err)
		os.Exit(exitUsage)
	}

	sink := diag.NewSink(os.Stderr)
	run(string(source), sink, os.Stdout)

	switch {
	case sink.HadError:
		return exitStatic
	case sink.HadRuntimeError:
		return exitRuntime
	default:
		return 0
	}
}

// run drives one full Scanner → Parser → Resolver → Interpreter pass over
// source, stopping early at whichever stage first reports a static error.
func run(source string, sink *diag.Sink, stdout io.Writer) {
	tokens := scanner.New(source, sink).ScanTokens()
	if sink.HadError {
		return
	}

	stmts := parser.New(tokens, sink).Parse()
	if sink.HadError {
		return
	}

	table := resolver.New(sink).Resolve(stmts)
	if sink.HadError {
		return
	}

	it := interp.NewInterpreter(stdout, sink)
	it.Interpret(stmts, table)
}
