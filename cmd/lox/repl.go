package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"lox/internal/diag"
	"lox/internal/interp"
	"lox/internal/parser"
	"lox/internal/resolver"
	"lox/internal/scanner"
)

// runRepl drives the interactive prompt. A single Interpreter persists
// across lines so top-level `var`/`fun`/`class` declarations accumulate in
// its global environment, the way they would in one continuously-growing
// script; the resolver, by contrast, is rebuilt fresh per line, since its
// scope stack only matters for locals and every REPL-level name is global.
func runRepl() {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".lox_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit()",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed: %v\n", err)
		os.Exit(exitUsage)
	}
	defer rl.Close()

	out := rl.Stdout()
	sink := diag.NewSink(rl.Stderr())
	it := interp.NewInterpreter(out, sink)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
			}
			return
		}

		if isExitLine(line) {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		sink.Reset()
		evalReplLine(line, sink, it, out)
	}
}

// isExitLine reports whether line, once whitespace and semicolons are
// stripped, is exactly "exit()" — the REPL's own termination sentinel,
// distinct from calling the exit() builtin mid-expression.
func isExitLine(line string) bool {
	trimmed := strings.Trim(strings.TrimSpace(line), ";")
	return strings.TrimSpace(trimmed) == "exit()"
}

// evalReplLine runs one line's full scan → parse → resolve → interpret
// pass, then, if the line ended in a bare trailing expression, evaluates it
// and prints "= <value>" per §6's REPL expression-mode contract.
func evalReplLine(line string, sink *diag.Sink, it *interp.Interpreter, out io.Writer) {
	tokens := scanner.New(line, sink).ScanTokens()
	if sink.HadError {
		return
	}

	stmts, trailing := parser.New(tokens, sink).ParseRepl()
	if sink.HadError {
		return
	}

	table := resolver.New(sink).Resolve(stmts)
	if trailing != nil {
		for k, v := range resolver.New(sink).ResolveExpr(trailing) {
			table[k] = v
		}
	}
	if sink.HadError {
		return
	}

	it.Interpret(stmts, table)
	if trailing == nil || sink.HadRuntimeError {
		return
	}
	if v, ok := it.InterpretExpr(trailing, table); ok {
		fmt.Fprintf(out, "= %s\n", interp.Stringify(v))
	}
}
