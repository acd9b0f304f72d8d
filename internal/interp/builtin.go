package interp

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// builtinFn is a fixed-arity native function, grounded on the teacher's
// BuiltinVal: a name plus a Go closure, registered directly into an
// environment rather than going through Function/Declaration at all.
type builtinFn struct {
	name  string
	arity int
	fn    func(args []Value) (Value, error)
}

func (b *builtinFn) Arity() int { return b.arity }

func (b *builtinFn) Call(it *Interpreter, args []Value) (Value, error) {
	return b.fn(args)
}

func (b *builtinFn) String() string { return "<native fn " + b.name + ">" }

var stdin = bufio.NewReader(os.Stdin)

// registerBuiltins installs the language's four built-ins into globals.
func registerBuiltins(globals *Environment) {
	globals.DefineGlobal("clock", &builtinFn{
		name: "clock", arity: 0,
		fn: func(args []Value) (Value, error) {
			return Number(float64(time.Now().UnixNano()) / 1e9), nil
		},
	})

	globals.DefineGlobal("input", &builtinFn{
		name: "input", arity: 0,
		fn: func(args []Value) (Value, error) {
			line, err := stdin.ReadString('\n')
			if err != nil && line == "" {
				return "", nil
			}
			return strings.TrimRight(line, "\r\n"), nil
		},
	})

	globals.DefineGlobal("number", &builtinFn{
		name: "number", arity: 1,
		fn: func(args []Value) (Value, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil
			}
			return Number(f), nil
		},
	})

	globals.DefineGlobal("exit", &builtinFn{
		name: "exit", arity: 0,
		fn: func(args []Value) (Value, error) {
			return nil, errExit
		},
	})
}
