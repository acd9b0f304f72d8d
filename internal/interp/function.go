package interp

import (
	"fmt"

	"lox/internal/ast"
)

// Function is a callable: a top-level `fun`, an expression lambda, or a
// class method (bound or unbound). Grounded on original_source's
// LoxFunction: binding a method to an instance/class just wraps its
// closure in one more frame that defines "this" at slot 0.
type Function struct {
	Name          string
	Declaration   *ast.Function
	Closure       *Environment
	IsInitializer bool
	IsMethod      bool
}

// Arity is the number of declared parameters.
func (f *Function) Arity() int {
	return len(f.Declaration.Params)
}

// Bind returns a copy of f whose closure additionally defines "this" (slot
// 0) as this. Used both for instance methods (this is an *Instance) and
// static methods (this is the *Class itself, acting as its own metaclass
// instance).
func (f *Function) Bind(this Value) *Function {
	env := NewEnvironment(f.Closure)
	env.Define(this)
	return &Function{
		Name:          f.Name,
		Declaration:   f.Declaration,
		Closure:       env,
		IsInitializer: f.IsInitializer,
		IsMethod:      f.IsMethod,
	}
}

// Call runs the function body in a fresh frame enclosed by its closure,
// with args bound to parameter slots in order. A `return` inside the body
// surfaces as ExecResult{Signal: SigReturn}, not a Go error, so a runtime
// error and a normal return never need disambiguating after the fact.
func (f *Function) Call(it *Interpreter, args []Value) (Value, error) {
	env := NewEnvironment(f.Closure)
	for _, a := range args {
		env.Define(a)
	}
	result, err := it.executeBlockIn(f.Declaration.Body, env)
	if err != nil {
		return nil, err
	}
	if f.IsInitializer {
		return f.Closure.GetAt(0, 0), nil
	}
	if result.Signal == SigReturn {
		return result.Value, nil
	}
	return nil, nil
}

// String renders the function per the stringification rules: a bound or
// unbound method prints as "<method NAME>", an anonymous lambda as
// "<lambda>", anything else as "<fn NAME>".
func (f *Function) String() string {
	switch {
	case f.IsMethod:
		return fmt.Sprintf("<method %s>", f.Name)
	case f.Name == "":
		return "<lambda>"
	default:
		return fmt.Sprintf("<fn %s>", f.Name)
	}
}
