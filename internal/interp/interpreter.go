package interp

import (
	"fmt"
	"io"
	"math"
	"strings"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/resolver"
	"lox/internal/token"
)

// ============================================================
// Control flow signals
// ============================================================

// ExecSignal is a non-local control-flow unwind raised by a statement.
// These are distinct from RuntimeError: each is caught exactly once by the
// construct that owns it (while catches Break/Continue, a function call
// catches Return) and never reaches the diagnostic sink.
type ExecSignal int

const (
	SigNone ExecSignal = iota
	SigReturn
	SigBreak
	SigContinue
)

// ExecResult carries a control-flow signal and, for SigReturn, its value.
type ExecResult struct {
	Signal ExecSignal
	Value  Value
}

var resultNone = ExecResult{Signal: SigNone}

// ============================================================
// Runtime error / Exit unwind
// ============================================================

// RuntimeError is a Lox-level runtime error: wrong operand types, an
// undefined property, a call arity mismatch, and so on. Token anchors it to
// a source line for the diagnostic sink's "<message>\n[line N]" format.
type RuntimeError struct {
	Token   token.Token
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func runtimeErr(tok token.Token, format string, args ...any) *RuntimeError {
	return &RuntimeError{Token: tok, Message: fmt.Sprintf(format, args...)}
}

// exitUnwind is exit()'s non-error control signal: it propagates through
// the normal (Value, error) chain like a RuntimeError would, but Interpret
// absorbs it silently instead of reporting it.
type exitUnwind struct{}

func (exitUnwind) Error() string { return "exit" }

var errExit error = exitUnwind{}

// IsExit reports whether err is the sentinel exit() raised.
func IsExit(err error) bool {
	_, ok := err.(exitUnwind)
	return ok
}

// callable is anything `callee(args...)` can invoke: a user function, a
// lambda, a bound method, or a class (construction).
type callable interface {
	Arity() int
	Call(it *Interpreter, args []Value) (Value, error)
}

// ============================================================
// Interpreter
// ============================================================

// Interpreter walks a resolved AST and produces observable effects: writes
// to stdout, and either a clean finish, an absorbed exit(), or a runtime
// error reported to sink.
type Interpreter struct {
	globals     *Environment
	env         *Environment
	resolutions map[ast.Expr]resolver.Resolution
	sink        *diag.Sink
	out         io.Writer
}

// NewInterpreter returns an Interpreter that writes `print` output to out
// and reports runtime errors to sink. Built-ins are registered globally.
func NewInterpreter(out io.Writer, sink *diag.Sink) *Interpreter {
	globals := NewGlobalEnvironment()
	it := &Interpreter{globals: globals, env: globals, sink: sink, out: out}
	registerBuiltins(globals)
	return it
}

// Globals exposes the top-level environment, e.g. for a REPL driver that
// wants to inspect bindings between lines.
func (it *Interpreter) Globals() *Environment { return it.globals }

// Interpret runs a full statement list against the given resolution table.
// It stops at the first runtime error (reporting it to sink) or absorbed
// exit(), matching §7's "a runtime error terminates the current top-level
// interpret call" contract.
func (it *Interpreter) Interpret(stmts []ast.Stmt, resolutions map[ast.Expr]resolver.Resolution) {
	it.resolutions = resolutions
	for _, stmt := range stmts {
		if _, err := it.execStmt(stmt); err != nil {
			it.reportIfRuntimeError(err)
			return
		}
	}
}

// InterpretExpr evaluates a single bare expression (a REPL line that ended
// without ';') and returns its value for the driver to print as `= value`.
// The second return value is false if evaluation raised an error or exit().
func (it *Interpreter) InterpretExpr(expr ast.Expr, resolutions map[ast.Expr]resolver.Resolution) (Value, bool) {
	it.resolutions = resolutions
	v, err := it.evalExpr(expr)
	if err != nil {
		it.reportIfRuntimeError(err)
		return nil, false
	}
	return v, true
}

func (it *Interpreter) reportIfRuntimeError(err error) {
	if IsExit(err) {
		return
	}
	if re, ok := err.(*RuntimeError); ok {
		it.sink.Runtime(re.Token.Line, "%s", re.Message)
		return
	}
	it.sink.Runtime(0, "%s", err.Error())
}

// ============================================================
// Variable resolution lookup
// ============================================================

func (it *Interpreter) lookupVariable(name token.Token, expr ast.Expr) (Value, error) {
	if res, ok := it.resolutions[expr]; ok {
		return it.env.GetAt(res.Depth, res.Slot), nil
	}
	if v, ok := it.globals.GetGlobal(name.Lexeme); ok {
		return v, nil
	}
	return nil, runtimeErr(name, "Undefined variable '%s'.", name.Lexeme)
}

func (it *Interpreter) assignVariable(name token.Token, expr ast.Expr, value Value) error {
	if res, ok := it.resolutions[expr]; ok {
		it.env.AssignAt(res.Depth, res.Slot, value)
		return nil
	}
	if it.globals.AssignGlobal(name.Lexeme, value) {
		return nil
	}
	return runtimeErr(name, "Undefined variable '%s'.", name.Lexeme)
}

// defineBinding declares name in whichever frame is current: a name-keyed
// entry at the global frame, or the next positional slot in a local frame.
// Var, FunctionStmt, and Class declarations all go through this.
func (it *Interpreter) defineBinding(name token.Token, v Value) {
	if it.env == it.globals {
		it.globals.DefineGlobal(name.Lexeme, v)
	} else {
		it.env.Define(v)
	}
}

// resolveSuperAndThis recovers both halves of a `super` reference: the
// superclass (at the resolved depth/slot) and `this` (always one frame
// further in, at slot 0, since resolveClass nests the instance scope
// directly inside the super scope).
func (it *Interpreter) resolveSuperAndThis(keyword token.Token, expr ast.Expr) (*Class, Value, error) {
	res, ok := it.resolutions[expr]
	if !ok {
		return nil, nil, runtimeErr(keyword, "Can't use 'super' here.")
	}
	superclass, _ := it.env.GetAt(res.Depth, res.Slot).(*Class)
	thisVal := it.env.GetAt(res.Depth-1, 0)
	return superclass, thisVal, nil
}

// ============================================================
// Statement execution
// ============================================================

func (it *Interpreter) execStmt(stmt ast.Stmt) (ExecResult, error) {
	switch s := stmt.(type) {
	case *ast.Expression:
		_, err := it.evalExpr(s.Expr)
		return resultNone, err

	case *ast.Print:
		v, err := it.evalExpr(s.Expr)
		if err != nil {
			return resultNone, err
		}
		fmt.Fprintln(it.out, Stringify(v))
		return resultNone, nil

	case *ast.Var:
		var v Value
		if s.Initializer != nil {
			var err error
			v, err = it.evalExpr(s.Initializer)
			if err != nil {
				return resultNone, err
			}
		}
		it.defineBinding(s.Name, v)
		return resultNone, nil

	case *ast.Block:
		return it.executeBlockIn(s.Stmts, NewEnvironment(it.env))

	case *ast.If:
		cond, err := it.evalExpr(s.Cond)
		if err != nil {
			return resultNone, err
		}
		if IsTruthy(cond) {
			return it.execStmt(s.Then)
		}
		if s.Else != nil {
			return it.execStmt(s.Else)
		}
		return resultNone, nil

	case *ast.While:
		return it.execWhile(s)

	case *ast.Break:
		return ExecResult{Signal: SigBreak}, nil

	case *ast.Continue:
		return ExecResult{Signal: SigContinue}, nil

	case *ast.Return:
		var v Value
		if s.Value != nil {
			var err error
			v, err = it.evalExpr(s.Value)
			if err != nil {
				return resultNone, err
			}
		}
		return ExecResult{Signal: SigReturn, Value: v}, nil

	case *ast.FunctionStmt:
		fn := &Function{Name: s.Name.Lexeme, Declaration: s.Fn, Closure: it.env}
		it.defineBinding(s.Name, fn)
		return resultNone, nil

	case *ast.Class:
		return it.execClass(s)

	case *ast.InitSuper:
		return it.execInitSuper(s)
	}
	return resultNone, fmt.Errorf("unhandled statement type %T", stmt)
}

// executeBlockIn runs stmts against env, restoring the previous environment
// on the way out. Used by Block statements and by Function.Call, which
// supplies its own frame with parameters already bound.
func (it *Interpreter) executeBlockIn(stmts []ast.Stmt, env *Environment) (ExecResult, error) {
	previous := it.env
	it.env = env
	defer func() { it.env = previous }()

	for _, stmt := range stmts {
		result, err := it.execStmt(stmt)
		if err != nil {
			return resultNone, err
		}
		if result.Signal != SigNone {
			return result, nil
		}
	}
	return resultNone, nil
}

// execWhile also drives `for`'s desugared increment: ForIncrement runs once
// per iteration after the body, including after `continue`, but not after
// `break` — see the design note on the double-increment bug it avoids.
func (it *Interpreter) execWhile(s *ast.While) (ExecResult, error) {
	for {
		cond, err := it.evalExpr(s.Cond)
		if err != nil {
			return resultNone, err
		}
		if !IsTruthy(cond) {
			return resultNone, nil
		}

		result, err := it.execStmt(s.Body)
		if err != nil {
			return resultNone, err
		}

		switch result.Signal {
		case SigBreak:
			return resultNone, nil
		case SigReturn:
			return result, nil
		}

		if s.ForIncrement != nil {
			if _, err := it.evalExpr(s.ForIncrement); err != nil {
				return resultNone, err
			}
		}
	}
}

func (it *Interpreter) execClass(s *ast.Class) (ExecResult, error) {
	var superclass *Class
	if s.Superclass != nil {
		v, err := it.lookupVariable(s.Superclass.Name, s.Superclass)
		if err != nil {
			return resultNone, err
		}
		sc, ok := v.(*Class)
		if !ok {
			return resultNone, runtimeErr(s.Superclass.Name, "Superclass must be a class.")
		}
		superclass = sc
	}

	// Methods close over classEnv rather than it.env directly so a "super"
	// scope can sit between them and the enclosing code, exactly mirroring
	// the resolver's scope nesting (see resolveClass).
	classEnv := it.env
	if superclass != nil {
		classEnv = NewEnvironment(it.env)
		classEnv.Define(superclass) // slot 0 = "super"
	}

	methods := make(map[string]*Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = &Function{
			Name:          m.Name.Lexeme,
			Declaration:   m.Fn,
			Closure:       classEnv,
			IsInitializer: m.Name.Lexeme == "init",
			IsMethod:      true,
		}
	}

	classMethods := make(map[string]*Function, len(s.ClassMethods))
	for _, m := range s.ClassMethods {
		classMethods[m.Name.Lexeme] = &Function{
			Name: m.Name.Lexeme, Declaration: m.Fn, Closure: classEnv, IsMethod: true,
		}
	}

	var metaSuper *Class
	if superclass != nil {
		metaSuper = superclass.Metaclass
	}
	metaclass := &Class{Name: s.Name.Lexeme + " metaclass", Superclass: metaSuper, Methods: classMethods}
	class := &Class{Name: s.Name.Lexeme, Superclass: superclass, Methods: methods, Metaclass: metaclass}

	// The class's own methods don't run until called, by which point its
	// name is already bound here, so self-reference (a static factory
	// method returning `new` instances of its own class) just works.
	it.defineBinding(s.Name, class)
	return resultNone, nil
}

// execInitSuper runs a bare `super(...)` statement, found only at the start
// of a subclass's initializer. A superclass with no declared init is an
// implicit 0-arity no-op constructor: calling it with arguments is still an
// arity-mismatch runtime error, but calling it with none is a no-op.
func (it *Interpreter) execInitSuper(s *ast.InitSuper) (ExecResult, error) {
	superclass, thisVal, err := it.resolveSuperAndThis(s.Keyword, s.Call.Callee)
	if err != nil {
		return resultNone, err
	}

	args, err := it.evalArgs(s.Call.Args)
	if err != nil {
		return resultNone, err
	}

	init, ok := superclass.FindMethod("init")
	if !ok {
		if len(args) != 0 {
			return resultNone, runtimeErr(s.Keyword, "Expected 0 arguments but got%d.", len(args))
		}
		return resultNone, nil
	}
	if len(args) != init.Arity() {
		return resultNone, runtimeErr(s.Keyword, "Expected %d arguments but got%d.", init.Arity(), len(args))
	}
	_, err = init.Bind(thisVal).Call(it, args)
	return resultNone, err
}

// ============================================================
// Expression evaluation
// ============================================================

func (it *Interpreter) evalExpr(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		if f, ok := e.Value.(float64); ok {
			return Number(f), nil
		}
		return e.Value, nil
	case *ast.Variable:
		return it.lookupVariable(e.Name, e)
	case *ast.Assign:
		return it.evalAssign(e)
	case *ast.Unary:
		return it.evalUnary(e)
	case *ast.Binary:
		return it.evalBinary(e)
	case *ast.Logical:
		return it.evalLogical(e)
	case *ast.Grouping:
		return it.evalExpr(e.Inner)
	case *ast.Conditional:
		return it.evalConditional(e)
	case *ast.Call:
		return it.evalCall(e)
	case *ast.Get:
		return it.evalGet(e)
	case *ast.Set:
		return it.evalSet(e)
	case *ast.This:
		return it.lookupVariable(e.Keyword, e)
	case *ast.Super:
		return it.evalSuper(e)
	case *ast.Function:
		return &Function{Declaration: e, Closure: it.env}, nil
	}
	return nil, fmt.Errorf("unhandled expression type %T", expr)
}

func (it *Interpreter) evalAssign(e *ast.Assign) (Value, error) {
	value, err := it.evalExpr(e.Value)
	if err != nil {
		return nil, err
	}
	if err := it.assignVariable(e.Name, e, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (it *Interpreter) evalUnary(e *ast.Unary) (Value, error) {
	right, err := it.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op.Kind {
	case token.BANG:
		return !IsTruthy(right), nil
	case token.MINUS:
		n, ok := right.(Number)
		if !ok {
			return nil, runtimeErr(e.Op, "Operand must be a number.")
		}
		return -n, nil
	}
	return nil, runtimeErr(e.Op, "Unknown unary operator.")
}

func (it *Interpreter) evalBinary(e *ast.Binary) (Value, error) {
	left, err := it.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := it.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op.Kind {
	case token.COMMA:
		return right, nil
	case token.PLUS:
		return it.evalPlus(e.Op, left, right)
	case token.MINUS:
		l, r, err := it.numberOperands(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l - r, nil
	case token.STAR:
		l, r, err := it.numberOperands(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l * r, nil
	case token.SLASH:
		l, r, err := it.numberOperands(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l / r, nil
	case token.PERCENT:
		l, r, err := it.numberOperands(e.Op, left, right)
		if err != nil {
			return nil, err
		}
		return Number(math.Mod(float64(l), float64(r))), nil
	case token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL:
		return it.evalComparison(e.Op, left, right)
	case token.BANG_EQUAL:
		return !IsEqual(left, right), nil
	case token.EQUAL_EQUAL:
		return IsEqual(left, right), nil
	}
	return nil, runtimeErr(e.Op, "Unknown operator.")
}

func (it *Interpreter) evalPlus(op token.Token, left, right Value) (Value, error) {
	if l, ok := left.(Number); ok {
		if r, ok := right.(Number); ok {
			return l + r, nil
		}
	}
	_, lstr := left.(string)
	_, rstr := right.(string)
	if lstr || rstr {
		return Stringify(left) + Stringify(right), nil
	}
	return nil, runtimeErr(op, "Operands must be two numbers or include a string.")
}

func (it *Interpreter) numberOperands(op token.Token, left, right Value) (Number, Number, error) {
	l, lok := left.(Number)
	r, rok := right.(Number)
	if !lok || !rok {
		return 0, 0, runtimeErr(op, "Operands must be numbers.")
	}
	return l, r, nil
}

// evalComparison implements the number/string comparison quirk: two
// numbers compare numerically; a mixed number/string pair (or two strings)
// stringifies both sides and compares lexicographically. Anything else
// (booleans, nil, callables, instances) is a runtime error.
func (it *Interpreter) evalComparison(op token.Token, left, right Value) (Value, error) {
	if ln, ok := left.(Number); ok {
		if rn, ok := right.(Number); ok {
			return applyComparison(op.Kind, compareNumbers(ln, rn)), nil
		}
	}
	if !isComparable(left) || !isComparable(right) {
		return nil, runtimeErr(op, "Only strings or numbers are comparable.")
	}
	cmp := strings.Compare(Stringify(left), Stringify(right))
	return applyComparison(op.Kind, cmp), nil
}

func isComparable(v Value) bool {
	switch v.(type) {
	case Number, string:
		return true
	}
	return false
}

func compareNumbers(a, b Number) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyComparison(op token.Kind, cmp int) bool {
	switch op {
	case token.LESS:
		return cmp < 0
	case token.LESS_EQUAL:
		return cmp <= 0
	case token.GREATER:
		return cmp > 0
	case token.GREATER_EQUAL:
		return cmp >= 0
	}
	return false
}

func (it *Interpreter) evalLogical(e *ast.Logical) (Value, error) {
	left, err := it.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op.Kind == token.OR {
		if IsTruthy(left) {
			return left, nil
		}
	} else if !IsTruthy(left) {
		return left, nil
	}
	return it.evalExpr(e.Right)
}

func (it *Interpreter) evalConditional(e *ast.Conditional) (Value, error) {
	cond, err := it.evalExpr(e.Cond)
	if err != nil {
		return nil, err
	}
	if IsTruthy(cond) {
		return it.evalExpr(e.Then)
	}
	return it.evalExpr(e.Else)
}

func (it *Interpreter) evalArgs(exprs []ast.Expr) ([]Value, error) {
	args := make([]Value, len(exprs))
	for idx, a := range exprs {
		v, err := it.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}
	return args, nil
}

func (it *Interpreter) evalCall(e *ast.Call) (Value, error) {
	callee, err := it.evalExpr(e.Callee)
	if err != nil {
		return nil, err
	}
	args, err := it.evalArgs(e.Args)
	if err != nil {
		return nil, err
	}

	fn, ok := callee.(callable)
	if !ok {
		return nil, runtimeErr(e.Paren, "Can only call functions and classes.")
	}
	if len(args) != fn.Arity() {
		return nil, runtimeErr(e.Paren, "Expected %d arguments but got%d.", fn.Arity(), len(args))
	}
	return fn.Call(it, args)
}

func (it *Interpreter) evalGet(e *ast.Get) (Value, error) {
	obj, err := it.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *Instance:
		return o.Get(it, e.Name)
	case *Class:
		if v, ok := o.Get(e.Name.Lexeme); ok {
			return v, nil
		}
		return nil, runtimeErr(e.Name, "Undefined property '%s'.", e.Name.Lexeme)
	default:
		return nil, runtimeErr(e.Name, "Only instances and classes have properties.")
	}
}

func (it *Interpreter) evalSet(e *ast.Set) (Value, error) {
	obj, err := it.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, runtimeErr(e.Name, "Only instances have fields.")
	}
	value, err := it.evalExpr(e.Value)
	if err != nil {
		return nil, err
	}
	inst.Set(e.Name, value)
	return value, nil
}

func (it *Interpreter) evalSuper(e *ast.Super) (Value, error) {
	superclass, thisVal, err := it.resolveSuperAndThis(e.Keyword, e)
	if err != nil {
		return nil, err
	}
	method, ok := superclass.FindMethod(e.Method.Lexeme)
	if !ok {
		return nil, runtimeErr(e.Method, "Undefined property '%s'.", e.Method.Lexeme)
	}
	return method.Bind(thisVal), nil
}
