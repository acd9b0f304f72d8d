// Package resolver performs the static variable-resolution pass described
// in §4.3: a single walk over the parsed AST that assigns every local
// reference a (depth, slot) pair ahead of time, so the interpreter's
// environment lookups are index-based instead of name-based outside of
// globals. Grounded on original_source's Resolver.java, with a third
// ClassType state (subclass) added for `super`-validity checking.
package resolver

import (
	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/token"
)

// Resolution is what the interpreter needs to find a local binding without
// a name lookup: walk Depth enclosing environments, then index Slot.
type Resolution struct {
	Depth int
	Slot  int
}

type functionType int

const (
	ftNone functionType = iota
	ftFunction
	ftMethod
	ftInitializer
	ftStaticMethod
)

type classType int

const (
	ctNone classType = iota
	ctClass
	ctSubclass
)

type loopType int

const (
	ltNone loopType = iota
	ltLoop
)

type varState int

const (
	vsDeclared varState = iota
	vsDefined
	vsRead
)

type scopeVar struct {
	name  token.Token
	state varState
	slot  int
}

// Resolver walks a parsed tree once, reporting static errors to sink and
// accumulating a side table of Expr -> Resolution keyed by node identity.
type Resolver struct {
	sink   *diag.Sink
	scopes []map[string]*scopeVar

	currentFunction functionType
	currentClass    classType
	currentLoop     loopType

	table map[ast.Expr]Resolution
}

// New returns a Resolver that reports to sink.
func New(sink *diag.Sink) *Resolver {
	return &Resolver{sink: sink, table: map[ast.Expr]Resolution{}}
}

// Resolve walks a full program's statement list and returns the resolution
// side table. Unresolved Variable/Assign/This/Super nodes are left out of
// the table entirely; the interpreter treats a missing entry as a global.
func (r *Resolver) Resolve(stmts []ast.Stmt) map[ast.Expr]Resolution {
	r.resolveStmts(stmts)
	return r.table
}

// ResolveExpr resolves a single bare expression, used for a REPL line whose
// trailing input has no terminating ';'.
func (r *Resolver) ResolveExpr(expr ast.Expr) map[ast.Expr]Resolution {
	r.resolveExpr(expr)
	return r.table
}

// ---- scope stack ----

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, map[string]*scopeVar{})
}

func (r *Resolver) endScope() {
	scope := r.scopes[len(r.scopes)-1]
	for _, v := range scope {
		if v.state == vsDefined {
			r.sink.Static(v.name.Line, diag.AtToken(v.name), "Variable '%s' is never used.", v.name.Lexeme)
		}
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) declare(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, exists := scope[name.Lexeme]; exists {
		r.sink.Static(name.Line, diag.AtToken(name), "Already a variable with this name in this scope.")
	}
	scope[name.Lexeme] = &scopeVar{name: name, state: vsDeclared, slot: len(scope)}
}

func (r *Resolver) define(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	if v, ok := r.scopes[len(r.scopes)-1][name.Lexeme]; ok {
		v.state = vsDefined
	}
}

// defineSynthetic installs a compiler-introduced binding ("this", "super")
// that's always considered read, so it never trips the unused-local check.
func (r *Resolver) defineSynthetic(name string, at token.Token) {
	r.scopes[len(r.scopes)-1][name] = &scopeVar{name: at, state: vsRead, slot: 0}
}

func (r *Resolver) resolveLocal(expr ast.Expr, name token.Token, markRead bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name.Lexeme]; ok {
			if markRead {
				v.state = vsRead
			}
			r.table[expr] = Resolution{Depth: len(r.scopes) - 1 - i, Slot: v.slot}
			return
		}
	}
	// Not found in any local scope: a global, resolved by name at runtime.
}

// ---- statements ----

func (r *Resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Expression:
		r.resolveExpr(s.Expr)
	case *ast.Print:
		r.resolveExpr(s.Expr)
	case *ast.Var:
		r.resolveVarStmt(s)
	case *ast.Block:
		r.beginScope()
		r.resolveStmts(s.Stmts)
		r.endScope()
	case *ast.If:
		r.resolveExpr(s.Cond)
		r.resolveStmt(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}
	case *ast.While:
		r.resolveExpr(s.Cond)
		enclosingLoop := r.currentLoop
		r.currentLoop = ltLoop
		r.resolveStmt(s.Body)
		if s.ForIncrement != nil {
			r.resolveExpr(s.ForIncrement)
		}
		r.currentLoop = enclosingLoop
	case *ast.Break:
		if r.currentLoop == ltNone {
			r.sink.Static(s.Keyword.Line, diag.AtToken(s.Keyword), "Can't use 'break' outside of a loop.")
		}
	case *ast.Continue:
		if r.currentLoop == ltNone {
			r.sink.Static(s.Keyword.Line, diag.AtToken(s.Keyword), "Can't use 'continue' outside of a loop.")
		}
	case *ast.Return:
		if r.currentFunction == ftNone {
			r.sink.Static(s.Keyword.Line, diag.AtToken(s.Keyword), "Can't return from top-level code.")
		}
		if s.Value != nil {
			if r.currentFunction == ftInitializer {
				r.sink.Static(s.Keyword.Line, diag.AtToken(s.Keyword), "Can't return a value from an initializer.")
			}
			r.resolveExpr(s.Value)
		}
	case *ast.FunctionStmt:
		r.declare(s.Name)
		r.define(s.Name)
		r.resolveFunction(s.Fn, ftFunction)
	case *ast.Class:
		r.resolveClass(s)
	case *ast.InitSuper:
		if r.currentClass != ctSubclass || r.currentFunction != ftInitializer {
			r.sink.Static(s.Keyword.Line, diag.AtToken(s.Keyword), "Can't call super() outside of a subclass initializer.")
		}
		r.resolveExpr(s.Call.Callee)
		for _, a := range s.Call.Args {
			r.resolveExpr(a)
		}
	}
}

func (r *Resolver) resolveVarStmt(s *ast.Var) {
	r.declare(s.Name)
	if s.Initializer != nil {
		r.resolveExpr(s.Initializer)
	}
	r.define(s.Name)
}

func (r *Resolver) resolveFunction(fn *ast.Function, ftype functionType) {
	enclosingFunction := r.currentFunction
	enclosingLoop := r.currentLoop
	r.currentFunction = ftype
	r.currentLoop = ltNone // break/continue don't cross a function boundary

	r.beginScope()
	// Parameters count as read from the start, so a parameter the body
	// ignores is not reported as an unused local.
	for _, p := range fn.Params {
		r.declare(p)
		r.define(p)
		r.scopes[len(r.scopes)-1][p.Lexeme].state = vsRead
	}
	r.resolveStmts(fn.Body)
	r.endScope()

	r.currentFunction = enclosingFunction
	r.currentLoop = enclosingLoop
}

// resolveClass follows original_source's six-step algorithm: declare/define
// the class name; push the "super" scope if there's a superclass; push the
// instance scope and define "this"; resolve instance methods; pop the
// instance scope; resolve each static method in its own "this" scope (still
// nested inside "super", so `super` also resolves inside a static method);
// finally pop the "super" scope.
func (r *Resolver) resolveClass(c *ast.Class) {
	r.declare(c.Name)
	r.define(c.Name)

	enclosingClass := r.currentClass
	r.currentClass = ctClass

	hasSuperclass := c.Superclass != nil
	if hasSuperclass {
		if c.Superclass.Name.Lexeme == c.Name.Lexeme {
			r.sink.Static(c.Superclass.Name.Line, diag.AtToken(c.Superclass.Name), "A class can't inherit from itself.")
		}
		r.resolveExpr(c.Superclass)
		r.currentClass = ctSubclass
		r.beginScope()
		r.defineSynthetic("super", c.Name)
	}

	r.beginScope()
	r.defineSynthetic("this", c.Name)
	for _, m := range c.Methods {
		ft := ftMethod
		if m.Name.Lexeme == "init" {
			ft = ftInitializer
		}
		r.resolveFunction(m.Fn, ft)
	}
	r.endScope()

	for _, m := range c.ClassMethods {
		r.beginScope()
		r.defineSynthetic("this", c.Name)
		r.resolveFunction(m.Fn, ftStaticMethod)
		r.endScope()
	}

	if hasSuperclass {
		r.endScope()
	}

	r.currentClass = enclosingClass
}

// ---- expressions ----

func (r *Resolver) resolveExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Literal:
		// nothing to resolve
	case *ast.Variable:
		r.resolveVariableExpr(e)
	case *ast.Assign:
		r.resolveExpr(e.Value)
		r.resolveLocal(e, e.Name, false)
	case *ast.Unary:
		r.resolveExpr(e.Right)
	case *ast.Binary:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.Logical:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.Grouping:
		r.resolveExpr(e.Inner)
	case *ast.Conditional:
		r.resolveExpr(e.Cond)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)
	case *ast.Call:
		r.resolveExpr(e.Callee)
		for _, a := range e.Args {
			r.resolveExpr(a)
		}
	case *ast.Get:
		r.resolveExpr(e.Object)
	case *ast.Set:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Object)
	case *ast.This:
		if r.currentClass == ctNone {
			r.sink.Static(e.Keyword.Line, diag.AtToken(e.Keyword), "Can't use 'this' outside of a class.")
		}
		r.resolveLocal(e, e.Keyword, true)
	case *ast.Super:
		switch r.currentClass {
		case ctNone:
			r.sink.Static(e.Keyword.Line, diag.AtToken(e.Keyword), "Can't use 'super' outside of a class.")
		case ctClass:
			r.sink.Static(e.Keyword.Line, diag.AtToken(e.Keyword), "Can't use 'super' in a class with no superclass.")
		}
		r.resolveLocal(e, e.Keyword, true)
	case *ast.Function:
		r.resolveFunction(e, ftFunction)
	}
}

func (r *Resolver) resolveVariableExpr(v *ast.Variable) {
	if len(r.scopes) > 0 {
		if sv, ok := r.scopes[len(r.scopes)-1][v.Name.Lexeme]; ok && sv.state == vsDeclared {
			r.sink.Static(v.Name.Line, diag.AtToken(v.Name), "Can't read local variable in it's own initializer")
		}
	}
	r.resolveLocal(v, v.Name, true)
}
