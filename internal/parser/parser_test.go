package parser

import (
	"bytes"
	"testing"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/scanner"
	"lox/internal/token"
)

func parseStmts(t *testing.T, source string) ([]ast.Stmt, *diag.Sink) {
	t.Helper()
	var buf bytes.Buffer
	sink := diag.NewSink(&buf)
	toks := scanner.New(source, sink).ScanTokens()
	stmts := New(toks, sink).Parse()
	return stmts, sink
}

func mustParseOK(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	stmts, sink := parseStmts(t, source)
	if sink.HadError {
		t.Fatalf("unexpected parse error for %q", source)
	}
	return stmts
}

func TestParseVarDecl(t *testing.T) {
	stmts := mustParseOK(t, `var x = 1 + 2;`)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	v, ok := stmts[0].(*ast.Var)
	if !ok {
		t.Fatalf("expected *ast.Var, got %T", stmts[0])
	}
	bin, ok := v.Initializer.(*ast.Binary)
	if !ok || bin.Op.Kind != token.PLUS {
		t.Fatalf("expected binary +, got %#v", v.Initializer)
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3).
	stmts := mustParseOK(t, `1 + 2 * 3;`)
	expr := stmts[0].(*ast.Expression).Expr
	add, ok := expr.(*ast.Binary)
	if !ok || add.Op.Kind != token.PLUS {
		t.Fatalf("expected top-level +, got %#v", expr)
	}
	mul, ok := add.Right.(*ast.Binary)
	if !ok || mul.Op.Kind != token.STAR {
		t.Fatalf("expected nested *, got %#v", add.Right)
	}
}

func TestParseConditional(t *testing.T) {
	stmts := mustParseOK(t, `true ? 1 : 2;`)
	cond, ok := stmts[0].(*ast.Expression).Expr.(*ast.Conditional)
	if !ok {
		t.Fatalf("expected conditional, got %#v", stmts[0])
	}
	if _, ok := cond.Cond.(*ast.Literal); !ok {
		t.Fatalf("expected literal condition")
	}
}

func TestParseCommaOperator(t *testing.T) {
	stmts := mustParseOK(t, `1, 2, 3;`)
	bin, ok := stmts[0].(*ast.Expression).Expr.(*ast.Binary)
	if !ok || bin.Op.Kind != token.COMMA {
		t.Fatalf("expected comma binary, got %#v", stmts[0])
	}
}

func TestParseAssignTargets(t *testing.T) {
	stmts := mustParseOK(t, `x = 1;`)
	if _, ok := stmts[0].(*ast.Expression).Expr.(*ast.Assign); !ok {
		t.Fatalf("expected Assign, got %#v", stmts[0])
	}

	stmts = mustParseOK(t, `obj.field = 1;`)
	if _, ok := stmts[0].(*ast.Expression).Expr.(*ast.Set); !ok {
		t.Fatalf("expected Set, got %#v", stmts[0])
	}
}

func TestParseInvalidAssignTargetReported(t *testing.T) {
	_, sink := parseStmts(t, `1 = 2;`)
	if !sink.HadError {
		t.Fatalf("expected invalid assignment target to be reported")
	}
}

func TestParseForDesugarsWithSeparateIncrement(t *testing.T) {
	stmts := mustParseOK(t, `for (var i = 0; i < 3; i = i + 1) print i;`)
	block, ok := stmts[0].(*ast.Block)
	if !ok || len(block.Stmts) != 2 {
		t.Fatalf("expected a 2-stmt block, got %#v", stmts[0])
	}
	if _, ok := block.Stmts[0].(*ast.Var); !ok {
		t.Fatalf("expected initializer to be a Var, got %#v", block.Stmts[0])
	}
	loop, ok := block.Stmts[1].(*ast.While)
	if !ok {
		t.Fatalf("expected While, got %#v", block.Stmts[1])
	}
	if loop.ForIncrement == nil {
		t.Fatalf("expected ForIncrement to be set")
	}
	if body, ok := loop.Body.(*ast.Print); !ok {
		t.Fatalf("expected loop body to be the bare print statement, got %#v", body)
	}
}

func TestParseForOmittedClauses(t *testing.T) {
	stmts := mustParseOK(t, `for (;;) break;`)
	loop, ok := stmts[0].(*ast.While)
	if !ok {
		t.Fatalf("expected bare While (no initializer to wrap in a block), got %#v", stmts[0])
	}
	lit, ok := loop.Cond.(*ast.Literal)
	if !ok || lit.Value != true {
		t.Fatalf("expected omitted condition to default to true, got %#v", loop.Cond)
	}
}

func TestParseFunctionDecl(t *testing.T) {
	stmts := mustParseOK(t, `fun add(a, b) { return a + b; }`)
	fn, ok := stmts[0].(*ast.FunctionStmt)
	if !ok {
		t.Fatalf("expected FunctionStmt, got %#v", stmts[0])
	}
	if len(fn.Fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Fn.Params))
	}
	if fn.Fn.IsGetter() {
		t.Fatalf("function with params should not be a getter")
	}
}

func TestParseLambdaExpression(t *testing.T) {
	stmts := mustParseOK(t, `var f = fun (x) { return x; };`)
	v := stmts[0].(*ast.Var)
	if _, ok := v.Initializer.(*ast.Function); !ok {
		t.Fatalf("expected lambda Function expression, got %#v", v.Initializer)
	}
}

func TestParseClassWithGetterAndStaticMethod(t *testing.T) {
	src := `
class Box {
  area -> this.w * this.h;
  static make() { return Box(); }
}`
	stmts := mustParseOK(t, src)
	class, ok := stmts[0].(*ast.Class)
	if !ok {
		t.Fatalf("expected Class, got %#v", stmts[0])
	}
	if len(class.Methods) != 1 || !class.Methods[0].Fn.IsGetter() {
		t.Fatalf("expected one getter method, got %#v", class.Methods)
	}
	if len(class.ClassMethods) != 1 {
		t.Fatalf("expected one static method, got %#v", class.ClassMethods)
	}
}

func TestParseClassWithSuperclass(t *testing.T) {
	stmts := mustParseOK(t, `class B < A {}`)
	class := stmts[0].(*ast.Class)
	if class.Superclass == nil || class.Superclass.Name.Lexeme != "A" {
		t.Fatalf("expected superclass A, got %#v", class.Superclass)
	}
}

func TestParseSuperCallBecomesInitSuper(t *testing.T) {
	src := `
class B < A {
  init() {
    super(1, 2);
  }
}`
	stmts := mustParseOK(t, src)
	class := stmts[0].(*ast.Class)
	body := class.Methods[0].Fn.Body
	initSuper, ok := body[0].(*ast.InitSuper)
	if !ok {
		t.Fatalf("expected InitSuper as first statement, got %#v", body[0])
	}
	if len(initSuper.Call.Args) != 2 {
		t.Fatalf("expected 2 args to super(), got %d", len(initSuper.Call.Args))
	}
}

func TestParseSuperPropertyExpression(t *testing.T) {
	stmts := mustParseOK(t, `class B < A { m() { return super.m(); } }`)
	class := stmts[0].(*ast.Class)
	ret := class.Methods[0].Fn.Body[0].(*ast.Return)
	call := ret.Value.(*ast.Call)
	sup, ok := call.Callee.(*ast.Super)
	if !ok || sup.Method.Lexeme != "m" {
		t.Fatalf("expected super.m callee, got %#v", call.Callee)
	}
}

func TestParseCallAndPropertyChain(t *testing.T) {
	stmts := mustParseOK(t, `a.b(1).c;`)
	get, ok := stmts[0].(*ast.Expression).Expr.(*ast.Get)
	if !ok || get.Name.Lexeme != "c" {
		t.Fatalf("expected trailing .c, got %#v", stmts[0])
	}
	call, ok := get.Object.(*ast.Call)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("expected a.b(1) call, got %#v", get.Object)
	}
}

func TestParseArgumentListStopsAtCommaNotSwallowedByOperator(t *testing.T) {
	stmts := mustParseOK(t, `f(1, 2, 3);`)
	call := stmts[0].(*ast.Expression).Expr.(*ast.Call)
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 separate arguments, got %d", len(call.Args))
	}
}

func TestParseMissingSemicolonReportsAndRecovers(t *testing.T) {
	stmts, sink := parseStmts(t, "var x = 1\nvar y = 2;")
	if !sink.HadError {
		t.Fatalf("expected a reported error for the missing ';'")
	}
	if len(stmts) != 1 {
		t.Fatalf("expected synchronize to recover and still parse the second decl, got %d stmts", len(stmts))
	}
}

func TestParseReplTrailingExpression(t *testing.T) {
	var buf bytes.Buffer
	sink := diag.NewSink(&buf)
	toks := scanner.New(`1 + 2`, sink).ScanTokens()
	stmts, expr := New(toks, sink).ParseRepl()
	if len(stmts) != 0 {
		t.Fatalf("expected no wrapped statements, got %d", len(stmts))
	}
	if _, ok := expr.(*ast.Binary); !ok {
		t.Fatalf("expected trailing expression, got %#v", expr)
	}
}

func TestParseReplStatementWithSemicolon(t *testing.T) {
	var buf bytes.Buffer
	sink := diag.NewSink(&buf)
	toks := scanner.New(`print 1;`, sink).ScanTokens()
	stmts, expr := New(toks, sink).ParseRepl()
	if expr != nil {
		t.Fatalf("expected no trailing expression, got %#v", expr)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
}
