// Package parser implements Lox's recursive-descent parser: tokens → AST,
// per §4.2 of the component design. Precedence is expressed as one function
// per level, ascending from comma (loosest) through primary (tightest).
package parser

import (
	"fmt"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/token"
)

const maxArgs = 255

// parseError unwinds a single declaration back to Parser.declaration, which
// recovers and calls synchronize. It carries no data; the diagnostic was
// already reported to the sink at the point of failure.
type parseError struct{}

// Parser consumes a token sequence and reports syntax errors to sink.
type Parser struct {
	tokens  []token.Token
	current int
	sink    *diag.Sink
}

// New returns a Parser over tokens (as produced by the scanner).
func New(tokens []token.Token, sink *diag.Sink) *Parser {
	return &Parser{tokens: tokens, sink: sink}
}

// Parse parses a whole program (file mode): declaration* until EOF. The
// parser never panics out of this entry point; syntax errors are reported
// to the sink and recovered via synchronize so later errors still surface.
func (p *Parser) Parse() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if s := p.declaration(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// ParseRepl parses one REPL line. If the line is a bare expression with no
// terminating ';', it is returned as the second value instead of being
// wrapped in an Expression statement, so the driver can print its value.
func (p *Parser) ParseRepl() ([]ast.Stmt, ast.Expr) {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if p.startsStatement() {
			if s := p.declaration(); s != nil {
				stmts = append(stmts, s)
			}
			continue
		}

		mark := p.current
		expr, ok := p.tryExpression()
		if !ok {
			p.current = mark
			if s := p.declaration(); s != nil {
				stmts = append(stmts, s)
			}
			continue
		}
		if p.isAtEnd() {
			return stmts, expr
		}
		// Either a ';' follows (an ordinary expression statement) or
		// something else does (a genuine syntax error); either way,
		// re-parse from the mark as a normal declaration so the error
		// path and semicolon consumption stay in one place.
		p.current = mark
		if s := p.declaration(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

func (p *Parser) startsStatement() bool {
	switch p.peek().Kind {
	case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.PRINT,
		token.RETURN, token.WHILE, token.BREAK, token.CONTINUE, token.LEFT_BRACE:
		return true
	}
	return p.check(token.SUPER) && p.checkNext(token.LEFT_PAREN)
}

func (p *Parser) tryExpression() (expr ast.Expr, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isParse := r.(parseError); isParse {
				expr, ok = nil, false
				return
			}
			panic(r)
		}
	}()
	return p.expression(), true
}

// ---- declarations ----

func (p *Parser) declaration() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, isParse := r.(parseError); isParse {
				p.synchronize()
				return
			}
			panic(r)
		}
	}()

	switch {
	case p.match(token.CLASS):
		return p.classDeclaration()
	case p.match(token.FUN):
		return p.funDeclaration()
	case p.match(token.VAR):
		return p.varDeclaration()
	default:
		return p.statement()
	}
}

func (p *Parser) classDeclaration() ast.Stmt {
	name := p.consume(token.IDENTIFIER, "Expect class name.")

	var superclass *ast.Variable
	if p.match(token.LESS) {
		p.consume(token.IDENTIFIER, "Expect superclass name.")
		superclass = &ast.Variable{Name: p.previous()}
	}

	p.consume(token.LEFT_BRACE, "Expect '{' before class body.")
	var methods, classMethods []*ast.FunctionStmt
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		isStatic := p.match(token.STATIC)
		m := p.method()
		if isStatic {
			classMethods = append(classMethods, m)
		} else {
			methods = append(methods, m)
		}
	}
	p.consume(token.RIGHT_BRACE, "Expect '}' after class body.")

	return &ast.Class{Name: name, Superclass: superclass, Methods: methods, ClassMethods: classMethods}
}

func (p *Parser) method() *ast.FunctionStmt {
	name := p.consume(token.IDENTIFIER, "Expect method name.")

	if p.match(token.ARROW) {
		expr := p.expression()
		p.consume(token.SEMICOLON, "Expect ';' after getter body.")
		body := []ast.Stmt{&ast.Return{Keyword: name, Value: expr}}
		return &ast.FunctionStmt{Name: name, Fn: &ast.Function{Params: nil, Body: body}}
	}

	p.consume(token.LEFT_PAREN, "Expect '(' after method name.")
	params := p.parameterList()
	p.consume(token.RIGHT_PAREN, "Expect ')' after parameters.")
	p.consume(token.LEFT_BRACE, "Expect '{' before method body.")
	body := p.block()
	return &ast.FunctionStmt{Name: name, Fn: &ast.Function{Params: params, Body: body}}
}

func (p *Parser) funDeclaration() ast.Stmt {
	name := p.consume(token.IDENTIFIER, "Expect function name.")
	params, body := p.functionBody("function")
	return &ast.FunctionStmt{Name: name, Fn: &ast.Function{Params: params, Body: body}}
}

func (p *Parser) functionBody(kind string) ([]token.Token, []ast.Stmt) {
	p.consume(token.LEFT_PAREN, fmt.Sprintf("Expect '(' after %s name.", kind))
	params := p.parameterList()
	p.consume(token.RIGHT_PAREN, "Expect ')' after parameters.")
	p.consume(token.LEFT_BRACE, fmt.Sprintf("Expect '{' before %s body.", kind))
	return params, p.block()
}

func (p *Parser) parameterList() []token.Token {
	params := []token.Token{}
	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(params) >= maxArgs {
				p.errorAt(p.peek(), "Can't have more than 255 parameters.")
			}
			params = append(params, p.consume(token.IDENTIFIER, "Expect parameter name."))
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	return params
}

func (p *Parser) varDeclaration() ast.Stmt {
	name := p.consume(token.IDENTIFIER, "Expect variable name.")
	var init ast.Expr
	if p.match(token.EQUAL) {
		init = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	return &ast.Var{Name: name, Initializer: init}
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.PRINT):
		return p.printStatement()
	case p.match(token.RETURN):
		return p.returnStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.BREAK):
		kw := p.previous()
		p.consume(token.SEMICOLON, "Expect ';' after 'break'.")
		return &ast.Break{Keyword: kw}
	case p.match(token.CONTINUE):
		kw := p.previous()
		p.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
		return &ast.Continue{Keyword: kw}
	case p.match(token.LEFT_BRACE):
		return &ast.Block{Stmts: p.block()}
	case p.check(token.SUPER) && p.checkNext(token.LEFT_PAREN):
		return p.initSuperStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) initSuperStatement() ast.Stmt {
	keyword := p.advance() // 'super'
	p.consume(token.LEFT_PAREN, "Expect '(' after 'super'.")
	args := p.argumentList()
	paren := p.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
	p.consume(token.SEMICOLON, "Expect ';' after superclass constructor call.")
	call := &ast.Call{Callee: &ast.Super{Keyword: keyword}, Paren: paren, Args: args}
	return &ast.InitSuper{Keyword: keyword, Call: call}
}

func (p *Parser) forStatement() ast.Stmt {
	p.consume(token.LEFT_PAREN, "Expect '(' after 'for'.")

	var initializer ast.Stmt
	switch {
	case p.match(token.SEMICOLON):
		// no initializer
	case p.match(token.VAR):
		initializer = p.varDeclaration()
	default:
		initializer = p.expressionStatement()
	}

	var condition ast.Expr
	if !p.check(token.SEMICOLON) {
		condition = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after loop condition.")

	var increment ast.Expr
	if !p.check(token.RIGHT_PAREN) {
		increment = p.expression()
	}
	p.consume(token.RIGHT_PAREN, "Expect ')' after for clauses.")

	body := p.statement()
	if condition == nil {
		condition = &ast.Literal{Value: true}
	}
	// The increment is carried on the While node, not appended into body,
	// so `continue` runs it exactly once per iteration instead of skipping
	// it (see the for-loop design note on the double-increment bug).
	loop := &ast.While{Cond: condition, Body: body, ForIncrement: increment}
	if initializer != nil {
		return &ast.Block{Stmts: []ast.Stmt{initializer, loop}}
	}
	return loop
}

func (p *Parser) ifStatement() ast.Stmt {
	p.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	cond := p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after if condition.")
	then := p.statement()
	var elseBranch ast.Stmt
	if p.match(token.ELSE) {
		elseBranch = p.statement()
	}
	return &ast.If{Cond: cond, Then: then, Else: elseBranch}
}

func (p *Parser) printStatement() ast.Stmt {
	value := p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after value.")
	return &ast.Print{Expr: value}
}

func (p *Parser) returnStatement() ast.Stmt {
	keyword := p.previous()
	var value ast.Expr
	if !p.check(token.SEMICOLON) {
		value = p.expression()
	}
	p.consume(token.SEMICOLON, "Expect ';' after return value.")
	return &ast.Return{Keyword: keyword, Value: value}
}

func (p *Parser) whileStatement() ast.Stmt {
	p.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	cond := p.expression()
	p.consume(token.RIGHT_PAREN, "Expect ')' after condition.")
	body := p.statement()
	return &ast.While{Cond: cond, Body: body}
}

func (p *Parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		if s := p.declaration(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.consume(token.RIGHT_BRACE, "Expect '}' after block.")
	return stmts
}

func (p *Parser) expressionStatement() ast.Stmt {
	expr := p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after expression.")
	return &ast.Expression{Expr: expr}
}

// ---- expressions, precedence ascending (comma loosest, primary tightest) ----

func (p *Parser) expression() ast.Expr { return p.commaExpr() }

// commaExpr implements the C-style comma operator: `a, b` evaluates both
// and yields b. There's no dedicated AST node for it; it reuses Binary with
// a COMMA op token, since the data model treats Binary as "everything else".
func (p *Parser) commaExpr() ast.Expr {
	expr := p.conditionalExpr()
	for p.match(token.COMMA) {
		op := p.previous()
		right := p.conditionalExpr()
		expr = &ast.Binary{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) conditionalExpr() ast.Expr {
	cond := p.assignmentExpr()
	if p.match(token.QUESTION) {
		then := p.expression()
		p.consume(token.COLON, "Expect ':' in conditional expression.")
		elseExpr := p.conditionalExpr()
		return &ast.Conditional{Cond: cond, Then: then, Else: elseExpr}
	}
	return cond
}

func (p *Parser) assignmentExpr() ast.Expr {
	expr := p.orExpr()
	if p.match(token.EQUAL) {
		equals := p.previous()
		value := p.assignmentExpr()
		switch target := expr.(type) {
		case *ast.Variable:
			return &ast.Assign{Name: target.Name, Value: value}
		case *ast.Get:
			return &ast.Set{Object: target.Object, Name: target.Name, Value: value}
		default:
			p.errorAt(equals, "Invalid assignment target.")
			return expr
		}
	}
	return expr
}

func (p *Parser) orExpr() ast.Expr {
	expr := p.andExpr()
	for p.match(token.OR) {
		op := p.previous()
		right := p.andExpr()
		expr = &ast.Logical{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) andExpr() ast.Expr {
	expr := p.equalityExpr()
	for p.match(token.AND) {
		op := p.previous()
		right := p.equalityExpr()
		expr = &ast.Logical{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) equalityExpr() ast.Expr {
	expr := p.comparisonExpr()
	for p.match(token.BANG_EQUAL, token.EQUAL_EQUAL) {
		op := p.previous()
		right := p.comparisonExpr()
		expr = &ast.Binary{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) comparisonExpr() ast.Expr {
	expr := p.termExpr()
	for p.match(token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL) {
		op := p.previous()
		right := p.termExpr()
		expr = &ast.Binary{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) termExpr() ast.Expr {
	expr := p.factorExpr()
	for p.match(token.PLUS, token.MINUS) {
		op := p.previous()
		right := p.factorExpr()
		expr = &ast.Binary{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) factorExpr() ast.Expr {
	expr := p.unaryExpr()
	for p.match(token.STAR, token.SLASH, token.PERCENT) {
		op := p.previous()
		right := p.unaryExpr()
		expr = &ast.Binary{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) unaryExpr() ast.Expr {
	if p.match(token.BANG, token.MINUS) {
		op := p.previous()
		right := p.unaryExpr()
		return &ast.Unary{Op: op, Right: right}
	}
	return p.callExpr()
}

func (p *Parser) callExpr() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(token.LEFT_PAREN):
			args := p.argumentList()
			paren := p.consume(token.RIGHT_PAREN, "Expect ')' after arguments.")
			expr = &ast.Call{Callee: expr, Paren: paren, Args: args}
		case p.match(token.DOT):
			name := p.consume(token.IDENTIFIER, "Expect property name after '.'.")
			expr = &ast.Get{Object: expr, Name: name}
		default:
			return expr
		}
	}
}

// argumentList parses at conditionalExpr level, not expression(), so a bare
// ',' between arguments can't be swallowed by the comma operator.
func (p *Parser) argumentList() []ast.Expr {
	var args []ast.Expr
	if !p.check(token.RIGHT_PAREN) {
		for {
			if len(args) >= maxArgs {
				p.errorAt(p.peek(), "Can't have more than 255 arguments.")
			}
			args = append(args, p.conditionalExpr())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	return args
}

func (p *Parser) primary() ast.Expr {
	switch {
	case p.match(token.FALSE):
		return &ast.Literal{Value: false}
	case p.match(token.TRUE):
		return &ast.Literal{Value: true}
	case p.match(token.NIL):
		return &ast.Literal{Value: nil}
	case p.match(token.NUMBER, token.STRING):
		return &ast.Literal{Value: p.previous().Literal}
	case p.match(token.THIS):
		return &ast.This{Keyword: p.previous()}
	case p.match(token.SUPER):
		keyword := p.previous()
		p.consume(token.DOT, "Expect '.' after 'super'.")
		method := p.consume(token.IDENTIFIER, "Expect superclass method name.")
		return &ast.Super{Keyword: keyword, Method: method}
	case p.match(token.IDENTIFIER):
		return &ast.Variable{Name: p.previous()}
	case p.match(token.LEFT_PAREN):
		expr := p.expression()
		p.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
		return &ast.Grouping{Inner: expr}
	case p.match(token.FUN):
		params, body := p.functionBody("function")
		return &ast.Function{Params: params, Body: body}
	default:
		p.errorAt(p.peek(), "Expect expression.")
		panic(parseError{})
	}
}

// ---- token stream helpers ----

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(k token.Kind) bool {
	if p.isAtEnd() {
		return k == token.EOF
	}
	return p.peek().Kind == k
}

func (p *Parser) checkNext(k token.Kind) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Kind == k
}

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) peek() token.Token { return p.tokens[p.current] }

func (p *Parser) previous() token.Token { return p.tokens[p.current-1] }

func (p *Parser) consume(k token.Kind, message string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorAt(p.peek(), message)
	panic(parseError{})
}

func (p *Parser) errorAt(tok token.Token, message string) {
	p.sink.Static(tok.Line, diag.AtToken(tok), message)
}

// synchronize discards tokens until it reaches a likely statement boundary,
// so a single syntax error doesn't prevent later ones from being reported.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		switch p.peek().Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
		if p.previous().Kind == token.SEMICOLON {
			return
		}
	}
}
