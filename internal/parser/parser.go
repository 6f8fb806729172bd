// Package parser implements the syntax analysis for lumen-lang.
// It uses recursive descent for statements and precedence climbing
// (Pratt-style) for expressions, with a separate greedy postfix chain
// applied to every primary expression (calls, indexing, member access,
// and colon method calls).
package parser

import (
	"fmt"
	"lumen-lang/internal/ast"
	"lumen-lang/internal/diag"
	"lumen-lang/internal/span"
	"lumen-lang/internal/token"
	"strconv"
)

// ============================================================
// Binding power (precedence) levels
// ============================================================

const (
	bpNone       = 0
	bpOr         = 10 // or
	bpAnd        = 20 // and
	bpRelational = 30 // == ~= < <= > >=
	bpConcat     = 40 // .. (right-associative)
	bpAdditive   = 50 // + -
	bpMultiply   = 60 // * / %
	bpUnary      = 70 // not - # ~ (prefix)
)

// infixBP returns the left binding power for an infix operator, or
// bpNone if kind is not an infix operator.
func infixBP(kind token.Kind) int {
	switch kind {
	case token.KW_OR:
		return bpOr
	case token.KW_AND:
		return bpAnd
	case token.EQ, token.NEQ, token.LT, token.LE, token.GT, token.GE:
		return bpRelational
	case token.CONCAT:
		return bpConcat
	case token.PLUS, token.MINUS:
		return bpAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return bpMultiply
	default:
		return bpNone
	}
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
	diags  []diag.Diagnostic
}

// New creates a new parser from a token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// ParseFile parses the entire file and returns the AST root and
// diagnostics. Parsing aborts (returning the diagnostics collected so
// far) at the first syntax error it cannot recover from locally.
func (p *Parser) ParseFile() (*ast.File, []diag.Diagnostic) {
	file := &ast.File{}
	startPos := p.peek().Span.Start

	for !p.isAtEnd() {
		stmt := p.parseStmt()
		if stmt != nil {
			file.Body = append(file.Body, stmt)
		}
		p.skipSemis()
		if len(p.diags) > 0 {
			break
		}
	}

	endPos := p.peek().Span.End
	file.Span = span.Span{Start: startPos, End: endPos}
	return file, p.diags
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token.Token {
	i := p.pos + offset
	if i < 0 || i >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[i]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peekKind() == kind
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind token.Kind) (token.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	tok := p.peek()
	p.error("E2001", tok.Span, fmt.Sprintf("expected '%s', got '%s'", kind, tok.Kind))
	return tok, false
}

func (p *Parser) isAtEnd() bool {
	return p.peekKind() == token.EOF
}

// skipSemis consumes any number of statement-separating semicolons.
func (p *Parser) skipSemis() {
	for p.check(token.SEMI) {
		p.advance()
	}
}

func (p *Parser) error(code string, s span.Span, msg string) {
	p.diags = append(p.diags, diag.Errorf(code, s, "%s", msg))
}

// isBlockEnd reports whether the current token closes an enclosing block
// (used to stop reading statements without a NEWLINE token to lean on).
func (p *Parser) isBlockEnd() bool {
	return p.match(token.KW_END, token.KW_ELSE, token.KW_ELSEIF, token.KW_UNTIL, token.EOF)
}

// ============================================================
// Statement parsing
// ============================================================

func (p *Parser) parseStmt() ast.Stmt {
	p.skipSemis()
	switch p.peekKind() {
	case token.KW_IF:
		return p.parseIfStatement()
	case token.KW_WHILE:
		return p.parseWhileStatement()
	case token.KW_REPEAT:
		return p.parseRepeatStatement()
	case token.KW_FOR:
		return p.parseForStatement()
	case token.KW_DO:
		return p.parseDoStatement()
	case token.KW_LOCAL:
		return p.parseLocalStatement()
	case token.KW_FUNCTION:
		if p.peekAt(1).Kind == token.LPAREN {
			// function(...) with no name: parsed as an expression so that
			// parseExprOrAssignStatement rejects it with E2005.
			return p.parseExprOrAssignStatement()
		}
		return p.parseFunctionStatement(false)
	case token.KW_RETURN:
		return p.parseReturnStatement()
	case token.KW_BREAK:
		return p.parseBreakStatement()
	default:
		return p.parseExprOrAssignStatement()
	}
}

// parseBlock parses statements until a block-ending keyword is reached.
// It does not consume the terminator itself.
func (p *Parser) parseBlock() *ast.Block {
	start := p.peek()
	block := &ast.Block{}

	p.skipSemis()
	for !p.isBlockEnd() {
		stmt := p.parseStmt()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.skipSemis()
		if len(p.diags) > 0 {
			break
		}
	}

	block.Span = p.makeSpan(start.Span.Start)
	return block
}

// parseIfStatement parses:
// if cond then block { elseif cond then block } [ else block ] end
func (p *Parser) parseIfStatement() *ast.IfStatement {
	start := p.advance() // consume 'if'
	stmt := &ast.IfStatement{}

	stmt.Condition = p.parseExpr(bpNone)
	p.expect(token.KW_THEN)
	stmt.Body = p.parseBlock()

	for p.check(token.KW_ELSEIF) {
		clauseStart := p.advance() // consume 'elseif'
		clause := ast.ElseIfClause{}
		clause.Condition = p.parseExpr(bpNone)
		p.expect(token.KW_THEN)
		clause.Body = p.parseBlock()
		clause.Span = p.makeSpan(clauseStart.Span.Start)
		stmt.ElseIfs = append(stmt.ElseIfs, clause)
	}

	if p.check(token.KW_ELSE) {
		p.advance()
		stmt.ElseBody = p.parseBlock()
	}

	p.expect(token.KW_END)
	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseWhileStatement parses: while cond do block end
func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	start := p.advance() // consume 'while'
	stmt := &ast.WhileStatement{}

	stmt.Condition = p.parseExpr(bpNone)
	p.expect(token.KW_DO)
	stmt.Body = p.parseBlock()
	p.expect(token.KW_END)

	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseRepeatStatement parses: repeat block until cond
func (p *Parser) parseRepeatStatement() *ast.RepeatStatement {
	start := p.advance() // consume 'repeat'
	stmt := &ast.RepeatStatement{}

	stmt.Body = p.parseBlock()
	p.expect(token.KW_UNTIL)
	stmt.Until = p.parseExpr(bpNone)

	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseDoStatement parses: do block end
func (p *Parser) parseDoStatement() *ast.DoStatement {
	start := p.advance() // consume 'do'
	body := p.parseBlock()
	p.expect(token.KW_END)
	return &ast.DoStatement{StmtBase: makeStmtBase(start.Span.Start, p.prevEnd()), Body: body}
}

// parseForStatement parses the numeric form:
// for Name = start, finish [, step] do block end
func (p *Parser) parseForStatement() *ast.ForStatement {
	start := p.advance() // consume 'for'
	stmt := &ast.ForStatement{}

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		return &ast.ForStatement{StmtBase: makeStmtBase(start.Span.Start, p.prevEnd())}
	}
	stmt.Name = nameTok.Lexeme

	p.expect(token.ASSIGN)
	stmt.Start = p.parseExpr(bpNone)
	p.expect(token.COMMA)
	stmt.Finish = p.parseExpr(bpNone)
	if p.check(token.COMMA) {
		p.advance()
		stmt.Step = p.parseExpr(bpNone)
	}

	p.expect(token.KW_DO)
	stmt.Body = p.parseBlock()
	p.expect(token.KW_END)

	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseLocalStatement parses: local Name {',' Name} ['=' expr {',' expr}]
// or local function Name(params) block end
func (p *Parser) parseLocalStatement() ast.Stmt {
	start := p.advance() // consume 'local'

	if p.check(token.KW_FUNCTION) {
		p.advance() // consume 'function'
		return p.parseFunctionStatementBody(start, nil, "", true)
	}

	decl := &ast.LocalDeclaration{}

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		decl.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
		return decl
	}
	decl.Names = append(decl.Names, nameTok.Lexeme)
	for p.check(token.COMMA) {
		p.advance()
		seg, ok := p.expect(token.IDENT)
		if !ok {
			break
		}
		decl.Names = append(decl.Names, seg.Lexeme)
	}

	if p.check(token.ASSIGN) {
		p.advance()
		decl.Inits = append(decl.Inits, p.parseExpr(bpNone))
		for p.check(token.COMMA) {
			p.advance()
			decl.Inits = append(decl.Inits, p.parseExpr(bpNone))
		}
	}

	decl.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return decl
}

// parseFunctionStatement parses: function funcname ( params ) block end
// funcname ::= Name {'.' Name} [':' Name]
func (p *Parser) parseFunctionStatement(isLocal bool) ast.Stmt {
	start := p.advance() // consume 'function'

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		return &ast.FunctionStatement{StmtBase: makeStmtBase(start.Span.Start, p.prevEnd())}
	}
	namePath := []string{nameTok.Lexeme}
	for p.check(token.DOT) {
		p.advance()
		seg, ok := p.expect(token.IDENT)
		if !ok {
			break
		}
		namePath = append(namePath, seg.Lexeme)
	}

	methodName := ""
	if p.check(token.COLON) {
		p.advance()
		seg, ok := p.expect(token.IDENT)
		if ok {
			methodName = seg.Lexeme
		}
	}

	return p.parseFunctionStatementBody(start, namePath, methodName, isLocal)
}

// parseFunctionStatementBody parses the ( params ) block end common to both
// function statement forms once the target name has been determined.
func (p *Parser) parseFunctionStatementBody(start token.Token, namePath []string, methodName string, isLocal bool) *ast.FunctionStatement {
	stmt := &ast.FunctionStatement{NamePath: namePath, MethodName: methodName, IsLocal: isLocal}
	if isLocal {
		nameTok, ok := p.expect(token.IDENT)
		if ok {
			stmt.NamePath = []string{nameTok.Lexeme}
		}
	}
	stmt.Params = p.parseParamList()
	stmt.Body = p.parseBlock()
	p.expect(token.KW_END)
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseReturnStatement parses: return [expr {, expr}]
func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	start := p.advance() // consume 'return'
	stmt := &ast.ReturnStatement{}

	if !p.isBlockEnd() && !p.check(token.SEMI) {
		stmt.Values = append(stmt.Values, p.parseExpr(bpNone))
		for p.check(token.COMMA) {
			p.advance()
			stmt.Values = append(stmt.Values, p.parseExpr(bpNone))
		}
	}

	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	start := p.advance()
	return &ast.BreakStatement{StmtBase: makeStmtBase(start.Span.Start, p.prevEnd())}
}

// parseExprOrAssignStatement parses either an assignment target = value or
// an expression used as a statement (a call, a member or index chain, a
// bare name, ...). An anonymous function expression here is rejected
// explicitly with E2005 rather than silently accepted as a no-op.
func (p *Parser) parseExprOrAssignStatement() ast.Stmt {
	tok := p.peek()
	expr := p.parseExpr(bpNone)
	if expr == nil {
		p.error("E2002", tok.Span, fmt.Sprintf("unexpected token: '%s'", tok.Lexeme))
		p.advance()
		return &ast.ExprStmt{StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End)}
	}

	if p.check(token.ASSIGN) {
		p.advance()
		value := p.parseExpr(bpNone)
		switch expr.(type) {
		case *ast.Identifier, *ast.IndexExpr, *ast.MemberExpr:
			// valid assignment target
		default:
			p.error("E2004", expr.GetSpan(), "invalid assignment target")
		}
		return &ast.Assignment{
			StmtBase: makeStmtBase(expr.GetSpan().Start, p.prevEnd()),
			Target:   expr,
			Value:    value,
		}
	}

	if _, ok := expr.(*ast.FunctionExpr); ok {
		p.error("E2005", expr.GetSpan(), "function expression has no effect as a statement")
	}
	return &ast.ExprStmt{
		StmtBase: makeStmtBase(expr.GetSpan().Start, expr.GetSpan().End),
		Expr:     expr,
	}
}

// parseParamList parses: ( ident, ident, ... )
func (p *Parser) parseParamList() []string {
	var params []string

	if _, ok := p.expect(token.LPAREN); !ok {
		return params
	}

	if !p.check(token.RPAREN) {
		nameTok, ok := p.expect(token.IDENT)
		if ok {
			params = append(params, nameTok.Lexeme)
		}
		for p.check(token.COMMA) {
			p.advance()
			nameTok, ok = p.expect(token.IDENT)
			if ok {
				params = append(params, nameTok.Lexeme)
			}
		}
	}

	p.expect(token.RPAREN)
	return params
}

// ============================================================
// Expression parsing (precedence climbing + greedy postfix chain)
// ============================================================

// parseExpr parses an expression with the given minimum binding power.
func (p *Parser) parseExpr(minBP int) ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		kind := p.peekKind()
		bp := infixBP(kind)
		if bp <= minBP {
			break
		}
		opTok := p.advance()
		nextMinBP := bp
		if kind == token.CONCAT {
			nextMinBP = bp - 1 // right-associative
		}
		right := p.parseExpr(nextMinBP)
		left = &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       opTok.Kind,
			Left:     left,
			Right:    right,
		}
	}

	return left
}

// parseUnary handles the prefix operators not, -, #, ~.
func (p *Parser) parseUnary() ast.Expr {
	tok := p.peek()
	switch tok.Kind {
	case token.KW_NOT, token.MINUS, token.HASH, token.TILDE:
		p.advance()
		operand := p.parseExpr(bpUnary)
		if operand == nil {
			return nil
		}
		return &ast.UnaryExpr{
			ExprBase: makeExprBase(tok.Span.Start, operand.GetSpan().End),
			Op:       tok.Kind,
			Operand:  operand,
		}
	default:
		return p.parsePostfixChain(p.parsePrimary())
	}
}

// parsePrimary parses a single primary expression with no postfix chain
// applied yet: literals, identifiers, parenthesized expressions, table
// constructors, and anonymous function expressions.
func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.NUMBER:
		p.advance()
		val, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.NumberLiteral{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End), Value: val}

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End), Value: tok.Lexeme}

	case token.KW_TRUE:
		p.advance()
		return &ast.BoolLiteral{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End), Value: true}

	case token.KW_FALSE:
		p.advance()
		return &ast.BoolLiteral{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End), Value: false}

	case token.KW_NIL:
		p.advance()
		return &ast.NilLiteral{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End)}

	case token.IDENT:
		p.advance()
		return &ast.Identifier{ExprBase: makeExprBase(tok.Span.Start, tok.Span.End), Name: tok.Lexeme}

	case token.LPAREN:
		p.advance()
		expr := p.parseExpr(bpNone)
		p.expect(token.RPAREN)
		return expr

	case token.LBRACE:
		return p.parseTableConstructor()

	case token.KW_FUNCTION:
		return p.parseFunctionExpr()

	default:
		p.error("E2002", tok.Span, fmt.Sprintf("unexpected token: '%s'", tok.Lexeme))
		return nil
	}
}

// parsePostfixChain greedily applies calls, indexing, member access, and
// colon method calls to a primary expression.
func (p *Parser) parsePostfixChain(left ast.Expr) ast.Expr {
	if left == nil {
		return nil
	}
	for {
		switch p.peekKind() {
		case token.DOT:
			p.advance()
			propTok, _ := p.expect(token.IDENT)
			left = &ast.MemberExpr{
				ExprBase: makeExprBase(left.GetSpan().Start, propTok.Span.End),
				Object:   left,
				Property: propTok.Lexeme,
			}

		case token.LBRACKET:
			p.advance()
			index := p.parseExpr(bpNone)
			end, _ := p.expect(token.RBRACKET)
			left = &ast.IndexExpr{
				ExprBase: makeExprBase(left.GetSpan().Start, end.Span.End),
				Object:   left,
				Index:    index,
			}

		case token.LPAREN:
			left = p.parseCallArgs(left, left)

		case token.COLON:
			p.advance()
			nameTok, _ := p.expect(token.IDENT)
			callee := &ast.MemberExpr{
				ExprBase: makeExprBase(left.GetSpan().Start, nameTok.Span.End),
				Object:   left,
				Property: nameTok.Lexeme,
			}
			left = p.parseCallArgs(callee, left)

		default:
			return left
		}
	}
}

// parseCallArgs parses ( args ) and builds the FunctionCall, prepending
// receiver when the call originated from colon syntax (receiver == callee
// for a plain call, in which case it is not duplicated).
func (p *Parser) parseCallArgs(callee ast.Expr, receiver ast.Expr) *ast.FunctionCall {
	p.advance() // consume '('
	var args []ast.Expr

	isMethodCall := false
	if memberCallee, ok := callee.(*ast.MemberExpr); ok {
		if memberCallee.Object == receiver && receiver != callee {
			isMethodCall = true
		}
	}
	if isMethodCall {
		args = append(args, receiver)
	}

	if !p.check(token.RPAREN) {
		args = append(args, p.parseExpr(bpNone))
		for p.check(token.COMMA) {
			p.advance()
			args = append(args, p.parseExpr(bpNone))
		}
	}
	end, _ := p.expect(token.RPAREN)

	return &ast.FunctionCall{
		ExprBase: makeExprBase(callee.GetSpan().Start, end.Span.End),
		Callee:   callee,
		Args:     args,
	}
}

// parseFunctionExpr parses: function ( params ) block end
func (p *Parser) parseFunctionExpr() *ast.FunctionExpr {
	start := p.advance() // consume 'function'
	expr := &ast.FunctionExpr{}
	expr.Params = p.parseParamList()
	expr.Body = p.parseBlock()
	p.expect(token.KW_END)
	expr.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return expr
}

// parseTableConstructor parses:
// { [field {sep field} [sep]] } where field is
// expr | Name = expr | [expr] = expr, and sep is , or ;
func (p *Parser) parseTableConstructor() *ast.TableConstructor {
	start := p.advance() // consume '{'
	tbl := &ast.TableConstructor{}

	for !p.check(token.RBRACE) && !p.isAtEnd() {
		tbl.Fields = append(tbl.Fields, p.parseTableField())
		if p.match(token.COMMA, token.SEMI) {
			p.advance()
		} else {
			break
		}
	}

	p.expect(token.RBRACE)
	tbl.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return tbl
}

func (p *Parser) parseTableField() ast.TableField {
	if p.check(token.LBRACKET) {
		p.advance()
		key := p.parseExpr(bpNone)
		p.expect(token.RBRACKET)
		p.expect(token.ASSIGN)
		value := p.parseExpr(bpNone)
		return ast.TableField{Key: key, Value: value}
	}

	if p.check(token.IDENT) && p.peekAt(1).Kind == token.ASSIGN {
		nameTok := p.advance()
		p.advance() // consume '='
		value := p.parseExpr(bpNone)
		key := &ast.StringLiteral{
			ExprBase: makeExprBase(nameTok.Span.Start, nameTok.Span.End),
			Value:    nameTok.Lexeme,
		}
		return ast.TableField{Key: key, Value: value}
	}

	value := p.parseExpr(bpNone)
	return ast.TableField{Value: value}
}

// ============================================================
// Span helpers
// ============================================================

func (p *Parser) prevEnd() span.Position {
	if p.pos > 0 && p.pos-1 < len(p.tokens) {
		return p.tokens[p.pos-1].Span.End
	}
	return p.peek().Span.Start
}

func (p *Parser) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: p.prevEnd()}
}

func makeExprBase(start, end span.Position) ast.ExprBase {
	return ast.ExprBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}

func makeStmtBase(start, end span.Position) ast.StmtBase {
	return ast.StmtBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}
