package parser

import (
	"encoding/json"
	"lumen-lang/internal/ast"
	"lumen-lang/internal/lexer"
	"testing"
)

// helper: parse source and return AST + check for no errors
func parseOK(t *testing.T, source string) *ast.File {
	t.Helper()
	l := lexer.New(source, "test.lum")
	tokens, lexDiags := l.Tokenize()
	if len(lexDiags) > 0 {
		t.Fatalf("lex errors: %v", lexDiags)
	}
	p := New(tokens)
	file, parseDiags := p.ParseFile()
	if len(parseDiags) > 0 {
		t.Fatalf("parse errors: %v", parseDiags)
	}
	return file
}

// helper: parse and return JSON string (for golden-test style checks)
func parseToJSON(t *testing.T, source string) string {
	t.Helper()
	file := parseOK(t, source)
	m := ast.NodeToMap(file)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatalf("json error: %v", err)
	}
	return string(data)
}

func TestParseLocalDecl(t *testing.T) {
	file := parseOK(t, `local x = 42`)
	if len(file.Body) != 1 {
		t.Fatalf("expected 1 node, got %d", len(file.Body))
	}
	decl, ok := file.Body[0].(*ast.LocalDeclaration)
	if !ok {
		t.Fatalf("expected LocalDeclaration, got %T", file.Body[0])
	}
	if len(decl.Names) != 1 || decl.Names[0] != "x" {
		t.Errorf("expected name 'x', got %v", decl.Names)
	}
}

func TestParseLocalDeclNoInit(t *testing.T) {
	file := parseOK(t, `local x`)
	decl, ok := file.Body[0].(*ast.LocalDeclaration)
	if !ok {
		t.Fatalf("expected LocalDeclaration, got %T", file.Body[0])
	}
	if len(decl.Inits) != 0 {
		t.Errorf("expected no inits, got %v", decl.Inits)
	}
}

func TestParseLocalDeclNameList(t *testing.T) {
	file := parseOK(t, `local a, b, c = 1, 2`)
	decl, ok := file.Body[0].(*ast.LocalDeclaration)
	if !ok {
		t.Fatalf("expected LocalDeclaration, got %T", file.Body[0])
	}
	if len(decl.Names) != 3 || decl.Names[0] != "a" || decl.Names[1] != "b" || decl.Names[2] != "c" {
		t.Errorf("expected names [a b c], got %v", decl.Names)
	}
	if len(decl.Inits) != 2 {
		t.Fatalf("expected 2 inits, got %d", len(decl.Inits))
	}
}

func TestParseBinaryExprPrecedence(t *testing.T) {
	file := parseOK(t, `local z = 1 + 2 * 3`)
	decl := file.Body[0].(*ast.LocalDeclaration)
	binExpr, ok := decl.Inits[0].(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", decl.Inits[0])
	}
	if binExpr.Op.String() != "+" {
		t.Errorf("expected '+', got %q", binExpr.Op.String())
	}
	rightBin, ok := binExpr.Right.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected right BinaryExpr, got %T", binExpr.Right)
	}
	if rightBin.Op.String() != "*" {
		t.Errorf("expected '*', got %q", rightBin.Op.String())
	}
}

func TestParseConcatIsRightAssociative(t *testing.T) {
	file := parseOK(t, `local s = a .. b .. c`)
	decl := file.Body[0].(*ast.LocalDeclaration)
	top, ok := decl.Inits[0].(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", decl.Inits[0])
	}
	if _, ok := top.Left.(*ast.Identifier); !ok {
		t.Errorf("expected left operand to be a bare identifier (a .. (b .. c)), got %T", top.Left)
	}
	if _, ok := top.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("expected right operand to be nested concat, got %T", top.Right)
	}
}

func TestParseConcatBetweenRelationalAndAdditive(t *testing.T) {
	// a .. b + c should parse as a .. (b + c): .. binds looser than +
	file := parseOK(t, `local s = a .. b + c`)
	decl := file.Body[0].(*ast.LocalDeclaration)
	top := decl.Inits[0].(*ast.BinaryExpr)
	if top.Op.String() != ".." {
		t.Fatalf("expected top-level '..', got %q", top.Op.String())
	}
	if _, ok := top.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("expected right side to be '+' subexpression, got %T", top.Right)
	}
}

func TestParseTildeInequality(t *testing.T) {
	file := parseOK(t, `if a ~= b then return 1 end`)
	ifStmt := file.Body[0].(*ast.IfStatement)
	cond := ifStmt.Condition.(*ast.BinaryExpr)
	if cond.Op.String() != "~=" {
		t.Errorf("expected '~=', got %q", cond.Op.String())
	}
}

func TestParseIfStatement(t *testing.T) {
	source := `if x > 0 then
  print(x)
elseif x == 0 then
  print(0)
else
  print(-1)
end`
	file := parseOK(t, source)
	ifStmt, ok := file.Body[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected IfStatement, got %T", file.Body[0])
	}
	if ifStmt.Condition == nil {
		t.Fatal("condition is nil")
	}
	if len(ifStmt.ElseIfs) != 1 {
		t.Errorf("expected 1 elseif, got %d", len(ifStmt.ElseIfs))
	}
	if ifStmt.ElseBody == nil {
		t.Error("else body is nil")
	}
}

func TestParseWhileStatement(t *testing.T) {
	source := `while i < 10 do
  i = i + 1
end`
	file := parseOK(t, source)
	whileStmt, ok := file.Body[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("expected WhileStatement, got %T", file.Body[0])
	}
	if whileStmt.Condition == nil {
		t.Fatal("condition is nil")
	}
	if whileStmt.Body == nil {
		t.Fatal("body is nil")
	}
}

func TestParseRepeatStatement(t *testing.T) {
	source := `repeat
  i = i + 1
until i >= 10`
	file := parseOK(t, source)
	stmt, ok := file.Body[0].(*ast.RepeatStatement)
	if !ok {
		t.Fatalf("expected RepeatStatement, got %T", file.Body[0])
	}
	if stmt.Until == nil {
		t.Fatal("until condition is nil")
	}
}

func TestParseNumericForStatement(t *testing.T) {
	source := `for i = 1, 10, 2 do
  print(i)
end`
	file := parseOK(t, source)
	stmt, ok := file.Body[0].(*ast.ForStatement)
	if !ok {
		t.Fatalf("expected ForStatement, got %T", file.Body[0])
	}
	if stmt.Name != "i" {
		t.Errorf("expected loop var 'i', got %q", stmt.Name)
	}
	if stmt.Step == nil {
		t.Error("expected explicit step")
	}
}

func TestParseDoStatement(t *testing.T) {
	file := parseOK(t, `do
  local x = 1
end`)
	stmt, ok := file.Body[0].(*ast.DoStatement)
	if !ok {
		t.Fatalf("expected DoStatement, got %T", file.Body[0])
	}
	if len(stmt.Body.Stmts) != 1 {
		t.Errorf("expected 1 stmt in do block, got %d", len(stmt.Body.Stmts))
	}
}

func TestParseFunctionStatement(t *testing.T) {
	source := `function add(a, b)
  return a + b
end`
	file := parseOK(t, source)
	fn, ok := file.Body[0].(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("expected FunctionStatement, got %T", file.Body[0])
	}
	if len(fn.NamePath) != 1 || fn.NamePath[0] != "add" {
		t.Errorf("expected name 'add', got %v", fn.NamePath)
	}
	if len(fn.Params) != 2 {
		t.Errorf("expected 2 params, got %d", len(fn.Params))
	}
}

func TestParseLocalFunctionStatement(t *testing.T) {
	source := `local function fib(n)
  return n
end`
	file := parseOK(t, source)
	fn, ok := file.Body[0].(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("expected FunctionStatement, got %T", file.Body[0])
	}
	if !fn.IsLocal {
		t.Error("expected IsLocal true")
	}
	if len(fn.NamePath) != 1 || fn.NamePath[0] != "fib" {
		t.Errorf("expected name 'fib', got %v", fn.NamePath)
	}
}

func TestParseMethodDefinitionSugar(t *testing.T) {
	source := `function Point:move(dx, dy)
  self.x = self.x + dx
end`
	file := parseOK(t, source)
	fn, ok := file.Body[0].(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("expected FunctionStatement, got %T", file.Body[0])
	}
	if len(fn.NamePath) != 1 || fn.NamePath[0] != "Point" {
		t.Errorf("expected namePath ['Point'], got %v", fn.NamePath)
	}
	if fn.MethodName != "move" {
		t.Errorf("expected methodName 'move', got %q", fn.MethodName)
	}
	if len(fn.Params) != 2 {
		t.Errorf("expected 2 params, got %d", len(fn.Params))
	}
}

func TestParseCallExpr(t *testing.T) {
	file := parseOK(t, `print(1, 2, 3)`)
	stmt, ok := file.Body[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", file.Body[0])
	}
	call, ok := stmt.Expr.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected FunctionCall, got %T", stmt.Expr)
	}
	if len(call.Args) != 3 {
		t.Errorf("expected 3 args, got %d", len(call.Args))
	}
}

func TestParseMethodCallSugarPrependsSelf(t *testing.T) {
	file := parseOK(t, `obj:greet("hi")`)
	stmt := file.Body[0].(*ast.ExprStmt)
	call, ok := stmt.Expr.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected FunctionCall, got %T", stmt.Expr)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args (self, \"hi\"), got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.Identifier); !ok {
		t.Errorf("expected first arg to be the receiver identifier, got %T", call.Args[0])
	}
}

func TestParseMemberExpr(t *testing.T) {
	file := parseOK(t, `obj.method(1).prop`)
	stmt := file.Body[0].(*ast.ExprStmt)
	member, ok := stmt.Expr.(*ast.MemberExpr)
	if !ok {
		t.Fatalf("expected MemberExpr, got %T", stmt.Expr)
	}
	if member.Property != "prop" {
		t.Errorf("expected property 'prop', got %q", member.Property)
	}
}

func TestParseAssignment(t *testing.T) {
	file := parseOK(t, `x = 42`)
	assign, ok := file.Body[0].(*ast.Assignment)
	if !ok {
		t.Fatalf("expected Assignment, got %T", file.Body[0])
	}
	ident, ok := assign.Target.(*ast.Identifier)
	if !ok {
		t.Fatalf("expected Identifier target, got %T", assign.Target)
	}
	if ident.Name != "x" {
		t.Errorf("expected 'x', got %q", ident.Name)
	}
}

func TestParseTableConstructor(t *testing.T) {
	file := parseOK(t, `local t = { 1, 2, x = 3, [k] = 4 }`)
	decl := file.Body[0].(*ast.LocalDeclaration)
	tbl, ok := decl.Inits[0].(*ast.TableConstructor)
	if !ok {
		t.Fatalf("expected TableConstructor, got %T", decl.Inits[0])
	}
	if len(tbl.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(tbl.Fields))
	}
	if tbl.Fields[0].Key != nil {
		t.Error("expected first field to be positional (nil key)")
	}
	if sl, ok := tbl.Fields[2].Key.(*ast.StringLiteral); !ok || sl.Value != "x" {
		t.Errorf("expected third field key 'x', got %v", tbl.Fields[2].Key)
	}
}

func TestParseReturnStatementMultipleValues(t *testing.T) {
	file := parseOK(t, `function f()
  return 1, 2, 3
end`)
	fn := file.Body[0].(*ast.FunctionStatement)
	ret := fn.Body.Stmts[0].(*ast.ReturnStatement)
	if len(ret.Values) != 3 {
		t.Errorf("expected 3 return values recorded, got %d", len(ret.Values))
	}
}

func TestParseJSONOutput(t *testing.T) {
	jsonStr := parseToJSON(t, `local x = 1`)
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["kind"] != "File" {
		t.Errorf("expected kind 'File', got %v", m["kind"])
	}
}

func TestParseErrorRecovery(t *testing.T) {
	// Missing closing paren - parser should still produce a diagnostic
	// and a non-nil file.
	source := `local x = add(1, 2
local y = 3`
	l := lexer.New(source, "test.lum")
	tokens, _ := l.Tokenize()
	p := New(tokens)
	file, diags := p.ParseFile()

	if len(diags) == 0 {
		t.Error("expected parse errors")
	}
	if file == nil {
		t.Fatal("file is nil")
	}
}

func TestParseAnonymousFunctionStatementRejected(t *testing.T) {
	source := `function(x) return x end`
	l := lexer.New(source, "test.lum")
	tokens, _ := l.Tokenize()
	p := New(tokens)
	_, diags := p.ParseFile()
	if len(diags) == 0 {
		t.Error("expected a diagnostic rejecting a bare function expression statement")
	}
}
