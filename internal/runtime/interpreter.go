package runtime

import (
	"fmt"
	"io"
	"lumen-lang/internal/ast"
	"lumen-lang/internal/span"
	"lumen-lang/internal/token"
	"math"
)

// ============================================================
// Control flow signals
// ============================================================

// ExecSignal represents a control flow signal from statement execution.
type ExecSignal int

const (
	SigNone   ExecSignal = iota
	SigReturn            // return from function or chunk
	SigBreak             // break from the innermost loop
)

// ExecResult carries a control flow signal and an optional value (for
// return).
type ExecResult struct {
	Signal ExecSignal
	Value  Value
}

var resultNone = ExecResult{Signal: SigNone}

// ============================================================
// Runtime errors
// ============================================================

// RuntimeError represents a failure raised by the interpreter itself
// (type mismatch, undefined path, division by zero, ...).
type RuntimeError struct {
	Message string
	Span    span.Span
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func runtimeErr(s span.Span, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Span: s}
}

// ScriptError represents a value raised by the running script itself,
// via the error() builtin. pcall catches this (and any RuntimeError)
// without letting it unwind past the call.
type ScriptError struct {
	Value Value
	Span  span.Span
}

func (e *ScriptError) Error() string {
	return e.Value.String()
}

// ============================================================
// Interpreter
// ============================================================

// Interpreter walks the AST and executes it against a chain of
// Environments rooted at global.
type Interpreter struct {
	global *Environment
	env    *Environment
	output io.Writer
}

// NewInterpreter creates an interpreter with the base library registered
// in its root scope. sandbox receives every top-level binding made
// during the run; a nil sandbox gets a freshly allocated Table.
func NewInterpreter(output io.Writer, sandbox *Table) *Interpreter {
	if sandbox == nil {
		sandbox = NewTable()
	}
	root := NewRootEnvironment(sandbox)
	interp := &Interpreter{global: root, env: root, output: output}
	RegisterBuiltins(interp, root, output)
	return interp
}

// Env returns the interpreter's current scope (used by the REPL to keep
// state across successive inputs).
func (i *Interpreter) Env() *Environment {
	return i.env
}

// Run executes every top-level statement of file in the interpreter's
// current scope. A return at the top level ends the run early and
// supplies the program's result value; running off the end yields Nil.
func (i *Interpreter) Run(file *ast.File) (Value, error) {
	result, err := i.execStmtsInCurrentEnv(file.Body)
	if err != nil {
		return nil, err
	}
	if result.Signal == SigBreak {
		return nil, runtimeErr(span.Span{}, "break outside of a loop")
	}
	if result.Signal == SigReturn {
		return result.Value, nil
	}
	return Nil, nil
}

// ============================================================
// Block / statement execution
// ============================================================

// execBlock runs block's statements in blockEnv, restoring the
// interpreter's previous scope before returning.
func (i *Interpreter) execBlock(block *ast.Block, blockEnv *Environment) (ExecResult, error) {
	prevEnv := i.env
	i.env = blockEnv
	defer func() { i.env = prevEnv }()
	return i.execStmtsInCurrentEnv(block.Stmts)
}

// execStmtsInCurrentEnv runs stmts without swapping scopes, so callers
// that need the caller's scope to remain visible afterward (repeat/until)
// can drive the swap themselves.
func (i *Interpreter) execStmtsInCurrentEnv(stmts []ast.Stmt) (ExecResult, error) {
	for _, stmt := range stmts {
		result, err := i.execStmt(stmt)
		if err != nil {
			return resultNone, err
		}
		if result.Signal != SigNone {
			return result, nil
		}
	}
	return resultNone, nil
}

func (i *Interpreter) execStmt(stmt ast.Stmt) (ExecResult, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		_, err := i.evalExpr(s.Expr)
		return resultNone, err
	case *ast.LocalDeclaration:
		return i.execLocalDeclaration(s)
	case *ast.Assignment:
		return i.execAssignment(s)
	case *ast.ReturnStatement:
		return i.execReturnStatement(s)
	case *ast.BreakStatement:
		return ExecResult{Signal: SigBreak}, nil
	case *ast.DoStatement:
		return i.execBlock(s.Body, NewEnvironment(i.env))
	case *ast.IfStatement:
		return i.execIfStatement(s)
	case *ast.WhileStatement:
		return i.execWhileStatement(s)
	case *ast.RepeatStatement:
		return i.execRepeatStatement(s)
	case *ast.ForStatement:
		return i.execForStatement(s)
	case *ast.FunctionStatement:
		return i.execFunctionStatement(s)
	default:
		return resultNone, runtimeErr(stmt.GetSpan(), "unhandled statement type: %T", stmt)
	}
}

func (i *Interpreter) execLocalDeclaration(s *ast.LocalDeclaration) (ExecResult, error) {
	values := make([]Value, len(s.Names))
	for idx := range values {
		values[idx] = Nil
	}
	for idx, initExpr := range s.Inits {
		v, err := i.evalExpr(initExpr)
		if err != nil {
			return resultNone, err
		}
		if idx < len(values) {
			values[idx] = v
		}
	}
	for idx, name := range s.Names {
		i.env.Define(name, values[idx])
	}
	return resultNone, nil
}

func (i *Interpreter) execAssignment(s *ast.Assignment) (ExecResult, error) {
	val, err := i.evalExpr(s.Value)
	if err != nil {
		return resultNone, err
	}

	switch target := s.Target.(type) {
	case *ast.Identifier:
		i.env.Set(target.Name, val)
	case *ast.MemberExpr:
		obj, err := i.evalExpr(target.Object)
		if err != nil {
			return resultNone, err
		}
		tbl, ok := obj.(*Table)
		if !ok {
			return resultNone, runtimeErr(s.GetSpan(), "attempt to index a %s value", obj.TypeName())
		}
		tbl.Set(StringVal(target.Property), val)
	case *ast.IndexExpr:
		obj, err := i.evalExpr(target.Object)
		if err != nil {
			return resultNone, err
		}
		idx, err := i.evalExpr(target.Index)
		if err != nil {
			return resultNone, err
		}
		tbl, ok := obj.(*Table)
		if !ok {
			return resultNone, runtimeErr(s.GetSpan(), "attempt to index a %s value", obj.TypeName())
		}
		tbl.Set(idx, val)
	default:
		return resultNone, runtimeErr(s.GetSpan(), "invalid assignment target")
	}
	return resultNone, nil
}

func (i *Interpreter) execReturnStatement(s *ast.ReturnStatement) (ExecResult, error) {
	var val Value = Nil
	for idx, expr := range s.Values {
		v, err := i.evalExpr(expr)
		if err != nil {
			return resultNone, err
		}
		if idx == 0 {
			val = v
		}
	}
	return ExecResult{Signal: SigReturn, Value: val}, nil
}

func (i *Interpreter) execIfStatement(s *ast.IfStatement) (ExecResult, error) {
	cond, err := i.evalExpr(s.Condition)
	if err != nil {
		return resultNone, err
	}
	if IsTruthy(cond) {
		return i.execBlock(s.Body, NewEnvironment(i.env))
	}
	for _, elseIf := range s.ElseIfs {
		cond, err := i.evalExpr(elseIf.Condition)
		if err != nil {
			return resultNone, err
		}
		if IsTruthy(cond) {
			return i.execBlock(elseIf.Body, NewEnvironment(i.env))
		}
	}
	if s.ElseBody != nil {
		return i.execBlock(s.ElseBody, NewEnvironment(i.env))
	}
	return resultNone, nil
}

func (i *Interpreter) execWhileStatement(s *ast.WhileStatement) (ExecResult, error) {
	for {
		cond, err := i.evalExpr(s.Condition)
		if err != nil {
			return resultNone, err
		}
		if !IsTruthy(cond) {
			break
		}
		result, err := i.execBlock(s.Body, NewEnvironment(i.env))
		if err != nil {
			return resultNone, err
		}
		if result.Signal == SigBreak {
			break
		}
		if result.Signal == SigReturn {
			return result, nil
		}
	}
	return resultNone, nil
}

// execRepeatStatement evaluates Until in the same scope as Body, so the
// until-condition can observe locals the body declared.
func (i *Interpreter) execRepeatStatement(s *ast.RepeatStatement) (ExecResult, error) {
	for {
		loopEnv := NewEnvironment(i.env)
		prevEnv := i.env
		i.env = loopEnv

		result, err := i.execStmtsInCurrentEnv(s.Body.Stmts)
		if err != nil {
			i.env = prevEnv
			return resultNone, err
		}
		if result.Signal == SigBreak {
			i.env = prevEnv
			break
		}
		if result.Signal == SigReturn {
			i.env = prevEnv
			return result, nil
		}

		until, err := i.evalExpr(s.Until)
		i.env = prevEnv
		if err != nil {
			return resultNone, err
		}
		if IsTruthy(until) {
			break
		}
	}
	return resultNone, nil
}

func (i *Interpreter) execForStatement(s *ast.ForStatement) (ExecResult, error) {
	startV, err := i.evalExpr(s.Start)
	if err != nil {
		return resultNone, err
	}
	finishV, err := i.evalExpr(s.Finish)
	if err != nil {
		return resultNone, err
	}
	var stepV Value = NumberVal(1)
	if s.Step != nil {
		stepV, err = i.evalExpr(s.Step)
		if err != nil {
			return resultNone, err
		}
	}
	start, ok1 := startV.(NumberVal)
	finish, ok2 := finishV.(NumberVal)
	step, ok3 := stepV.(NumberVal)
	if !ok1 || !ok2 || !ok3 {
		return resultNone, runtimeErr(s.GetSpan(), "'for' initial value, limit, and step must be numbers")
	}
	if step == 0 {
		return resultNone, runtimeErr(s.GetSpan(), "'for' step is zero")
	}

	for v := float64(start); (step > 0 && v <= float64(finish)) || (step < 0 && v >= float64(finish)); v += float64(step) {
		loopEnv := NewEnvironment(i.env)
		loopEnv.Define(s.Name, NumberVal(v))
		result, err := i.execBlock(s.Body, loopEnv)
		if err != nil {
			return resultNone, err
		}
		if result.Signal == SigBreak {
			break
		}
		if result.Signal == SigReturn {
			return result, nil
		}
	}
	return resultNone, nil
}

// execFunctionStatement covers plain function declarations, dotted-path
// declarations, the method-sugar form, and local function declarations.
// The method-sugar form function a:b(...) ... end expands to
// a.b = function(self, ...) ... end: self is prepended to Params and
// bound positionally from the call's first argument like any other
// parameter, never resolved through a captured outer scope.
func (i *Interpreter) execFunctionStatement(s *ast.FunctionStatement) (ExecResult, error) {
	params := s.Params
	if s.MethodName != "" {
		params = append([]string{"self"}, params...)
	}

	if s.IsLocal {
		name := s.NamePath[0]
		i.env.Define(name, Nil)
		fn := &Function{Name: name, Params: params, Body: s.Body, Closure: i.env}
		i.env.Define(name, fn)
		return resultNone, nil
	}

	if s.MethodName == "" && len(s.NamePath) == 1 {
		name := s.NamePath[0]
		fn := &Function{Name: name, Params: params, Body: s.Body, Closure: i.env}
		i.env.Set(name, fn)
		return resultNone, nil
	}

	objectPath := s.NamePath
	key := s.MethodName
	if key == "" {
		key = objectPath[len(objectPath)-1]
		objectPath = objectPath[:len(objectPath)-1]
	}
	obj, err := i.resolvePathObject(objectPath, s.GetSpan())
	if err != nil {
		return resultNone, err
	}
	fn := &Function{Name: key, Params: params, Body: s.Body, Closure: i.env}
	obj.Set(StringVal(key), fn)
	return resultNone, nil
}

// resolvePathObject walks a dotted name path (a.b.c) down to the table
// the final component should be read from or written to.
func (i *Interpreter) resolvePathObject(path []string, sp span.Span) (*Table, error) {
	val, ok := i.env.Get(path[0])
	if !ok {
		return nil, runtimeErr(sp, "undefined variable '%s'", path[0])
	}
	for _, name := range path[1:] {
		tbl, ok := val.(*Table)
		if !ok {
			return nil, runtimeErr(sp, "attempt to index a %s value", val.TypeName())
		}
		val = tbl.Get(StringVal(name))
	}
	tbl, ok := val.(*Table)
	if !ok {
		return nil, runtimeErr(sp, "attempt to index a %s value", val.TypeName())
	}
	return tbl, nil
}

// ============================================================
// Expression evaluation
// ============================================================

func (i *Interpreter) evalExpr(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return NumberVal(e.Value), nil
	case *ast.StringLiteral:
		return StringVal(e.Value), nil
	case *ast.BoolLiteral:
		return BoolVal(e.Value), nil
	case *ast.NilLiteral:
		return Nil, nil
	case *ast.Identifier:
		return i.evalIdentifier(e)
	case *ast.UnaryExpr:
		return i.evalUnary(e)
	case *ast.BinaryExpr:
		return i.evalBinary(e)
	case *ast.FunctionCall:
		return i.evalCall(e)
	case *ast.MemberExpr:
		return i.evalMember(e)
	case *ast.IndexExpr:
		return i.evalIndex(e)
	case *ast.FunctionExpr:
		return i.evalFunctionExpr(e)
	case *ast.TableConstructor:
		return i.evalTableConstructor(e)
	default:
		return nil, runtimeErr(expr.GetSpan(), "unhandled expression type: %T", expr)
	}
}

func (i *Interpreter) evalIdentifier(e *ast.Identifier) (Value, error) {
	val, ok := i.env.Get(e.Name)
	if !ok {
		return Nil, nil
	}
	return val, nil
}

func (i *Interpreter) evalUnary(e *ast.UnaryExpr) (Value, error) {
	operand, err := i.evalExpr(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.KW_NOT:
		return BoolVal(!IsTruthy(operand)), nil
	case token.MINUS:
		n, ok := operand.(NumberVal)
		if !ok {
			return nil, runtimeErr(e.GetSpan(), "attempt to perform arithmetic on a %s value", operand.TypeName())
		}
		return NumberVal(-float64(n)), nil
	case token.HASH:
		switch v := operand.(type) {
		case *Table:
			return NumberVal(v.Len()), nil
		case StringVal:
			return NumberVal(len(string(v))), nil
		default:
			return nil, runtimeErr(e.GetSpan(), "attempt to get length of a %s value", operand.TypeName())
		}
	case token.TILDE:
		n, ok := operand.(NumberVal)
		if !ok {
			return nil, runtimeErr(e.GetSpan(), "attempt to perform bitwise operation on a %s value", operand.TypeName())
		}
		return NumberVal(float64(^int64(n))), nil
	default:
		return nil, runtimeErr(e.GetSpan(), "unknown unary operator: %s", e.Op)
	}
}

func (i *Interpreter) evalBinary(e *ast.BinaryExpr) (Value, error) {
	if e.Op == token.KW_AND || e.Op == token.KW_OR {
		return i.evalLogical(e)
	}

	left, err := i.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := i.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.EQ:
		return BoolVal(valuesEqual(left, right)), nil
	case token.NEQ:
		return BoolVal(!valuesEqual(left, right)), nil
	case token.CONCAT:
		return i.evalConcat(left, right, e.GetSpan())
	}

	if ls, lok := left.(StringVal); lok {
		if rs, rok := right.(StringVal); rok && isRelational(e.Op) {
			return compareStrings(e.Op, string(ls), string(rs)), nil
		}
	}

	leftN, leftOk := left.(NumberVal)
	rightN, rightOk := right.(NumberVal)
	if !leftOk || !rightOk {
		if isRelational(e.Op) {
			return nil, runtimeErr(e.GetSpan(), "attempt to compare %s with %s", left.TypeName(), right.TypeName())
		}
		return nil, runtimeErr(e.GetSpan(), "attempt to perform arithmetic on a %s value", firstNonNumberType(left, right))
	}
	lf, rf := float64(leftN), float64(rightN)

	switch e.Op {
	case token.LT, token.LE, token.GT, token.GE:
		return compareNumbers(e.Op, lf, rf), nil
	case token.PLUS:
		return NumberVal(lf + rf), nil
	case token.MINUS:
		return NumberVal(lf - rf), nil
	case token.STAR:
		return NumberVal(lf * rf), nil
	case token.SLASH:
		if rf == 0 {
			return nil, runtimeErr(e.GetSpan(), "attempt to divide by zero")
		}
		return NumberVal(lf / rf), nil
	case token.PERCENT:
		li, ri := math.Trunc(lf), math.Trunc(rf)
		if ri == 0 {
			return nil, runtimeErr(e.GetSpan(), "attempt to perform 'n%%0'")
		}
		return NumberVal(math.Mod(li, ri)), nil
	default:
		return nil, runtimeErr(e.GetSpan(), "unknown binary operator: %s", e.Op)
	}
}

func isRelational(op token.Kind) bool {
	switch op {
	case token.LT, token.LE, token.GT, token.GE:
		return true
	}
	return false
}

func compareNumbers(op token.Kind, a, b float64) BoolVal {
	switch op {
	case token.LT:
		return BoolVal(a < b)
	case token.LE:
		return BoolVal(a <= b)
	case token.GT:
		return BoolVal(a > b)
	case token.GE:
		return BoolVal(a >= b)
	}
	return BoolVal(false)
}

func compareStrings(op token.Kind, a, b string) BoolVal {
	switch op {
	case token.LT:
		return BoolVal(a < b)
	case token.LE:
		return BoolVal(a <= b)
	case token.GT:
		return BoolVal(a > b)
	case token.GE:
		return BoolVal(a >= b)
	}
	return BoolVal(false)
}

func firstNonNumberType(vals ...Value) string {
	for _, v := range vals {
		if _, ok := v.(NumberVal); !ok {
			return v.TypeName()
		}
	}
	return "number"
}

func (i *Interpreter) evalConcat(left, right Value, sp span.Span) (Value, error) {
	ls, lok := concatOperand(left)
	rs, rok := concatOperand(right)
	if !lok {
		return nil, runtimeErr(sp, "attempt to concatenate a %s value", left.TypeName())
	}
	if !rok {
		return nil, runtimeErr(sp, "attempt to concatenate a %s value", right.TypeName())
	}
	return StringVal(ls + rs), nil
}

func concatOperand(v Value) (string, bool) {
	switch val := v.(type) {
	case StringVal:
		return string(val), true
	case NumberVal:
		return val.String(), true
	}
	return "", false
}

func (i *Interpreter) evalLogical(e *ast.BinaryExpr) (Value, error) {
	left, err := i.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == token.KW_OR {
		if IsTruthy(left) {
			return left, nil
		}
		return i.evalExpr(e.Right)
	}
	if !IsTruthy(left) {
		return left, nil
	}
	return i.evalExpr(e.Right)
}

func (i *Interpreter) evalCall(e *ast.FunctionCall) (Value, error) {
	callee, err := i.evalExpr(e.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(e.Args))
	for idx, argExpr := range e.Args {
		val, err := i.evalExpr(argExpr)
		if err != nil {
			return nil, err
		}
		args[idx] = val
	}
	return i.callValue(callee, args, e.GetSpan())
}

func (i *Interpreter) callValue(callee Value, args []Value, s span.Span) (Value, error) {
	switch fn := callee.(type) {
	case *Function:
		return i.callFunction(fn, args)
	case *Builtin:
		return fn.Fn(args)
	default:
		return nil, runtimeErr(s, "attempt to call a %s value", callee.TypeName())
	}
}

func (i *Interpreter) callFunction(fn *Function, args []Value) (Value, error) {
	funcEnv := NewEnvironment(fn.Closure)
	for idx, param := range fn.Params {
		var v Value = Nil
		if idx < len(args) {
			v = args[idx]
		}
		funcEnv.Define(param, v)
	}
	result, err := i.execBlock(fn.Body, funcEnv)
	if err != nil {
		return nil, err
	}
	if result.Signal == SigReturn {
		return result.Value, nil
	}
	return Nil, nil
}

func (i *Interpreter) evalMember(e *ast.MemberExpr) (Value, error) {
	obj, err := i.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	tbl, ok := obj.(*Table)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "attempt to index a %s value", obj.TypeName())
	}
	return tbl.Get(StringVal(e.Property)), nil
}

func (i *Interpreter) evalIndex(e *ast.IndexExpr) (Value, error) {
	obj, err := i.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	idx, err := i.evalExpr(e.Index)
	if err != nil {
		return nil, err
	}
	tbl, ok := obj.(*Table)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "attempt to index a %s value", obj.TypeName())
	}
	return tbl.Get(idx), nil
}

func (i *Interpreter) evalFunctionExpr(e *ast.FunctionExpr) (Value, error) {
	return &Function{Params: e.Params, Body: e.Body, Closure: i.env}, nil
}

func (i *Interpreter) evalTableConstructor(e *ast.TableConstructor) (Value, error) {
	tbl := NewTable()
	nextIndex := 1
	for _, field := range e.Fields {
		val, err := i.evalExpr(field.Value)
		if err != nil {
			return nil, err
		}
		if field.Key == nil {
			tbl.Set(NumberVal(nextIndex), val)
			nextIndex++
			continue
		}
		if sl, ok := field.Key.(*ast.StringLiteral); ok {
			tbl.Set(StringVal(sl.Value), val)
			continue
		}
		keyVal, err := i.evalExpr(field.Key)
		if err != nil {
			return nil, err
		}
		tbl.Set(keyVal, val)
	}
	return tbl, nil
}

// ============================================================
// Value equality
// ============================================================

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case NumberVal:
		bv, ok := b.(NumberVal)
		return ok && av == bv
	case StringVal:
		bv, ok := b.(StringVal)
		return ok && av == bv
	case BoolVal:
		bv, ok := b.(BoolVal)
		return ok && av == bv
	case NilVal:
		_, ok := b.(NilVal)
		return ok
	}
	return a == b
}
