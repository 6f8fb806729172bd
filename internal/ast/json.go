package ast

import (
	"lumen-lang/internal/span"
	"lumen-lang/internal/token"
)

// NodeToMap converts an AST node to a map suitable for JSON serialization.
// This produces a tagged-union structure: every node has a "kind" field.
func NodeToMap(node Node) map[string]interface{} {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *File:
		return m("File", n.Span, "body", stmtSlice(n.Body))
	case *Block:
		return m("Block", n.Span, "stmts", stmtSlice(n.Stmts))

	// ---- Expressions ----
	case *Identifier:
		return m("Identifier", n.Span, "name", n.Name)
	case *NumberLiteral:
		return m("NumberLiteral", n.Span, "value", n.Value)
	case *StringLiteral:
		return m("StringLiteral", n.Span, "value", n.Value)
	case *BoolLiteral:
		return m("BoolLiteral", n.Span, "value", n.Value)
	case *NilLiteral:
		return m("NilLiteral", n.Span)
	case *UnaryExpr:
		return m("UnaryExpr", n.Span, "op", opStr(n.Op), "operand", NodeToMap(n.Operand))
	case *BinaryExpr:
		return m("BinaryExpr", n.Span,
			"op", opStr(n.Op),
			"left", NodeToMap(n.Left),
			"right", NodeToMap(n.Right))
	case *FunctionCall:
		return m("FunctionCall", n.Span,
			"callee", NodeToMap(n.Callee),
			"args", exprSlice(n.Args))
	case *IndexExpr:
		return m("IndexExpr", n.Span,
			"object", NodeToMap(n.Object),
			"index", NodeToMap(n.Index))
	case *MemberExpr:
		return m("MemberExpr", n.Span,
			"object", NodeToMap(n.Object),
			"property", n.Property)
	case *FunctionExpr:
		return m("FunctionExpr", n.Span, "params", n.Params, "body", NodeToMap(n.Body))
	case *TableConstructor:
		fields := make([]interface{}, len(n.Fields))
		for i, f := range n.Fields {
			fm := map[string]interface{}{"value": NodeToMap(f.Value)}
			if f.Key != nil {
				fm["key"] = NodeToMap(f.Key)
			}
			fields[i] = fm
		}
		return m("TableConstructor", n.Span, "fields", fields)

	// ---- Statements ----
	case *ExprStmt:
		return m("ExprStmt", n.Span, "expr", NodeToMap(n.Expr))
	case *LocalDeclaration:
		return m("LocalDeclaration", n.Span, "names", n.Names, "inits", exprSlice(n.Inits))
	case *Assignment:
		return m("Assignment", n.Span,
			"target", NodeToMap(n.Target),
			"value", NodeToMap(n.Value))
	case *ReturnStatement:
		return m("ReturnStatement", n.Span, "values", exprSlice(n.Values))
	case *BreakStatement:
		return m("BreakStatement", n.Span)
	case *DoStatement:
		return m("DoStatement", n.Span, "body", NodeToMap(n.Body))
	case *IfStatement:
		result := m("IfStatement", n.Span,
			"condition", NodeToMap(n.Condition),
			"body", NodeToMap(n.Body))
		if len(n.ElseIfs) > 0 {
			elseIfs := make([]interface{}, len(n.ElseIfs))
			for i, ei := range n.ElseIfs {
				elseIfs[i] = map[string]interface{}{
					"kind":      "ElseIfClause",
					"span":      spanToMap(ei.Span),
					"condition": NodeToMap(ei.Condition),
					"body":      NodeToMap(ei.Body),
				}
			}
			result["elseIfs"] = elseIfs
		}
		if n.ElseBody != nil {
			result["elseBody"] = NodeToMap(n.ElseBody)
		}
		return result
	case *WhileStatement:
		return m("WhileStatement", n.Span,
			"condition", NodeToMap(n.Condition),
			"body", NodeToMap(n.Body))
	case *RepeatStatement:
		return m("RepeatStatement", n.Span,
			"body", NodeToMap(n.Body),
			"until", NodeToMap(n.Until))
	case *ForStatement:
		result := m("ForStatement", n.Span,
			"name", n.Name,
			"start", NodeToMap(n.Start),
			"finish", NodeToMap(n.Finish),
			"body", NodeToMap(n.Body))
		if n.Step != nil {
			result["step"] = NodeToMap(n.Step)
		}
		return result
	case *FunctionStatement:
		return m("FunctionStatement", n.Span,
			"namePath", n.NamePath,
			"methodName", n.MethodName,
			"isLocal", n.IsLocal,
			"params", n.Params,
			"body", NodeToMap(n.Body))

	default:
		return map[string]interface{}{"kind": "Unknown"}
	}
}

// ---- helpers ----

// m builds a map with kind, span, and extra key-value pairs.
func m(kind string, s span.Span, kvs ...interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"kind": kind,
		"span": spanToMap(s),
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key := kvs[i].(string)
		result[key] = kvs[i+1]
	}
	return result
}

func spanToMap(s span.Span) map[string]interface{} {
	return map[string]interface{}{
		"start": map[string]interface{}{
			"offset": s.Start.Offset,
			"line":   s.Start.Line,
			"column": s.Start.Column,
		},
		"end": map[string]interface{}{
			"offset": s.End.Offset,
			"line":   s.End.Line,
			"column": s.End.Column,
		},
	}
}

func stmtSlice(stmts []Stmt) []interface{} {
	result := make([]interface{}, len(stmts))
	for i, n := range stmts {
		result[i] = NodeToMap(n)
	}
	return result
}

func exprSlice(exprs []Expr) []interface{} {
	result := make([]interface{}, len(exprs))
	for i, e := range exprs {
		result[i] = NodeToMap(e)
	}
	return result
}

func opStr(kind token.Kind) string {
	return kind.String()
}
