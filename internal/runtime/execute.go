package runtime

import (
	"fmt"
	"io"
	"lumen-lang/internal/lexer"
	"lumen-lang/internal/parser"
)

// Execute lexes, parses, and evaluates source in a fresh interpreter,
// mirroring every top-level binding into sandbox (a nil sandbox is
// replaced by a freshly allocated Table that the caller never sees). Each
// stage that fails prefixes its error so callers and the CLI can tell
// where in the pipeline a script went wrong.
func Execute(source string, sandbox *Table) (Value, error) {
	return ExecuteTo(source, sandbox, io.Discard)
}

// ExecuteTo behaves like Execute but sends print() output to w instead
// of discarding it.
func ExecuteTo(source string, sandbox *Table, w io.Writer) (Value, error) {
	lx := lexer.New(source, "")
	tokens, diags := lx.Tokenize()
	if len(diags) > 0 {
		d := diags[0]
		return nil, fmt.Errorf("lexical analysis failed: %s (line %d, column %d)", d.Message, d.Span.Start.Line, d.Span.Start.Column)
	}

	p := parser.New(tokens)
	file, diags := p.ParseFile()
	if len(diags) > 0 {
		return nil, fmt.Errorf("parse failed: %s", diags[0].String())
	}

	interp := NewInterpreter(w, sandbox)
	result, err := interp.Run(file)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %s", err)
	}
	return result, nil
}
