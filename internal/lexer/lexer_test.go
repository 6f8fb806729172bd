package lexer

import (
	"lumen-lang/internal/token"
	"testing"
)

func TestTokenizeSimple(t *testing.T) {
	source := `local x = 1 + 2`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	expected := []token.Kind{
		token.KW_LOCAL, token.IDENT, token.ASSIGN,
		token.NUMBER, token.PLUS, token.NUMBER, token.EOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s (%q)", i, exp, tokens[i].Kind, tokens[i].Lexeme)
		}
	}
}

func TestTokenizeKeywords(t *testing.T) {
	source := `and break do else elseif end false for function if local nil not or repeat return then true until while`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	expected := []token.Kind{
		token.KW_AND, token.KW_BREAK, token.KW_DO, token.KW_ELSE, token.KW_ELSEIF,
		token.KW_END, token.KW_FALSE, token.KW_FOR, token.KW_FUNCTION, token.KW_IF,
		token.KW_LOCAL, token.KW_NIL, token.KW_NOT, token.KW_OR, token.KW_REPEAT,
		token.KW_RETURN, token.KW_THEN, token.KW_TRUE, token.KW_UNTIL, token.KW_WHILE,
		token.EOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	source := `= == ~= < <= > >= + - * / % # ~ ..`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	expected := []token.Kind{
		token.ASSIGN, token.EQ, token.NEQ,
		token.LT, token.LE, token.GT, token.GE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.HASH, token.TILDE, token.CONCAT,
		token.EOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

// TestTokenizeTildeMaximalMunch checks that ~ and ~= are distinguished by
// maximal munch rather than the lexer always emitting a bare ~.
func TestTokenizeTildeMaximalMunch(t *testing.T) {
	source := `~a ~=b`
	l := New(source, "test.lum")
	tokens, _ := l.Tokenize()

	expected := []token.Kind{
		token.TILDE, token.IDENT, token.NEQ, token.IDENT, token.EOF,
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

func TestTokenizeDelimiters(t *testing.T) {
	source := `( ) { } [ ] , . ; :`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	expected := []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACKET, token.RBRACKET, token.COMMA, token.DOT,
		token.SEMI, token.COLON,
		token.EOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

func TestTokenizeString(t *testing.T) {
	source := `"hello" 'line1\nline2'`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	if tokens[0].Kind != token.STRING || tokens[0].Lexeme != "hello" {
		t.Errorf("expected STRING 'hello', got %s %q", tokens[0].Kind, tokens[0].Lexeme)
	}

	if tokens[1].Kind != token.STRING || tokens[1].Lexeme != "line1\nline2" {
		t.Errorf("expected STRING with newline, got %s %q", tokens[1].Kind, tokens[1].Lexeme)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	source := `123 3.14 0 1e10 2.5e-3`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	expected := []string{"123", "3.14", "0", "1e10", "2.5e-3"}
	for i, exp := range expected {
		if tokens[i].Kind != token.NUMBER || tokens[i].Lexeme != exp {
			t.Errorf("token[%d]: expected NUMBER %q, got %s %q", i, exp, tokens[i].Kind, tokens[i].Lexeme)
		}
	}
}

// TestTokenizeLeadingDotNumber checks that a bare '.' immediately followed
// by a digit is scanned as a number (.5), while a '.' not followed by a
// digit still lexes as DOT.
func TestTokenizeLeadingDotNumber(t *testing.T) {
	source := `.5 x.y`
	l := New(source, "test.lum")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	if tokens[0].Kind != token.NUMBER || tokens[0].Lexeme != ".5" {
		t.Errorf("expected NUMBER \".5\", got %s %q", tokens[0].Kind, tokens[0].Lexeme)
	}

	expectedRest := []token.Kind{token.IDENT, token.DOT, token.IDENT, token.EOF}
	for i, exp := range expectedRest {
		if tokens[i+1].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i+1, exp, tokens[i+1].Kind)
		}
	}
}

// TestTokenizeNewlinesAreWhitespace checks that, unlike a NEWLINE-as-token
// lexer, line breaks here are skipped like any other whitespace.
func TestTokenizeNewlinesAreWhitespace(t *testing.T) {
	source := "a\nb\n"
	l := New(source, "test.lum")
	tokens, _ := l.Tokenize()

	expected := []token.Kind{token.IDENT, token.IDENT, token.EOF}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

func TestTokenizeComment(t *testing.T) {
	source := "x -- this is a comment\ny"
	l := New(source, "test.lum")
	tokens, _ := l.Tokenize()

	expected := []token.Kind{token.IDENT, token.IDENT, token.EOF}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s", i, exp, tokens[i].Kind)
		}
	}
}

func TestTokenizePositions(t *testing.T) {
	source := "local x = 1"
	l := New(source, "test.lum")
	tokens, _ := l.Tokenize()

	// "local" starts at line 1, col 1
	if tokens[0].Span.Start.Line != 1 || tokens[0].Span.Start.Column != 1 {
		t.Errorf("'local' position: expected 1:1, got %d:%d", tokens[0].Span.Start.Line, tokens[0].Span.Start.Column)
	}
	// "x" starts at line 1, col 7
	if tokens[1].Span.Start.Line != 1 || tokens[1].Span.Start.Column != 7 {
		t.Errorf("'x' position: expected 1:7, got %d:%d", tokens[1].Span.Start.Line, tokens[1].Span.Start.Column)
	}
}

// TestTokenizePositionsMonotone checks that token spans never go backwards.
func TestTokenizePositionsMonotone(t *testing.T) {
	source := "local total = 0\nfor i = 1, 10 do\n  total = total + i\nend"
	l := New(source, "test.lum")
	tokens, _ := l.Tokenize()

	for i := 1; i < len(tokens); i++ {
		prev := tokens[i-1].Span.End.Offset
		cur := tokens[i].Span.Start.Offset
		if cur < prev {
			t.Errorf("token[%d] starts at offset %d, before previous token ended at %d", i, cur, prev)
		}
	}
}
