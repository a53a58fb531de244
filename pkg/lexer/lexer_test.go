package lexer

import "testing"

func TestNextTokenBasicTokens(t *testing.T) {
	input := `(){},.-+;*/`

	tests := []struct {
		expectedType   TokenType
		expectedLexeme string
	}{
		{TokenLeftParen, "("},
		{TokenRightParen, ")"},
		{TokenLeftBrace, "{"},
		{TokenRightBrace, "}"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenMinus, "-"},
		{TokenPlus, "+"},
		{TokenSemicolon, ";"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - type wrong. expected=%v, got=%v", i, tt.expectedType, tok.Type)
		}
		if tok.Lexeme != tt.expectedLexeme {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q", i, tt.expectedLexeme, tok.Lexeme)
		}
	}
}

func TestNextTokenOperators(t *testing.T) {
	input := `! != = == < <= > >=`

	tests := []TokenType{
		TokenBang, TokenBangEqual, TokenEqual, TokenEqualEqual,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEOF,
	}

	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d] - expected=%v, got=%v (%q)", i, want, tok.Type, tok.Lexeme)
		}
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := `var x = 1; fun add(a, b) { return a + b; } class Foo {} this super and or if else while for true false nil print`

	l := New(input)
	var got []TokenType
	for {
		tok := l.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		got = append(got, tok.Type)
	}

	want := []TokenType{
		TokenVar, TokenIdentifier, TokenEqual, TokenNumber, TokenSemicolon,
		TokenFun, TokenIdentifier, TokenLeftParen, TokenIdentifier, TokenComma,
		TokenIdentifier, TokenRightParen, TokenLeftBrace, TokenReturn,
		TokenIdentifier, TokenPlus, TokenIdentifier, TokenSemicolon, TokenRightBrace,
		TokenClass, TokenIdentifier, TokenLeftBrace, TokenRightBrace,
		TokenThis, TokenSuper, TokenAnd, TokenOr, TokenIf, TokenElse, TokenWhile, TokenFor,
		TokenTrue, TokenFalse, TokenNil, TokenPrint,
	}

	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextTokenNumbers(t *testing.T) {
	cases := []string{"123", "1.5", "0.25"}
	for _, src := range cases {
		l := New(src)
		tok := l.NextToken()
		if tok.Type != TokenNumber || tok.Lexeme != src {
			t.Fatalf("New(%q): got %v %q", src, tok.Type, tok.Lexeme)
		}
	}
}

func TestNextTokenString(t *testing.T) {
	l := New(`"hello world"`)
	tok := l.NextToken()
	if tok.Type != TokenString || tok.Lexeme != "hello world" {
		t.Fatalf("got %v %q", tok.Type, tok.Lexeme)
	}
}

func TestNextTokenUnterminatedString(t *testing.T) {
	l := New(`"oops`)
	tok := l.NextToken()
	if tok.Type != TokenError {
		t.Fatalf("expected TokenError for unterminated string, got %v", tok.Type)
	}
}

func TestNextTokenSkipsLineComments(t *testing.T) {
	l := New("1 // this is a comment\n2")
	a := l.NextToken()
	b := l.NextToken()
	if a.Lexeme != "1" || b.Lexeme != "2" {
		t.Fatalf("comment not skipped: got %q, %q", a.Lexeme, b.Lexeme)
	}
	if b.Line != 2 {
		t.Fatalf("line tracking wrong: got %d, want 2", b.Line)
	}
}

func TestNextTokenTracksLineNumbers(t *testing.T) {
	l := New("var a = 1;\nvar b = 2;")
	l.NextToken() // var
	l.NextToken() // a
	l.NextToken() // =
	l.NextToken() // 1
	l.NextToken() // ;
	tok := l.NextToken()
	if tok.Type != TokenVar || tok.Line != 2 {
		t.Fatalf("expected var on line 2, got %v on line %d", tok.Type, tok.Line)
	}
}
