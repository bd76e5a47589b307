package lexer

import "testing"

func collectTypes(src string) []TokenType {
	l := New("test.mm", src)

	var types []TokenType

	for {
		tok := l.NextToken()
		types = append(types, tok.Type)

		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return types
}

func TestLexerKeywordsAndPunctuation(t *testing.T) {
	l := New("test.mm", "atom add(x: i64, ref y: i64) requires x >= 0 { x + y }")

	want := []TokenType{
		TokenAtom, TokenIdentifier, TokenLParen,
		TokenIdentifier, TokenColon, TokenIdentifier, TokenComma,
		TokenRef, TokenIdentifier, TokenColon, TokenIdentifier, TokenRParen,
		TokenRequires, TokenIdentifier, TokenGe, TokenInteger,
		TokenLBrace, TokenIdentifier, TokenPlus, TokenIdentifier, TokenRBrace,
	}

	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("token %d: got %v, want %v (literal %q)", i, tok.Type, w, tok.Literal)
		}
	}
}

func TestLexerSkipsLineComments(t *testing.T) {
	types := collectTypes("// a comment\nlet x = 1;")

	if types[0] != TokenLet {
		t.Fatalf("expected comment to be skipped, got first token %v", types[0])
	}
}

func TestLexerNumberLiterals(t *testing.T) {
	l := New("test.mm", "1 2.5 0")

	tok := l.NextToken()
	if tok.Type != TokenInteger || tok.Literal != "1" {
		t.Fatalf("got %v %q", tok.Type, tok.Literal)
	}

	tok = l.NextToken()
	if tok.Type != TokenFloat || tok.Literal != "2.5" {
		t.Fatalf("got %v %q", tok.Type, tok.Literal)
	}

	tok = l.NextToken()
	if tok.Type != TokenInteger || tok.Literal != "0" {
		t.Fatalf("got %v %q", tok.Type, tok.Literal)
	}
}

func TestLexerTwoCharOperators(t *testing.T) {
	l := New("test.mm", ":: => == != <= >= && ||")

	want := []TokenType{
		TokenColonColon, TokenArrow, TokenFatEq, TokenNe,
		TokenLe, TokenGe, TokenAndAnd, TokenOrOr,
	}

	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != w {
			t.Fatalf("operator %d: got %v, want %v", i, tok.Type, w)
		}
	}
}

func TestLexerUnknownByteProducesError(t *testing.T) {
	l := New("test.mm", "$")

	tok := l.NextToken()
	if tok.Type != TokenError {
		t.Fatalf("expected TokenError, got %v", tok.Type)
	}
}

func TestLexerUnderscoreIsWildcard(t *testing.T) {
	l := New("test.mm", "_ _foo")

	tok := l.NextToken()
	if tok.Type != TokenUnderscore {
		t.Fatalf("expected TokenUnderscore, got %v", tok.Type)
	}

	tok = l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "_foo" {
		t.Fatalf("expected identifier _foo, got %v %q", tok.Type, tok.Literal)
	}
}
