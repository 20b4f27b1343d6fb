package compiler

import (
	"errors"
	"reflect"
	"testing"
)

// kinds strips a token slice down to types and lexemes.
func kinds(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		out[i] = Token{Type: tok.Type, Lexeme: tok.Lexeme}
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []Token{{Type: EOF}},
		},
		{
			name:  "Symbols",
			input: "+ * / ^ = == != < > <= >= ; , { } ( )",
			expected: []Token{
				{Type: PLUS, Lexeme: "+"},
				{Type: STAR, Lexeme: "*"},
				{Type: SLASH, Lexeme: "/"},
				{Type: CARET, Lexeme: "^"},
				{Type: ASSIGN, Lexeme: "="},
				{Type: EQUALS, Lexeme: "=="},
				{Type: NOT_EQ, Lexeme: "!="},
				{Type: LESS, Lexeme: "<"},
				{Type: GREATER, Lexeme: ">"},
				{Type: LESS_EQ, Lexeme: "<="},
				{Type: GREATER_EQ, Lexeme: ">="},
				{Type: SEMICOLON, Lexeme: ";"},
				{Type: COMMA, Lexeme: ","},
				{Type: LBRACE, Lexeme: "{"},
				{Type: RBRACE, Lexeme: "}"},
				{Type: LPAREN, Lexeme: "("},
				{Type: RPAREN, Lexeme: ")"},
				{Type: EOF},
			},
		},
		{
			name:  "Keywords and identifiers",
			input: "func if else while return print scan read sqrt variableName _under_score",
			expected: []Token{
				{Type: FUNC, Lexeme: "func"},
				{Type: IF, Lexeme: "if"},
				{Type: ELSE, Lexeme: "else"},
				{Type: WHILE, Lexeme: "while"},
				{Type: RETURN, Lexeme: "return"},
				{Type: PRINT, Lexeme: "print"},
				{Type: SCAN, Lexeme: "scan"},
				{Type: SCAN, Lexeme: "read"},
				{Type: SQRT, Lexeme: "sqrt"},
				{Type: IDENTIFIER, Lexeme: "variableName"},
				{Type: IDENTIFIER, Lexeme: "_under_score"},
				{Type: EOF},
			},
		},
		{
			name:  "Keyword prefix is an identifier",
			input: "iffoo whilex returned if2",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "iffoo"},
				{Type: IDENTIFIER, Lexeme: "whilex"},
				{Type: IDENTIFIER, Lexeme: "returned"},
				{Type: IDENTIFIER, Lexeme: "if2"},
				{Type: EOF},
			},
		},
		{
			name:  "Keyword followed by punctuation",
			input: "if(",
			expected: []Token{
				{Type: IF, Lexeme: "if"},
				{Type: LPAREN, Lexeme: "("},
				{Type: EOF},
			},
		},
		{
			name:  "Signed literal is one token",
			input: "1 -2",
			expected: []Token{
				{Type: NUMBER, Lexeme: "1"},
				{Type: NUMBER, Lexeme: "-2"},
				{Type: EOF},
			},
		},
		{
			name:  "Minus before identifier",
			input: "a - b -c",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a"},
				{Type: MINUS, Lexeme: "-"},
				{Type: IDENTIFIER, Lexeme: "b"},
				{Type: MINUS, Lexeme: "-"},
				{Type: IDENTIFIER, Lexeme: "c"},
				{Type: EOF},
			},
		},
		{
			name:  "Comments",
			input: "a // line comment\n/* block\ncomment */ b",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a"},
				{Type: IDENTIFIER, Lexeme: "b"},
				{Type: EOF},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input, NewSymbolTable())
			if err != nil {
				t.Fatalf("Lex() error = %v", err)
			}
			if !reflect.DeepEqual(kinds(got), tt.expected) {
				t.Errorf("Lex() = %v, want %v", kinds(got), tt.expected)
			}
		})
	}
}

func TestLexNumbers(t *testing.T) {
	tokens, err := Lex("0 42 -7", NewSymbolTable())
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	want := []float64{0, 42, -7}
	for i, v := range want {
		if tokens[i].Type != NUMBER || tokens[i].Value != v {
			t.Errorf("token %d = %v (value %v), want %v", i, tokens[i], tokens[i].Value, v)
		}
	}
	if tokens[1].Signed() || !tokens[2].Signed() {
		t.Errorf("Signed() mismatch: %v %v", tokens[1].Signed(), tokens[2].Signed())
	}
}

func TestLexInternsIdentifiers(t *testing.T) {
	syms := NewSymbolTable()
	tokens, err := Lex("x y x", syms)
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	if syms.Len() != 2 {
		t.Fatalf("expected 2 symbols, got %d", syms.Len())
	}
	if tokens[0].Sym != tokens[2].Sym || tokens[0].Sym == tokens[1].Sym {
		t.Errorf("symbol indices = %d %d %d", tokens[0].Sym, tokens[1].Sym, tokens[2].Sym)
	}
	if syms.At(tokens[1].Sym).Name != "y" {
		t.Errorf("symbol %d = %q, want y", tokens[1].Sym, syms.At(tokens[1].Sym).Name)
	}
}

func TestLexLines(t *testing.T) {
	tokens, err := Lex("a\n\nb /* x\n */ c", NewSymbolTable())
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	lines := []int{tokens[0].Line, tokens[1].Line, tokens[2].Line}
	if !reflect.DeepEqual(lines, []int{1, 3, 4}) {
		t.Errorf("lines = %v, want [1 3 4]", lines)
	}
	if tokens[1].Offset != 3 {
		t.Errorf("offset of b = %d, want 3", tokens[1].Offset)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		char   rune
		offset int
	}{
		{"Unknown character", "a = 1 @ 2", '@', 6},
		{"Bang alone", "x ! y", '!', 2},
		{"Unterminated comment", "a /* never closed", '/', 2},
		{"Non-ASCII", "x = é", 'é', 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input, NewSymbolTable())
			var le *LexError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LexError, got %v", err)
			}
			if le.Char != tt.char || le.Offset != tt.offset {
				t.Errorf("LexError = %q at %d, want %q at %d", le.Char, le.Offset, tt.char, tt.offset)
			}
		})
	}
}
