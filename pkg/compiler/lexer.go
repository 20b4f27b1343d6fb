package compiler

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// reserved is the keyword/symbol table scanned longest-match first.
// Two-character symbols precede their one-character prefixes.
var reserved = []struct {
	text string
	tt   TokenType
}{
	{"return", RETURN},
	{"while", WHILE},
	{"print", PRINT},
	{"func", FUNC},
	{"else", ELSE},
	{"scan", SCAN},
	{"read", SCAN},
	{"sqrt", SQRT},
	{"if", IF},
	{"==", EQUALS},
	{"!=", NOT_EQ},
	{"<=", LESS_EQ},
	{">=", GREATER_EQ},
	{"{", LBRACE},
	{"}", RBRACE},
	{"(", LPAREN},
	{")", RPAREN},
	{";", SEMICOLON},
	{",", COMMA},
	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},
	{"^", CARET},
	{"=", ASSIGN},
	{"<", LESS},
	{">", GREATER},
}

// LexError reports an unrecognised character or an unterminated comment.
type LexError struct {
	Char   rune
	Offset int // byte offset into the source
	Line   int
	Msg    string
}

func (e *LexError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("line %d (offset %d): %s", e.Line, e.Offset, e.Msg)
	}
	return fmt.Sprintf("line %d (offset %d): unexpected character %q", e.Line, e.Offset, e.Char)
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  string
	pos  int // byte index of the next character to consume
	line int // current 1-based source line
	syms *SymbolTable
}

func newLexer(src string, syms *SymbolTable) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, syms: syms}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes n bytes, keeping the line counter current.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
}

// skipTrivia discards whitespace and both comment styles.
func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.src) {
		switch {
		case isSpace(l.peek()):
			l.advance(1)
		case l.peek() == '/' && l.peek2() == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance(1)
			}
		case l.peek() == '/' && l.peek2() == '*':
			start, startLine := l.pos, l.line
			l.advance(2)
			for {
				if l.pos >= len(l.src) {
					return &LexError{Char: '/', Offset: start, Line: startLine, Msg: "unterminated block comment"}
				}
				if l.peek() == '*' && l.peek2() == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		default:
			return nil
		}
	}
	return nil
}

// matchReserved returns the longest reserved entry at the cursor. Alphabetic
// entries only match when the next character cannot continue an identifier.
func (l *Lexer) matchReserved() (string, TokenType, bool) {
	rest := l.src[l.pos:]
	bestLen := 0
	var best TokenType
	for _, r := range reserved {
		n := len(r.text)
		if n <= bestLen || len(rest) < n || rest[:n] != r.text {
			continue
		}
		if isIdentStart(r.text[0]) && n < len(rest) && isIdentChar(rest[n]) {
			continue
		}
		bestLen, best = n, r.tt
	}
	if bestLen == 0 {
		return "", EOF, false
	}
	return rest[:bestLen], best, true
}

// scanNumber collects an optionally signed decimal integer literal.
func (l *Lexer) scanNumber() (Token, error) {
	start, line := l.pos, l.line
	if l.peek() == '-' {
		l.advance(1)
	}
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance(1)
	}
	lexeme := l.src[start:l.pos]
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return Token{}, &LexError{Char: rune(lexeme[0]), Offset: start, Line: line, Msg: fmt.Sprintf("invalid number %q", lexeme)}
	}
	return Token{Type: NUMBER, Lexeme: lexeme, Line: line, Offset: start, Value: v}, nil
}

func (l *Lexer) scanIdent() Token {
	start, line := l.pos, l.line
	for l.pos < len(l.src) && isIdentChar(l.peek()) {
		l.advance(1)
	}
	lexeme := l.src[start:l.pos]
	return Token{Type: IDENTIFIER, Lexeme: lexeme, Line: line, Offset: start, Sym: l.syms.Intern(lexeme)}
}

// nextToken skips trivia and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: l.line, Offset: l.pos}, nil
	}

	ch := l.peek()

	// A minus glued to a digit is part of the literal, so this runs before
	// the reserved table can claim "-" as subtraction.
	if isDigit(ch) || (ch == '-' && isDigit(l.peek2())) {
		return l.scanNumber()
	}

	if text, tt, ok := l.matchReserved(); ok {
		tok := Token{Type: tt, Lexeme: text, Line: l.line, Offset: l.pos}
		l.advance(len(text))
		return tok, nil
	}

	if isIdentStart(ch) {
		return l.scanIdent(), nil
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return Token{}, &LexError{Char: r, Offset: l.pos, Line: l.line}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// Every identifier is interned into syms. Lexing stops at the first
// unrecognised character.
func Lex(src string, syms *SymbolTable) ([]Token, error) {
	l := newLexer(src, syms)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
