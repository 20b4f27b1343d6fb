package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	NUMBER     // signed integer literal, e.g. 42 or -2
	IDENTIFIER // variable / function name

	// Keywords
	FUNC   // "func"
	IF     // "if"
	ELSE   // "else"
	WHILE  // "while"
	RETURN // "return"
	PRINT  // "print"
	SCAN   // "scan" (or "read")
	SQRT   // "sqrt"

	// Paired delimiters
	LBRACE // {
	RBRACE // }
	LPAREN // (
	RPAREN // )

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /
	CARET // ^

	// Assignment / comparison
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

var tokenNames = [...]string{
	EOF:        "EOF",
	NUMBER:     "NUMBER",
	IDENTIFIER: "IDENTIFIER",
	FUNC:       "FUNC",
	IF:         "IF",
	ELSE:       "ELSE",
	WHILE:      "WHILE",
	RETURN:     "RETURN",
	PRINT:      "PRINT",
	SCAN:       "SCAN",
	SQRT:       "SQRT",
	LBRACE:     "LBRACE",
	RBRACE:     "RBRACE",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	SEMICOLON:  "SEMICOLON",
	COMMA:      "COMMA",
	PLUS:       "PLUS",
	MINUS:      "MINUS",
	STAR:       "STAR",
	SLASH:      "SLASH",
	CARET:      "CARET",
	ASSIGN:     "ASSIGN",
	EQUALS:     "EQUALS",
	NOT_EQ:     "NOT_EQ",
	LESS:       "LESS",
	GREATER:    "GREATER",
	LESS_EQ:    "LESS_EQ",
	GREATER_EQ: "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// relationalOps maps comparison tokens to their AST operator.
var relationalOps = map[TokenType]Op{
	LESS:       OpLess,
	GREATER:    OpGreater,
	LESS_EQ:    OpLessEq,
	GREATER_EQ: OpGreaterEq,
	EQUALS:     OpEq,
	NOT_EQ:     OpNotEq,
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string  // the exact source text that was matched
	Line   int     // 1-based source line
	Offset int     // byte offset of the first character
	Value  float64 // NUMBER only
	Sym    int     // IDENTIFIER only: index into the SymbolTable
}

// Signed reports whether a NUMBER token carried its own leading minus.
func (t Token) Signed() bool {
	return t.Type == NUMBER && len(t.Lexeme) > 0 && t.Lexeme[0] == '-'
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
