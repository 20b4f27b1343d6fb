package compiler

import "fmt"

// SyntaxError is a grammar mismatch at a token position.
type SyntaxError struct {
	Pos      int // token index
	Line     int
	Expected string
	Got      string
	Snippet  string
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("line %d: expected %s, got %q (token %d)", e.Line, e.Expected, e.Got, e.Pos)
	if e.Snippet != "" {
		msg += "\n  |> " + e.Snippet
	}
	return msg
}

// SemanticError covers arity mismatches, misuse of names and unresolved
// variables during code generation.
type SemanticError struct {
	Msg string
}

func (e *SemanticError) Error() string {
	return e.Msg
}
