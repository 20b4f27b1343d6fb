// Package compiler turns programs in a small C-like language into assembly
// for a stack machine.
//
// Pipeline: source → Lex → Parse → Optimize → Generate → assembly text
//
// The lexer and parser share one SymbolTable. The parser builds an arena
// Tree whose nodes refer to each other by NodeID; the optimizer rewrites that
// tree in place and the code generator walks it one function at a time.
package compiler
