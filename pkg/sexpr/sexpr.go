// Package sexpr reads and writes the parenthesized prefix form of a program
// tree:
//
//	( "TOKEN" LEFT RIGHT )
//
// TOKEN is an operator name, a variable name or a number literal, and an
// absent child is written nil.
package sexpr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"stackc/pkg/compiler"
)

var lexdef = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// File is the parsed form of a whole document: one tree, possibly empty.
type File struct {
	Root *Child `@@`
}

// Node is one parenthesized entry.
type Node struct {
	Pos   lexer.Position
	Token string `"(" @String`
	Left  *Child `@@`
	Right *Child `@@ ")"`
}

// Child is either nil or a nested Node.
type Child struct {
	Nil  bool  `  @"nil"`
	Node *Node `| @@`
}

var parser = participle.MustBuild[File](
	participle.Lexer(lexdef),
	participle.Unquote("String"),
	participle.Elide("Comment", "Whitespace"),
)

// Write renders the tree rooted at t.Root, one operation per line with its
// operands indented beneath it.
func Write(w io.Writer, t *compiler.Tree, syms *compiler.SymbolTable) error {
	bw := bufio.NewWriter(w)
	writeNode(bw, t, syms, t.Root, 0)
	bw.WriteByte('\n')
	return bw.Flush()
}

// String returns the text Write would produce.
func String(t *compiler.Tree, syms *compiler.SymbolTable) string {
	var sb strings.Builder
	_ = Write(&sb, t, syms)
	return sb.String()
}

func writeNode(w *bufio.Writer, t *compiler.Tree, syms *compiler.SymbolTable, id compiler.NodeID, depth int) {
	if id == compiler.NoNode {
		w.WriteString("nil")
		return
	}
	n := t.Node(id)
	w.WriteString("( ")
	w.WriteString(strconv.Quote(t.Label(id, syms)))
	if n.Kind != compiler.OperationNode {
		w.WriteString(" nil nil )")
		return
	}
	indent := "\n" + strings.Repeat("  ", depth+1)
	w.WriteString(indent)
	writeNode(w, t, syms, n.Left, depth+1)
	w.WriteString(indent)
	writeNode(w, t, syms, n.Right, depth+1)
	w.WriteString(" )")
}

// Read parses a document into a fresh tree and symbol table and binds
// function facts (arities, frames, first initialisers) exactly as the
// compiler's own parser would have.
func Read(r io.Reader) (*compiler.Tree, *compiler.SymbolTable, error) {
	file, err := parser.Parse("", r)
	if err != nil {
		return nil, nil, fmt.Errorf("sexpr: %w", err)
	}

	b := &builder{tree: compiler.NewTree(), syms: compiler.NewSymbolTable()}
	root, err := b.child(file.Root)
	if err != nil {
		return nil, nil, err
	}
	b.tree.SetRoot(root)

	if err := compiler.Bind(b.tree, b.syms); err != nil {
		return nil, nil, fmt.Errorf("sexpr: %w", err)
	}
	return b.tree, b.syms, nil
}

// ReadString is Read over a string.
func ReadString(s string) (*compiler.Tree, *compiler.SymbolTable, error) {
	return Read(strings.NewReader(s))
}

type builder struct {
	tree *compiler.Tree
	syms *compiler.SymbolTable
}

func (b *builder) child(c *Child) (compiler.NodeID, error) {
	if c == nil || c.Nil {
		return compiler.NoNode, nil
	}
	return b.node(c.Node)
}

func (b *builder) node(n *Node) (compiler.NodeID, error) {
	left, err := b.child(n.Left)
	if err != nil {
		return compiler.NoNode, err
	}
	right, err := b.child(n.Right)
	if err != nil {
		return compiler.NoNode, err
	}

	if v, ok := parseNumber(n.Token); ok {
		if left != compiler.NoNode || right != compiler.NoNode {
			return compiler.NoNode, fmt.Errorf("sexpr: %s: number %s cannot have operands", n.Pos, n.Token)
		}
		return b.tree.NewNumber(v), nil
	}
	if op, ok := compiler.OpByName(n.Token); ok {
		return b.tree.NewOp(op, left, right), nil
	}
	if isIdentifier(n.Token) {
		if left != compiler.NoNode || right != compiler.NoNode {
			return compiler.NoNode, fmt.Errorf("sexpr: %s: variable %s cannot have operands", n.Pos, n.Token)
		}
		return b.tree.NewVariable(b.syms.Intern(n.Token)), nil
	}
	return compiler.NoNode, fmt.Errorf("sexpr: %s: unknown token %q", n.Pos, n.Token)
}

// parseNumber accepts anything strconv does, except identifier-shaped words
// such as "inf" that must stay variable names.
func parseNumber(s string) (float64, bool) {
	if s == "" || isIdentStart(rune(s[0])) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if isIdentStart(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
