package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID addresses a node inside a Tree's arena.
type NodeID int32

// NoNode marks an absent child, a missing parent or an empty tree.
const NoNode NodeID = -1

// NodeKind discriminates the three node variants.
type NodeKind uint8

const (
	NumberNode NodeKind = iota
	VariableNode
	OperationNode
)

func (k NodeKind) String() string {
	switch k {
	case NumberNode:
		return "Number"
	case VariableNode:
		return "Variable"
	case OperationNode:
		return "Operation"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Op is the operator carried by an OperationNode.
type Op uint8

const (
	OpNone Op = iota

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpSqrt

	// relational
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEq
	OpNotEq

	OpAssign

	// structure
	OpThen   // statement separator: left then right
	OpComma  // parameter / argument list link
	OpFunc   // Func(NameRef, Params(list, body))
	OpParams // pairs a parameter list with a body
	OpCall   // Call(NameRef, args)
	OpIf     // If(cond, Branch(then, else))
	OpBranch // then/else pair of an if
	OpWhile  // While(cond, body)
	OpReturn // Return(nil, expr)
	OpPrint  // Print(nil, expr)
	OpScan   // Scan(nil, variable)
)

// opNames is the canonical textual name of every operator. It is the TOKEN
// vocabulary of the interchange format, so no name may be a valid identifier
// unless it is also a keyword.
var opNames = [...]string{
	OpNone:      "none",
	OpAdd:       "+",
	OpSub:       "-",
	OpMul:       "*",
	OpDiv:       "/",
	OpPow:       "^",
	OpSqrt:      "sqrt",
	OpLess:      "<",
	OpGreater:   ">",
	OpLessEq:    "<=",
	OpGreaterEq: ">=",
	OpEq:        "==",
	OpNotEq:     "!=",
	OpAssign:    "=",
	OpThen:      ";",
	OpComma:     ",",
	OpFunc:      "func",
	OpParams:    "{}",
	OpCall:      "()",
	OpIf:        "if",
	OpBranch:    "else",
	OpWhile:     "while",
	OpReturn:    "return",
	OpPrint:     "print",
	OpScan:      "scan",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// OpByName resolves a canonical operator name.
func OpByName(name string) (Op, bool) {
	for op := OpAdd; int(op) < len(opNames); op++ {
		if opNames[op] == name {
			return op, true
		}
	}
	return OpNone, false
}

// IsBinary reports whether op always carries two operands once parsed.
func (op Op) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpPow, OpAssign:
		return true
	}
	return op.IsRelational()
}

// IsRelational reports whether op is a comparison.
func (op Op) IsRelational() bool {
	return op >= OpLess && op <= OpNotEq
}

// IsUnary reports whether op keeps its single operand in the right child.
func (op Op) IsUnary() bool {
	switch op {
	case OpSqrt, OpReturn, OpPrint, OpScan:
		return true
	}
	return false
}

// Node is one arena slot. Parent is a plain back-link kept for validation;
// ownership always runs top-down through Left and Right.
type Node struct {
	Kind   NodeKind
	Op     Op      // OperationNode only
	Value  float64 // NumberNode only
	Sym    int     // VariableNode only
	Left   NodeID
	Right  NodeID
	Parent NodeID
}

// Tree is an arena of nodes plus the current root. Nodes abandoned by a
// failed parse alternative or a rewrite simply stay unreachable.
type Tree struct {
	Nodes []Node
	Root  NodeID
}

func NewTree() *Tree {
	return &Tree{Root: NoNode}
}

// Node returns the node stored at id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

func (t *Tree) add(n Node) NodeID {
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

func (t *Tree) NewNumber(v float64) NodeID {
	return t.add(Node{Kind: NumberNode, Value: v, Left: NoNode, Right: NoNode, Parent: NoNode})
}

func (t *Tree) NewVariable(sym int) NodeID {
	return t.add(Node{Kind: VariableNode, Sym: sym, Left: NoNode, Right: NoNode, Parent: NoNode})
}

// NewOp allocates an operation node and adopts left and right.
func (t *Tree) NewOp(op Op, left, right NodeID) NodeID {
	id := t.add(Node{Kind: OperationNode, Op: op, Left: left, Right: right, Parent: NoNode})
	if left != NoNode {
		t.Nodes[left].Parent = id
	}
	if right != NoNode {
		t.Nodes[right].Parent = id
	}
	return id
}

// SetRoot makes id the root of the tree.
func (t *Tree) SetRoot(id NodeID) {
	t.Root = id
	if id != NoNode {
		t.Nodes[id].Parent = NoNode
	}
}

// Replace puts repl where old hangs, re-pointing repl at old's former parent.
// old is left detached.
func (t *Tree) Replace(old, repl NodeID) {
	parent := t.Nodes[old].Parent
	switch {
	case parent == NoNode:
		if t.Root == old {
			t.Root = repl
		}
	case t.Nodes[parent].Left == old:
		t.Nodes[parent].Left = repl
	default:
		t.Nodes[parent].Right = repl
	}
	if repl != NoNode {
		t.Nodes[repl].Parent = parent
	}
	t.Nodes[old].Parent = NoNode
}

// detach cuts the links between id and its children.
func (t *Tree) detach(id NodeID) {
	n := &t.Nodes[id]
	if n.Left != NoNode {
		t.Nodes[n.Left].Parent = NoNode
	}
	if n.Right != NoNode {
		t.Nodes[n.Right].Parent = NoNode
	}
	n.Left, n.Right = NoNode, NoNode
}

// makeNumber turns id into a literal in place, dropping its children.
func (t *Tree) makeNumber(id NodeID, v float64) {
	t.detach(id)
	n := &t.Nodes[id]
	n.Kind = NumberNode
	n.Op = OpNone
	n.Value = v
}

// IsNumber reports whether id is a literal equal to v.
func (t *Tree) IsNumber(id NodeID, v float64) bool {
	return id != NoNode && t.Nodes[id].Kind == NumberNode && t.Nodes[id].Value == v
}

func (t *Tree) isLiteral(id NodeID) bool {
	return id != NoNode && t.Nodes[id].Kind == NumberNode
}

// IsOp reports whether id is an operation node carrying op.
func (t *Tree) IsOp(id NodeID, op Op) bool {
	return id != NoNode && t.Nodes[id].Kind == OperationNode && t.Nodes[id].Op == op
}

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// skips the children of that node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if id == NoNode {
		return
	}
	if !fn(id) {
		return
	}
	n := t.Nodes[id]
	t.Walk(n.Left, fn)
	t.Walk(n.Right, fn)
}

// Count returns the number of nodes reachable from id.
func (t *Tree) Count(id NodeID) int {
	count := 0
	t.Walk(id, func(NodeID) bool {
		count++
		return true
	})
	return count
}

// List flattens a right-threaded chain of op links (OpComma or OpThen)
// into its left elements.
func (t *Tree) List(id NodeID, op Op) []NodeID {
	var out []NodeID
	for t.IsOp(id, op) {
		n := t.Nodes[id]
		out = append(out, n.Left)
		id = n.Right
	}
	if id != NoNode {
		out = append(out, id)
	}
	return out
}

// Validate checks the structural invariants of the reachable tree: parent
// links agree with child links, no node is shared, leaves are childless and
// binary operators carry both operands.
func (t *Tree) Validate() error {
	if t.Root == NoNode {
		return nil
	}
	if t.Nodes[t.Root].Parent != NoNode {
		return fmt.Errorf("root %d has parent %d", t.Root, t.Nodes[t.Root].Parent)
	}
	seen := make(map[NodeID]bool)
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if seen[id] {
			return fmt.Errorf("node %d reachable twice", id)
		}
		seen[id] = true
		n := t.Nodes[id]
		switch n.Kind {
		case NumberNode, VariableNode:
			if n.Left != NoNode || n.Right != NoNode {
				return fmt.Errorf("%s node %d has children", n.Kind, id)
			}
		case OperationNode:
			if n.Op.IsBinary() && (n.Left == NoNode || n.Right == NoNode) {
				return fmt.Errorf("binary %q node %d is missing an operand", n.Op, id)
			}
			if n.Op.IsUnary() && n.Left != NoNode {
				return fmt.Errorf("unary %q node %d has a left operand", n.Op, id)
			}
		}
		for _, c := range [2]NodeID{n.Left, n.Right} {
			if c == NoNode {
				continue
			}
			if t.Nodes[c].Parent != id {
				return fmt.Errorf("node %d has parent %d, expected %d", c, t.Nodes[c].Parent, id)
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.Root)
}

// Label renders the TOKEN text of a single node.
func (t *Tree) Label(id NodeID, syms *SymbolTable) string {
	n := t.Nodes[id]
	switch n.Kind {
	case NumberNode:
		return FormatNumber(n.Value)
	case VariableNode:
		if syms != nil && n.Sym >= 0 && n.Sym < syms.Len() {
			return syms.At(n.Sym).Name
		}
		return fmt.Sprintf("$%d", n.Sym)
	}
	return n.Op.String()
}

// Format renders the subtree at id as an indented outline.
func (t *Tree) Format(id NodeID, syms *SymbolTable) string {
	var sb strings.Builder
	var rec func(id NodeID, depth int)
	rec = func(id NodeID, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		if id == NoNode {
			sb.WriteString("nil\n")
			return
		}
		n := t.Nodes[id]
		sb.WriteString(t.Label(id, syms))
		sb.WriteByte('\n')
		if n.Kind == OperationNode {
			rec(n.Left, depth+1)
			rec(n.Right, depth+1)
		}
	}
	rec(id, 0)
	return sb.String()
}

// FormatNumber prints a literal the way both the assembly and the
// interchange format expect it.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
