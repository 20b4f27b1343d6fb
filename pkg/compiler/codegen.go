package compiler

import (
	"fmt"
	"strings"
)

// Labels hands out control-flow label names. One Labels is shared by every
// function of a compilation so branch targets never collide; start a new one
// for each independent compilation.
type Labels struct {
	next int
}

// New returns the next label, ready to be written after a jump or on its own
// line.
func (l *Labels) New() string {
	name := fmt.Sprintf(":.L%d", l.next)
	l.next++
	return name
}

// Issued reports how many labels have been handed out.
func (l *Labels) Issued() int {
	return l.next
}

// GenOptions configures Generate.
type GenOptions struct {
	// Entry names the function execution starts in. Empty means "main".
	Entry string
	// Labels continues an existing label sequence; nil starts a new one.
	Labels *Labels
}

// negatedJump maps a comparison to the jump taken when it is false.
var negatedJump = map[Op]string{
	OpLess:      "JAE",
	OpLessEq:    "JA",
	OpGreater:   "JBE",
	OpGreaterEq: "JB",
	OpEq:        "JNE",
	OpNotEq:     "JE",
}

var arithmeticOpcodes = map[Op]string{
	OpAdd: "ADD",
	OpSub: "SUB",
	OpMul: "MUL",
	OpDiv: "DIV",
	OpPow: "POW",
}

// CodeGen walks a tree one function at a time and emits stack-machine
// assembly. Register ax holds the frame base, bx is scratch.
type CodeGen struct {
	tree   *Tree
	syms   *SymbolTable
	labels *Labels
	entry  string
	out    strings.Builder

	// per function
	fnSym     int
	frameSize int
	inFrame   map[int]bool
	nextSlot  int
}

func newCodeGen(t *Tree, syms *SymbolTable, opts GenOptions) *CodeGen {
	cg := &CodeGen{tree: t, syms: syms, labels: opts.Labels, entry: opts.Entry}
	if cg.labels == nil {
		cg.labels = &Labels{}
	}
	if cg.entry == "" {
		cg.entry = "main"
	}
	return cg
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("; "+format, args...)
}

func (cg *CodeGen) name(sym int) string {
	return cg.syms.At(sym).Name
}

// Generate emits the assembly for every function in declaration order,
// preceded by a jump to the entry function.
func Generate(t *Tree, syms *SymbolTable, opts GenOptions) (string, error) {
	cg := newCodeGen(t, syms, opts)

	entry, ok := syms.Lookup(cg.entry)
	if !ok || syms.At(entry).Kind != SymFunction || !syms.At(entry).Func.Declared {
		return "", &SemanticError{Msg: fmt.Sprintf("entry function %q is not defined", cg.entry)}
	}
	if syms.At(entry).Func.Arity != 0 {
		return "", &SemanticError{Msg: fmt.Sprintf("entry function %q must take no parameters", cg.entry)}
	}

	cg.line("JMP :%s", cg.entry)
	for _, fn := range t.List(t.Root, OpThen) {
		if !t.IsOp(fn, OpFunc) {
			return "", &SemanticError{Msg: "program contains a top-level node that is not a function"}
		}
		if err := cg.genFunction(fn); err != nil {
			return "", err
		}
	}
	return cg.out.String(), nil
}

func (cg *CodeGen) isEntry() bool {
	return cg.name(cg.fnSym) == cg.entry
}

func (cg *CodeGen) genFunction(fn NodeID) error {
	nameID, params, body := funcParts(cg.tree, fn)
	sym, err := nameSymbol(cg.tree, nameID, "function declaration")
	if err != nil {
		return err
	}
	info := cg.syms.At(sym).Func

	cg.fnSym = sym
	cg.frameSize = len(info.Frame)
	cg.nextSlot = 0
	cg.inFrame = make(map[int]bool, len(info.Frame))
	for _, v := range info.Frame {
		cg.inFrame[v] = true
	}
	cg.syms.ResetSlots()

	paramNames := make([]string, 0, info.Arity)
	for _, p := range cg.tree.List(params, OpComma) {
		paramNames = append(paramNames, cg.name(cg.tree.Node(p).Sym))
	}
	cg.line("")
	cg.comment("%s(%s) frame=%d", cg.name(sym), strings.Join(paramNames, ", "), cg.frameSize)
	cg.line(":%s", cg.name(sym))
	cg.frameOpen()

	// Arguments arrive with the first one on top of the stack.
	for _, p := range cg.tree.List(params, OpComma) {
		if err := cg.address(cg.tree.Node(p).Sym); err != nil {
			return err
		}
		cg.line("POPM [bx]")
	}

	if err := cg.genStmt(body); err != nil {
		return err
	}

	if cg.isEntry() {
		cg.frameClose()
		cg.line("HLT")
		return nil
	}
	cg.line("PUSH 0")
	cg.frameClose()
	cg.line("RET")
	return nil
}

func (cg *CodeGen) frameOpen() {
	cg.line("PUSHR ax")
	cg.line("PUSH %d", cg.frameSize)
	cg.line("ADD")
	cg.line("POPR ax")
}

func (cg *CodeGen) frameClose() {
	cg.line("PUSHR ax")
	cg.line("PUSH %d", cg.frameSize)
	cg.line("SUB")
	cg.line("POPR ax")
}

// slot resolves sym to its frame slot, allocating the next free one on first
// use in the current function.
func (cg *CodeGen) slot(sym int) (int, error) {
	if sym < 0 || sym >= cg.syms.Len() {
		return 0, &SemanticError{Msg: fmt.Sprintf("unresolved variable #%d in %q", sym, cg.name(cg.fnSym))}
	}
	v := &cg.syms.At(sym).Var
	if v.Slot >= 0 {
		return v.Slot, nil
	}
	if !cg.inFrame[sym] || cg.nextSlot >= cg.frameSize {
		return 0, &SemanticError{Msg: fmt.Sprintf("unresolved variable %q in %q", cg.name(sym), cg.name(cg.fnSym))}
	}
	v.Slot = cg.nextSlot
	cg.nextSlot++
	return v.Slot, nil
}

// address leaves the memory address of sym in bx.
func (cg *CodeGen) address(sym int) error {
	slot, err := cg.slot(sym)
	if err != nil {
		return err
	}
	cg.line("PUSHR ax")
	cg.line("PUSH %d", slot-cg.frameSize)
	cg.line("ADD")
	cg.line("POPR bx")
	return nil
}

func (cg *CodeGen) store(target NodeID) error {
	if target == NoNode || cg.tree.Node(target).Kind != VariableNode {
		return &SemanticError{Msg: "assignment target is not a variable"}
	}
	if err := cg.address(cg.tree.Node(target).Sym); err != nil {
		return err
	}
	cg.line("POPM [bx]")
	return nil
}

func (cg *CodeGen) genStmt(id NodeID) error {
	if id == NoNode {
		return nil
	}
	t := cg.tree
	n := t.Node(id)
	if n.Kind != OperationNode {
		// A lone expression statement: evaluate and drop.
		if err := cg.genExpr(id); err != nil {
			return err
		}
		cg.line("POPR bx")
		return nil
	}

	switch n.Op {
	case OpThen:
		if err := cg.genStmt(n.Left); err != nil {
			return err
		}
		return cg.genStmt(n.Right)

	case OpAssign:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		return cg.store(n.Left)

	case OpPrint:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("OUT")
		return nil

	case OpScan:
		cg.line("IN")
		return cg.store(n.Right)

	case OpReturn:
		if n.Right == NoNode {
			cg.line("PUSH 0")
		} else if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.frameClose()
		if cg.isEntry() {
			cg.line("HLT")
		} else {
			cg.line("RET")
		}
		return nil

	case OpIf:
		return cg.genIf(n)

	case OpWhile:
		return cg.genWhile(n)

	case OpCall:
		if err := cg.genCall(n); err != nil {
			return err
		}
		cg.line("POPR bx")
		return nil
	}

	if err := cg.genExpr(id); err != nil {
		return err
	}
	cg.line("POPR bx")
	return nil
}

// genCondition emits a jump to target taken when cond is false.
func (cg *CodeGen) genCondition(cond NodeID, target string) error {
	if cond == NoNode {
		return &SemanticError{Msg: fmt.Sprintf("missing condition in %q", cg.name(cg.fnSym))}
	}
	n := cg.tree.Node(cond)
	if jump, ok := negatedJump[n.Op]; ok && n.Kind == OperationNode {
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("%s %s", jump, target)
		return nil
	}
	if err := cg.genExpr(cond); err != nil {
		return err
	}
	cg.line("PUSH 0")
	cg.line("JE %s", target)
	return nil
}

func (cg *CodeGen) genIf(n *Node) error {
	then, els := n.Right, NoNode
	if cg.tree.IsOp(n.Right, OpBranch) {
		b := cg.tree.Node(n.Right)
		then, els = b.Left, b.Right
	}
	// No jump targets thenLabel. It marks where the then-branch starts in the
	// listing, and every if takes three distinct label ids.
	thenLabel := cg.labels.New()
	elseLabel := cg.labels.New()
	endLabel := cg.labels.New()

	if err := cg.genCondition(n.Left, elseLabel); err != nil {
		return err
	}
	cg.line("%s", thenLabel)
	if err := cg.genStmt(then); err != nil {
		return err
	}
	cg.line("JMP %s", endLabel)
	cg.line("%s", elseLabel)
	if err := cg.genStmt(els); err != nil {
		return err
	}
	cg.line("%s", endLabel)
	return nil
}

func (cg *CodeGen) genWhile(n *Node) error {
	startLabel := cg.labels.New()
	endLabel := cg.labels.New()

	cg.line("%s", startLabel)
	if err := cg.genCondition(n.Left, endLabel); err != nil {
		return err
	}
	if err := cg.genStmt(n.Right); err != nil {
		return err
	}
	cg.line("JMP %s", startLabel)
	cg.line("%s", endLabel)
	return nil
}

// genCall pushes the arguments last to first and calls the function. The
// callee leaves exactly one value on the stack.
func (cg *CodeGen) genCall(n *Node) error {
	sym, err := nameSymbol(cg.tree, n.Left, "call")
	if err != nil {
		return err
	}
	callee := cg.syms.At(sym)
	if callee.Kind != SymFunction || !callee.Func.Declared {
		return &SemanticError{Msg: fmt.Sprintf("call to undefined function %q", callee.Name)}
	}
	args := cg.tree.List(n.Right, OpComma)
	if len(args) != callee.Func.Arity {
		return &SemanticError{Msg: fmt.Sprintf("function %q takes %d parameters, got %d", callee.Name, callee.Func.Arity, len(args))}
	}
	for i := len(args) - 1; i >= 0; i-- {
		if err := cg.genExpr(args[i]); err != nil {
			return err
		}
	}
	cg.line("CALL :%s", callee.Name)
	return nil
}

func (cg *CodeGen) genExpr(id NodeID) error {
	if id == NoNode {
		return &SemanticError{Msg: fmt.Sprintf("missing operand in %q", cg.name(cg.fnSym))}
	}
	n := cg.tree.Node(id)
	switch n.Kind {
	case NumberNode:
		cg.line("PUSH %s", FormatNumber(n.Value))
		return nil
	case VariableNode:
		if err := cg.address(n.Sym); err != nil {
			return err
		}
		cg.line("PUSHM [bx]")
		return nil
	}

	switch n.Op {
	case OpCall:
		return cg.genCall(n)
	case OpSqrt:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("SQRT")
		return nil
	}

	opcode, ok := arithmeticOpcodes[n.Op]
	if !ok {
		return &SemanticError{Msg: fmt.Sprintf("operator %q cannot be used as a value", n.Op)}
	}
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.line("%s", opcode)
	return nil
}
