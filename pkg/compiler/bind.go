package compiler

import "fmt"

// funcParts splits Func(NameRef, Params(list, body)).
func funcParts(t *Tree, fn NodeID) (name, params, body NodeID) {
	n := t.Node(fn)
	name, params, body = n.Left, NoNode, NoNode
	if t.IsOp(n.Right, OpParams) {
		p := t.Node(n.Right)
		params, body = p.Left, p.Right
	}
	return name, params, body
}

func nameSymbol(t *Tree, id NodeID, what string) (int, error) {
	if id == NoNode || t.Node(id).Kind != VariableNode {
		return -1, &SemanticError{Msg: fmt.Sprintf("%s has no name", what)}
	}
	return t.Node(id).Sym, nil
}

// declareFunction records the declaration of function sym with arity
// parameters.
func declareFunction(syms *SymbolTable, sym, arity int) error {
	if err := syms.reconcileArity(sym, arity); err != nil {
		return err
	}
	f := &syms.At(sym).Func
	if f.Declared {
		return &SemanticError{Msg: fmt.Sprintf("function %q declared twice", syms.At(sym).Name)}
	}
	f.Declared = true
	return nil
}

// bindFunction scans one declaration: it lays out the frame (parameters,
// then every other variable in order of first appearance), counts locals the
// first time each is assigned here, and records first owners and literal
// first initialisers.
func bindFunction(t *Tree, syms *SymbolTable, fn NodeID) error {
	nameID, params, body := funcParts(t, fn)
	fnSym, err := nameSymbol(t, nameID, "function declaration")
	if err != nil {
		return err
	}
	info := &syms.At(fnSym).Func
	info.Frame = info.Frame[:0]
	info.Locals = 0

	inFrame := make(map[int]bool)
	isParam := make(map[int]bool)
	for _, p := range t.List(params, OpComma) {
		sym, err := nameSymbol(t, p, "parameter")
		if err != nil {
			return err
		}
		if isParam[sym] {
			return &SemanticError{Msg: fmt.Sprintf("duplicate parameter %q in %q", syms.At(sym).Name, syms.At(fnSym).Name)}
		}
		if syms.At(sym).Kind == SymFunction {
			return &SemanticError{Msg: fmt.Sprintf("function %q used as a parameter", syms.At(sym).Name)}
		}
		isParam[sym], inFrame[sym] = true, true
		info.Frame = append(info.Frame, sym)
	}

	use := func(sym int) error {
		if syms.At(sym).Kind == SymFunction {
			return &SemanticError{Msg: fmt.Sprintf("function %q used as a variable", syms.At(sym).Name)}
		}
		if !inFrame[sym] {
			inFrame[sym] = true
			info.Frame = append(info.Frame, sym)
		}
		return nil
	}

	assignedHere := make(map[int]bool)
	assign := func(target, value NodeID) error {
		sym, err := nameSymbol(t, target, "assignment target")
		if err != nil {
			return err
		}
		if err := use(sym); err != nil {
			return err
		}
		if !isParam[sym] && !assignedHere[sym] {
			assignedHere[sym] = true
			info.Locals++
		}
		v := &syms.At(sym).Var
		if v.FirstOwner < 0 {
			v.FirstOwner = fnSym
		}
		if !v.Assigned {
			v.Assigned = true
			if t.isLiteral(value) {
				v.Known, v.Value = true, t.Node(value).Value
			}
		}
		return nil
	}

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if id == NoNode {
			return nil
		}
		n := t.Node(id)
		switch n.Kind {
		case VariableNode:
			return use(n.Sym)
		case NumberNode:
			return nil
		}
		switch n.Op {
		case OpCall:
			return visit(n.Right)
		case OpAssign:
			if err := visit(n.Right); err != nil {
				return err
			}
			return assign(n.Left, n.Right)
		case OpScan:
			return assign(n.Right, NoNode)
		}
		if err := visit(n.Left); err != nil {
			return err
		}
		return visit(n.Right)
	}
	return visit(body)
}

// checkFrames rejects a frame slot whose symbol became a function after the
// body that uses it was scanned, as in a name read before its declaration.
func checkFrames(syms *SymbolTable) error {
	for i := 0; i < syms.Len(); i++ {
		fn := syms.At(i)
		if fn.Kind != SymFunction || !fn.Func.Declared {
			continue
		}
		for _, sym := range fn.Func.Frame {
			if s := syms.At(sym); s.Kind == SymFunction {
				return &SemanticError{Msg: fmt.Sprintf("function %q used as a variable in %q", s.Name, fn.Name)}
			}
		}
	}
	return nil
}

// reconcileCalls checks the arity of every call below id.
func reconcileCalls(t *Tree, syms *SymbolTable, id NodeID) error {
	var err error
	t.Walk(id, func(n NodeID) bool {
		if err != nil {
			return false
		}
		if !t.IsOp(n, OpCall) {
			return true
		}
		node := t.Node(n)
		sym, e := nameSymbol(t, node.Left, "call")
		if e != nil {
			err = e
			return false
		}
		err = syms.reconcileArity(sym, len(t.List(node.Right, OpComma)))
		return err == nil
	})
	return err
}

// Bind rebuilds the function facts of syms from a tree that did not come out
// of the parser, such as one read from the interchange format.
func Bind(t *Tree, syms *SymbolTable) error {
	decls := t.List(t.Root, OpThen)
	for _, fn := range decls {
		if !t.IsOp(fn, OpFunc) {
			return &SemanticError{Msg: "program contains a top-level node that is not a function"}
		}
		nameID, params, _ := funcParts(t, fn)
		sym, err := nameSymbol(t, nameID, "function declaration")
		if err != nil {
			return err
		}
		if err := declareFunction(syms, sym, len(t.List(params, OpComma))); err != nil {
			return err
		}
	}
	if err := reconcileCalls(t, syms, t.Root); err != nil {
		return err
	}
	for _, fn := range decls {
		if err := bindFunction(t, syms, fn); err != nil {
			return err
		}
	}
	return nil
}
