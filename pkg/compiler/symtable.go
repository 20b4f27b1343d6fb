package compiler

import (
	"fmt"
	"strings"
)

type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
)

func (k SymbolKind) String() string {
	if k == SymFunction {
		return "function"
	}
	return "variable"
}

// VarInfo is the variable half of a Symbol.
type VarInfo struct {
	// Known is set when the first assignment seen stored a literal; Value
	// then holds it.
	Known    bool
	Assigned bool
	Value    float64
	// FirstOwner is the symbol index of the first function assigning the
	// variable, or -1.
	FirstOwner int
	// Slot is the frame position in the function being generated, or -1.
	Slot int
}

// FuncInfo is the function half of a Symbol.
type FuncInfo struct {
	// Arity is fixed by whichever of declaration or call site is seen first.
	Arity      int
	ArityKnown bool
	Declared   bool
	// Frame lists the variable symbols stored in the function's frame,
	// parameters first.
	Frame []int
	// Locals counts the non-parameter variables first assigned here.
	Locals int
}

// Symbol is one named entry. Kind selects which of Var or Func is live.
type Symbol struct {
	Name string
	Kind SymbolKind
	Var  VarInfo
	Func FuncInfo
}

// SymbolTable is an insertion-ordered set of uniquely named symbols shared by
// the lexer, the parser and the code generator.
type SymbolTable struct {
	symbols []Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

func (s *SymbolTable) Len() int {
	return len(s.symbols)
}

// At returns the symbol stored at index i.
func (s *SymbolTable) At(i int) *Symbol {
	return &s.symbols[i]
}

// Symbols returns a copy of the entries in insertion order.
func (s *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Lookup finds name by linear scan.
func (s *SymbolTable) Lookup(name string) (int, bool) {
	for i := range s.symbols {
		if s.symbols[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Intern returns the index of name, adding it as a variable when absent.
func (s *SymbolTable) Intern(name string) int {
	if i, ok := s.Lookup(name); ok {
		return i
	}
	s.symbols = append(s.symbols, Symbol{
		Name: name,
		Kind: SymVariable,
		Var:  VarInfo{FirstOwner: -1, Slot: -1},
	})
	return len(s.symbols) - 1
}

// markFunction turns symbol i into a function.
func (s *SymbolTable) markFunction(i int) error {
	sym := &s.symbols[i]
	if sym.Kind == SymFunction {
		return nil
	}
	if sym.Var.Assigned {
		return &SemanticError{Msg: fmt.Sprintf("%q is used as both a variable and a function", sym.Name)}
	}
	sym.Kind = SymFunction
	return nil
}

// reconcileArity records n as the parameter count of function i. The first
// count seen wins; any later disagreement is an error.
func (s *SymbolTable) reconcileArity(i, n int) error {
	if err := s.markFunction(i); err != nil {
		return err
	}
	f := &s.symbols[i].Func
	if !f.ArityKnown {
		f.Arity, f.ArityKnown = n, true
		return nil
	}
	if f.Arity != n {
		return &SemanticError{Msg: fmt.Sprintf("function %q takes %d parameters, got %d", s.symbols[i].Name, f.Arity, n)}
	}
	return nil
}

// ResetSlots forgets every frame slot; called before each function body is
// generated.
func (s *SymbolTable) ResetSlots() {
	for i := range s.symbols {
		s.symbols[i].Var.Slot = -1
	}
}

// String returns a dump of the table in insertion order.
func (s *SymbolTable) String() string {
	if len(s.symbols) == 0 {
		return "Symbols: (empty)\n"
	}
	var sb strings.Builder
	sb.WriteString("Symbols:\n")
	for i, sym := range s.symbols {
		switch sym.Kind {
		case SymFunction:
			fmt.Fprintf(&sb, "  %3d %-20s function arity=%d frame=%d locals=%d\n",
				i, sym.Name, sym.Func.Arity, len(sym.Func.Frame), sym.Func.Locals)
		default:
			value := "unknown"
			if sym.Var.Known {
				value = FormatNumber(sym.Var.Value)
			}
			owner := "-"
			if sym.Var.FirstOwner >= 0 {
				owner = s.symbols[sym.Var.FirstOwner].Name
			}
			fmt.Fprintf(&sb, "  %3d %-20s variable init=%s owner=%s\n", i, sym.Name, value, owner)
		}
	}
	return sb.String()
}
