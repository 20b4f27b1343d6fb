package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestSymbolTable(t *testing.T) {
	t.Run("InternIsUnique", func(t *testing.T) {
		s := NewSymbolTable()
		a := s.Intern("a")
		b := s.Intern("b")
		if again := s.Intern("a"); again != a {
			t.Errorf("Intern(a) twice: %d then %d", a, again)
		}
		if a == b || s.Len() != 2 {
			t.Errorf("a=%d b=%d len=%d", a, b, s.Len())
		}
		sym := s.At(a)
		if sym.Kind != SymVariable || sym.Var.FirstOwner != -1 || sym.Var.Slot != -1 {
			t.Errorf("fresh symbol = %+v", sym)
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		s := NewSymbolTable()
		s.Intern("x")
		if i, ok := s.Lookup("x"); !ok || i != 0 {
			t.Errorf("Lookup(x) = %d, %v", i, ok)
		}
		if _, ok := s.Lookup("y"); ok {
			t.Error("Lookup(y) should fail")
		}
	})

	t.Run("ArityFirstSeenWins", func(t *testing.T) {
		s := NewSymbolTable()
		f := s.Intern("f")
		if err := s.reconcileArity(f, 2); err != nil {
			t.Fatalf("first reconcile: %v", err)
		}
		if err := s.reconcileArity(f, 2); err != nil {
			t.Fatalf("same arity: %v", err)
		}
		err := s.reconcileArity(f, 3)
		var se *SemanticError
		if !errors.As(err, &se) {
			t.Fatalf("expected *SemanticError, got %v", err)
		}
		if s.At(f).Func.Arity != 2 || s.At(f).Kind != SymFunction {
			t.Errorf("f = %+v", s.At(f))
		}
	})

	t.Run("AssignedVariableCannotBecomeFunction", func(t *testing.T) {
		s := NewSymbolTable()
		v := s.Intern("v")
		s.At(v).Var.Assigned = true
		if err := s.markFunction(v); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("ResetSlots", func(t *testing.T) {
		s := NewSymbolTable()
		a, b := s.Intern("a"), s.Intern("b")
		s.At(a).Var.Slot, s.At(b).Var.Slot = 0, 1
		s.ResetSlots()
		if s.At(a).Var.Slot != -1 || s.At(b).Var.Slot != -1 {
			t.Errorf("slots = %d %d", s.At(a).Var.Slot, s.At(b).Var.Slot)
		}
	})

	t.Run("SymbolsIsACopy", func(t *testing.T) {
		s := NewSymbolTable()
		s.Intern("a")
		list := s.Symbols()
		list[0].Name = "changed"
		if s.At(0).Name != "a" {
			t.Error("Symbols() exposed internal storage")
		}
	})
}

func TestSymbolTableString(t *testing.T) {
	if got := NewSymbolTable().String(); got != "Symbols: (empty)\n" {
		t.Errorf("empty dump = %q", got)
	}

	_, syms := parseSource(t, "func main() { x = 5; y = x; }")
	dump := syms.String()
	for _, want := range []string{
		"main",
		"function arity=0 frame=2 locals=2",
		"x",
		"variable init=5 owner=main",
		"variable init=unknown owner=main",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}
