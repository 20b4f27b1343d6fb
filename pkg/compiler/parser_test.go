package compiler

import (
	"errors"
	"strings"
	"testing"
)

// prefix renders a subtree as (op left right) with nil for absent children.
func prefix(tree *Tree, syms *SymbolTable, id NodeID) string {
	if id == NoNode {
		return "nil"
	}
	n := tree.Node(id)
	if n.Kind != OperationNode {
		return tree.Label(id, syms)
	}
	return "(" + n.Op.String() + " " + prefix(tree, syms, n.Left) + " " + prefix(tree, syms, n.Right) + ")"
}

func parseSource(t *testing.T, src string) (*Tree, *SymbolTable) {
	t.Helper()
	syms := NewSymbolTable()
	tokens, err := Lex(src, syms)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	tree, err := Parse(tokens, syms, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree, syms
}

func parseError(src string) error {
	syms := NewSymbolTable()
	tokens, err := Lex(src, syms)
	if err != nil {
		return err
	}
	_, err = Parse(tokens, syms, src)
	return err
}

// functionBody finds the declaration of name and returns its body.
func functionBody(t *testing.T, tree *Tree, syms *SymbolTable, name string) NodeID {
	t.Helper()
	for _, fn := range tree.List(tree.Root, OpThen) {
		nameID, _, body := funcParts(tree, fn)
		if syms.At(tree.Node(nameID).Sym).Name == name {
			return body
		}
	}
	t.Fatalf("function %q not found", name)
	return NoNode
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name    string
		prelude string
		body    string
		want    string
	}{
		{"Precedence", "", "x = 2 + 3 * 4;", "(; (= x (+ 2 (* 3 4))) nil)"},
		{"Additive chain is left associative", "", "x = 1 - 2 - 3;", "(; (= x (- (- 1 2) 3)) nil)"},
		{"Term is right recursive", "", "x = 8 / 4 / 2;", "(; (= x (/ 8 (/ 4 2))) nil)"},
		{"Power is right associative", "", "x = 2 ^ 3 ^ 2;", "(; (= x (^ 2 (^ 3 2))) nil)"},
		{"Signed literal subtracts", "", "x = a -1;", "(; (= x (- a 1)) nil)"},
		{"Signed literal leads a term", "", "x = a -2*b;", "(; (= x (- a (* 2 b))) nil)"},
		{"Subtracting a negative literal", "", "x = a - -2;", "(; (= x (- a -2)) nil)"},
		{"Unary minus", "", "x = -a;", "(; (= x (* -1 a)) nil)"},
		{"Parentheses", "", "x = (1 + 2) * 3;", "(; (= x (* (+ 1 2) 3)) nil)"},
		{"Sqrt", "", "x = sqrt(9);", "(; (= x (sqrt nil 9)) nil)"},
		{"Assignments chain left to right", "", "x = 1; y = 2; z = 3;", "(; (; (; (= x 1) (= y 2)) (= z 3)) nil)"},
		{"Statements chain to the right", "", "print(1); print(2);", "(; (print nil 1) (; (print nil 2) nil))"},
		{
			"If else", "", "if (a < b) { print(a); } else { print(b); }",
			"(; (if (< a b) (else (; (print nil a) nil) (; (print nil b) nil))) nil)",
		},
		{"If without else", "", "if (a == 1) { a = 2; }", "(; (if (== a 1) (else (; (= a 2) nil) nil)) nil)"},
		{"While", "", "while (i > 0) { i = i - 1; }", "(; (while (> i 0) (; (= i (- i 1)) nil)) nil)"},
		{"Bare condition", "", "while (i) { i = i -1; }", "(; (while i (; (= i (- i 1)) nil)) nil)"},
		{"Return", "", "return 1 + x;", "(; (return nil (+ 1 x)) nil)"},
		{"Bare return", "", "return;", "(; (return nil nil) nil)"},
		{"Scan", "", "scan(x);", "(; (scan nil x) nil)"},
		{"Read alias", "", "read(x);", "(; (scan nil x) nil)"},
		{"Call statement", "func f() { return 1; }", "f();", "(; (() f nil) nil)"},
		{"Call arguments", "func g(a, b) { return a; }", "x = g(1, y + 2);", "(; (= x (() g (, 1 (, (+ y 2) nil)))) nil)"},
		{"Empty body", "", "", "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.prelude + "\nfunc main() {\n" + tt.body + "\n}\n"
			tree, syms := parseSource(t, src)
			got := prefix(tree, syms, functionBody(t, tree, syms, "main"))
			if got != tt.want {
				t.Errorf("body = %s\nwant   %s", got, tt.want)
			}
		})
	}
}

func TestParseProgramShape(t *testing.T) {
	src := "func f(a, b) { return a + b; } func main() { print(f(1,2)); }"
	tree, syms := parseSource(t, src)
	want := "(; (func f ({} (, a (, b nil)) (; (return nil (+ a b)) nil))) " +
		"(; (func main ({} nil (; (print nil (() f (, 1 (, 2 nil)))) nil))) nil))"
	if got := prefix(tree, syms, tree.Root); got != want {
		t.Errorf("tree = %s\nwant   %s", got, want)
	}
	if err := tree.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseBinaryChildrenInvariant(t *testing.T) {
	sources := []string{
		"func main() { x = 1 + 2 * 3 - 4 / 5 ^ 6; print(x); }",
		"func main() { x = -(-a) - -1; if (x >= 2) { y = x -1; } }",
		"func f(n) { if (n <= 1) { return 1; } return n * f(n - 1); } func main() { print(f(5)); }",
		"func main() { i = 0; while (i != 10) { i = i + 1; j = i; k = j; } }",
	}
	for _, src := range sources {
		tree, _ := parseSource(t, src)
		if err := tree.Validate(); err != nil {
			t.Errorf("%q: Validate() = %v", src, err)
		}
		tree.Walk(tree.Root, func(id NodeID) bool {
			n := tree.Node(id)
			if n.Kind == OperationNode && n.Op.IsBinary() && (n.Left == NoNode || n.Right == NoNode) {
				t.Errorf("%q: %s node %d is missing an operand", src, n.Op, id)
			}
			return true
		})
	}
}

func TestParserRestoresCursor(t *testing.T) {
	src := "x = ; y = 1;"
	syms := NewSymbolTable()
	tokens, err := Lex(src, syms)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}

	p := NewParser(tokens, syms, src)
	if _, err := p.attempt(p.parseAssign); err == nil {
		t.Fatal("expected parseAssign to fail")
	}
	if p.pos != 0 {
		t.Errorf("cursor = %d after failed attempt, want 0", p.pos)
	}

	if _, err := p.parseStatement(); err == nil {
		t.Fatal("expected parseStatement to fail")
	}
	if p.pos != 0 {
		t.Errorf("cursor = %d after failed statement, want 0", p.pos)
	}

	p.pos = 3
	id, err := p.parseStatement()
	if err != nil {
		t.Fatalf("parseStatement at y: %v", err)
	}
	if got := prefix(p.tree, syms, id); got != "(= y 1)" {
		t.Errorf("statement = %s", got)
	}
	if p.pos != 7 {
		t.Errorf("cursor = %d, want 7", p.pos)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		line     int
		expected string
	}{
		{"Empty program", "", 1, `"func"`},
		{"Statement outside function", "x = 1;", 1, `"func"`},
		{"Missing expression", "func main() {\n x = ;\n}", 2, "expression"},
		{"Missing semicolon", "func main() {\n print(1)\n}", 3, `";"`},
		{"Missing brace", "func main() { print(1);", 1, `"}"`},
		{"Missing condition paren", "func main() { if a < b { } }", 1, `"("`},
		{"Trailing tokens", "func main() { } }", 1, `"func"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if se.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", se.Line, tt.line, se)
			}
			if se.Expected != tt.expected {
				t.Errorf("expected = %s, want %s (%v)", se.Expected, tt.expected, se)
			}
		})
	}
}

func TestParseSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"Call arity differs from declaration",
			"func f(a) { return a; } func main() { print(f(1, 2)); }",
			"takes 1 parameters, got 2",
		},
		{
			"Declaration arity differs from earlier call",
			"func main() { print(f(1)); } func f(a, b) { return a; }",
			"takes 1 parameters, got 2",
		},
		{
			"Two calls disagree",
			"func main() { x = g(1); y = g(1, 2); } func g(a) { return a; }",
			"takes 1 parameters, got 2",
		},
		{"Function declared twice", "func f() { } func f() { } func main() { }", "declared twice"},
		{"Function used as variable", "func f() { return 1; } func main() { x = f; }", "used as a variable"},
		{"Function read before its declaration", "func main() { print(g); } func g() { return 5; }", "used as a variable"},
		{"Parameter named after a later function", "func f(g) { return g; } func g() { return 1; } func main() { }", "used as a variable"},
		{"Assigned variable becomes function", "func main() { f = 1; } func f() { }", "both a variable and a function"},
		{"Duplicate parameter", "func f(a, a) { } func main() { }", "duplicate parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.src)
			var se *SemanticError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SemanticError, got %v", err)
			}
			if !strings.Contains(se.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", se.Error(), tt.want)
			}
		})
	}
}

func TestParseRecordsFunctionFacts(t *testing.T) {
	src := `
func f(a, b) {
	a = 2;
	c = a;
	c = c + b;
	return c;
}
func main() {
	x = 1;
	x = 2;
	y = x;
	print(f(x, y));
}
`
	_, syms := parseSource(t, src)

	lookup := func(name string) *Symbol {
		i, ok := syms.Lookup(name)
		if !ok {
			t.Fatalf("symbol %q missing", name)
		}
		return syms.At(i)
	}
	names := func(frame []int) string {
		var out []string
		for _, s := range frame {
			out = append(out, syms.At(s).Name)
		}
		return strings.Join(out, ",")
	}

	f := lookup("f")
	if f.Kind != SymFunction || f.Func.Arity != 2 || !f.Func.Declared {
		t.Errorf("f = %+v", f)
	}
	if got := names(f.Func.Frame); got != "a,b,c" {
		t.Errorf("f frame = %s, want a,b,c", got)
	}
	if f.Func.Locals != 1 {
		t.Errorf("f locals = %d, want 1", f.Func.Locals)
	}

	entry := lookup("main")
	if got := names(entry.Func.Frame); got != "x,y" {
		t.Errorf("main frame = %s, want x,y", got)
	}
	if entry.Func.Locals != 2 {
		t.Errorf("main locals = %d, want 2", entry.Func.Locals)
	}

	x := lookup("x")
	if !x.Var.Known || x.Var.Value != 1 {
		t.Errorf("x should be first initialised to 1, got %+v", x.Var)
	}
	if syms.At(x.Var.FirstOwner).Name != "main" {
		t.Errorf("x first owner = %d", x.Var.FirstOwner)
	}
	if y := lookup("y"); y.Var.Known || !y.Var.Assigned {
		t.Errorf("y = %+v, want assigned but not known", y.Var)
	}
	if c := lookup("c"); syms.At(c.Var.FirstOwner).Name != "f" {
		t.Errorf("c first owner = %d", c.Var.FirstOwner)
	}
}
