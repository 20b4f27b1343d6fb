package sexpr

import (
	"errors"
	"strings"
	"testing"

	"stackc/pkg/compiler"
)

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("expected output to contain %q\nGot:\n%s", want, got)
	}
}

func TestWrite(t *testing.T) {
	res, err := compiler.Compile(`func main() { x = 1 + y; }`, compiler.Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	got := String(res.Tree, res.Symbols)

	assertContains(t, got, `( ";"`)
	assertContains(t, got, `( "func"`)
	assertContains(t, got, `( "main" nil nil )`)
	assertContains(t, got, `( "=" `)
	assertContains(t, got, `( "1" nil nil )`)
	assertContains(t, got, `( "y" nil nil )`)
	if !strings.HasSuffix(got, " )\n") {
		t.Errorf("expected a closing paren and newline at the end, got %q", got)
	}
}

func TestWrite_EmptyTree(t *testing.T) {
	if got := String(compiler.NewTree(), compiler.NewSymbolTable()); got != "nil\n" {
		t.Errorf("got %q, want %q", got, "nil\n")
	}
}

func TestReadLeaves(t *testing.T) {
	tests := []struct {
		token string
		kind  compiler.NodeKind
	}{
		{"42", compiler.NumberNode},
		{"-2", compiler.NumberNode},
		{"+3", compiler.NumberNode},
		{".5", compiler.NumberNode},
		{"1e+21", compiler.NumberNode},
		{"x", compiler.VariableNode},
		{"inf", compiler.VariableNode},
		{"_tmp1", compiler.VariableNode},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			b := &builder{tree: compiler.NewTree(), syms: compiler.NewSymbolTable()}
			id, err := b.node(&Node{Token: tt.token})
			if err != nil {
				t.Fatalf("node failed: %v", err)
			}
			if got := b.tree.Node(id).Kind; got != tt.kind {
				t.Errorf("kind = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestRead(t *testing.T) {
	src := `
# f(a) returns a + 1
( ";"
  ( "func"
    ( "f" nil nil )
    ( "{}"
      ( "a" nil nil )
      ( ";" ( "return" nil ( "+" ( "a" nil nil ) ( "1" nil nil ) ) ) nil ) ) )
  nil )
`
	tree, syms, err := ReadString(src)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("tree is not well formed: %v", err)
	}
	i, ok := syms.Lookup("f")
	if !ok {
		t.Fatal("symbol f missing")
	}
	f := syms.At(i)
	if f.Kind != compiler.SymFunction || f.Func.Arity != 1 || len(f.Func.Frame) != 1 {
		t.Errorf("f = %+v, want a function of arity 1 with one frame slot", f)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unbalanced", `( "x" nil nil`, "sexpr:"},
		{"missing child", `( "x" nil )`, "sexpr:"},
		{"unquoted token", `( x nil nil )`, "sexpr:"},
		{"unknown token", `( "@" nil nil )`, `unknown token "@"`},
		{"number with operands", `( "1" ( "2" nil nil ) nil )`, "cannot have operands"},
		{"variable with operands", `( "x" nil ( "2" nil nil ) )`, "cannot have operands"},
		{"not a function", `( ";" ( "1" nil nil ) nil )`, "not a function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadString(tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestRead_SemanticErrorIsWrapped(t *testing.T) {
	// f is declared with one parameter and called with two.
	src := `
( ";"
  ( "func" ( "f" nil nil ) ( "{}" ( "a" nil nil ) nil ) )
  ( ";"
    ( "func" ( "main" nil nil )
      ( "{}" nil ( ";" ( "()" ( "f" nil nil ) ( "," ( "1" nil nil ) ( "2" nil nil ) ) ) nil ) ) )
    nil ) )
`
	_, _, err := ReadString(src)
	var semErr *compiler.SemanticError
	if !errors.As(err, &semErr) {
		t.Fatalf("expected a SemanticError, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	programs := map[string]string{
		"arithmetic": `func main() { print(2 + 3 * 4 - 1); print(7 / 2); print(2 ^ 3 ^ 2); }`,
		"functions": `
			func fact(n) { if (n <= 1) { return 1; } return n * fact(n - 1); }
			func main() { print(fact(6)); }`,
		"control flow": `
			func main() {
				i = 0;
				while (i < 3) { if (i == 1) { print(i); } else { print(-i); } i = i + 1; }
				scan(k);
				print(sqrt(k));
			}`,
	}
	for name, src := range programs {
		for _, optimize := range []bool{false, true} {
			t.Run(name, func(t *testing.T) {
				opts := compiler.Options{Optimize: optimize}
				parsed, err := compiler.Compile(src, compiler.Options{})
				if err != nil {
					t.Fatalf("Compile failed: %v", err)
				}
				text := String(parsed.Tree, parsed.Symbols)

				tree, syms, err := ReadString(text)
				if err != nil {
					t.Fatalf("Read failed: %v\n%s", err, text)
				}
				if again := String(tree, syms); again != text {
					t.Errorf("second write differs\nfirst:\n%s\nsecond:\n%s", text, again)
				}

				want, err := compiler.Compile(src, opts)
				if err != nil {
					t.Fatalf("Compile failed: %v", err)
				}
				got, err := compiler.CompileTree(tree, syms, opts)
				if err != nil {
					t.Fatalf("CompileTree failed: %v", err)
				}
				if got.Assembly != want.Assembly {
					t.Errorf("assembly differs after round trip\nwant:\n%s\ngot:\n%s", want.Assembly, got.Assembly)
				}
			})
		}
	}
}

func TestRoundTrip_OptimizedTree(t *testing.T) {
	programs := map[string]string{
		"nan":          `func main() { x = sqrt(0 - 1); print(x); }`,
		"nan power":    `func main() { x = (0 - 8) ^ (1 / 2); print(x); }`,
		"infinity":     `func main() { print(10 ^ 400); print(0 - 10 ^ 400); }`,
		"folded calls": `func f(n) { return n * 1 + 2 * 3; } func main() { print(f(4 - 4)); }`,
	}
	for name, src := range programs {
		t.Run(name, func(t *testing.T) {
			opts := compiler.Options{Optimize: true}
			want, err := compiler.Compile(src, opts)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			text := String(want.Tree, want.Symbols)
			tree, syms, err := ReadString(text)
			if err != nil {
				t.Fatalf("Read failed: %v\n%s", err, text)
			}
			got, err := compiler.CompileTree(tree, syms, opts)
			if err != nil {
				t.Fatalf("CompileTree failed: %v", err)
			}
			if got.Assembly != want.Assembly {
				t.Errorf("assembly differs after round trip\nwant:\n%s\ngot:\n%s", want.Assembly, got.Assembly)
			}
		})
	}
}
