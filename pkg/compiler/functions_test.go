package compiler

import (
	"strings"
	"testing"
)

func TestFunctions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "two arguments",
			input:    `func f(a, b) { return a + b; } func main() { print(f(1,2)); }`,
			expected: "3",
		},
		{
			name:     "argument order",
			input:    `func sub(a, b) { return a - b; } func main() { print(sub(10, 4)); }`,
			expected: "6",
		},
		{
			name: "declared after use",
			input: `
			func main() { print(twice(21)); }
			func twice(n) { return n * 2; }
			`,
			expected: "42",
		},
		{
			name: "recursion",
			input: `
			func fact(n) {
				if (n <= 1) { return 1; }
				return n * fact(n - 1);
			}
			func main() { print(fact(5)); print(fact(10)); }
			`,
			expected: "120 3628800",
		},
		{
			name: "double recursion",
			input: `
			func fib(n) {
				if (n < 2) { return n; }
				return fib(n - 1) + fib(n - 2);
			}
			func main() { print(fib(15)); }
			`,
			expected: "610",
		},
		{
			name: "locals do not clash",
			input: `
			func g() { x = 5; y = x * 2; return y; }
			func main() { x = 1; y = g(); print(x); print(y); }
			`,
			expected: "1 10",
		},
		{
			name: "nested calls as arguments",
			input: `
			func add(a, b) { return a + b; }
			func mul(a, b) { return a * b; }
			func main() { print(add(mul(2, 3), mul(add(1, 1), 5))); }
			`,
			expected: "16",
		},
		{
			name: "fall through returns zero",
			input: `
			func nothing(a) { b = a; }
			func main() { print(nothing(7) + 1); }
			`,
			expected: "1",
		},
		{
			name: "parameter reassigned",
			input: `
			func inc(a) { a = a + 1; return a; }
			func main() { a = 1; print(inc(a)); print(a); }
			`,
			expected: "2 1",
		},
		{
			name: "zero arguments",
			input: `
			func seven() { return 7; }
			func main() { print(seven() * seven()); }
			`,
			expected: "49",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(runCode(t, tt.input), " ")
			if got != tt.expected {
				t.Errorf("output = %q, want %q", got, tt.expected)
			}
		})
	}
}
