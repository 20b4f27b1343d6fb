package compiler

import (
	"strings"
	"testing"
)

func TestControlFlow(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		scan     []float64
		expected string
	}{
		{
			name: "if statement",
			input: `
			func main() {
				x = 1;
				if (x == 1) {
					x = 2;
				}
				print(x);
			}
			`,
			expected: "2",
		},
		{
			name: "if-else statement",
			input: `
			func main() {
				a = 4; b = 9;
				if (a > b) { print(a); } else { print(b); }
				if (a < b) { print(a); } else { print(b); }
			}
			`,
			expected: "9 4",
		},
		{
			name: "all comparisons",
			input: `
			func test(a, b) {
				if (a < b) { print(1); } else { print(0); }
				if (a <= b) { print(1); } else { print(0); }
				if (a > b) { print(1); } else { print(0); }
				if (a >= b) { print(1); } else { print(0); }
				if (a == b) { print(1); } else { print(0); }
				if (a != b) { print(1); } else { print(0); }
			}
			func main() {
				test(1, 2);
				test(2, 2);
			}
			`,
			expected: "1 1 0 0 0 1 0 1 0 1 1 0",
		},
		{
			name: "countdown",
			input: `
			func main() {
				i = 3;
				while (i > 0) {
					print(i);
					i = i -1;
				}
			}
			`,
			expected: "3 2 1",
		},
		{
			name: "bare condition",
			input: `
			func main() {
				n = 4;
				while (n) { n = n - 1; }
				if (n) { print(1); } else { print(0); }
			}
			`,
			expected: "0",
		},
		{
			name: "nested loops",
			input: `
			func main() {
				total = 0;
				i = 1;
				while (i <= 3) {
					j = 1;
					while (j <= 3) {
						total = total + i * j;
						j = j + 1;
					}
					i = i + 1;
				}
				print(total);
			}
			`,
			expected: "36",
		},
		{
			name: "gcd from input",
			input: `
			func main() {
				read(a);
				read(b);
				while (a != b) {
					if (a > b) { a = a - b; } else { b = b - a; }
				}
				print(a);
			}
			`,
			scan:     []float64{48, 18},
			expected: "6",
		},
		{
			name: "return inside loop",
			input: `
			func first(limit) {
				i = 0;
				while (i < limit) {
					if (i * i > 50) { return i; }
					i = i + 1;
				}
				return -1;
			}
			func main() { print(first(100)); print(first(3)); }
			`,
			expected: "8 -1",
		},
		{
			name: "return in main halts",
			input: `
			func main() {
				print(1);
				return;
				print(2);
			}
			`,
			expected: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(runCode(t, tt.input, tt.scan...), " ")
			if got != tt.expected {
				t.Errorf("output = %q, want %q", got, tt.expected)
			}
		})
	}
}
