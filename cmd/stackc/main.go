// Stackc compiles programs in a small C-like language to assembly for a
// stack machine, and can assemble and run the result.
//
// Usage:
//
//	# Compile to assembly on stdout
//	stackc compile prog.c
//
//	# Compile without optimization, also writing the tree
//	stackc compile --no-opt --emit-ast prog.sexpr -o prog.asm prog.c
//
//	# Compile and run, reading scan() values from stdin
//	echo 5 | stackc run prog.c
//
//	# Recompile on every save and serve Prometheus metrics
//	stackc watch prog.c -o prog.asm
package main

func main() {
	Execute()
}
