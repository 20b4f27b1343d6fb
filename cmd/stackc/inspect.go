package main

import (
	"fmt"
	"os"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"stackc/pkg/compiler"
	"stackc/pkg/sexpr"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Print the token stream of a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  printTokens,
}

var astFlags struct {
	format   string
	optimize bool
}

var astCmd = &cobra.Command{
	Use:   "ast <file>",
	Short: "Print the program tree of a source file",
	Long: `Parse a source file and print its tree.

Formats:
  sexpr  the interchange format, ( "TOKEN" LEFT RIGHT ) per node
  tree   an indented outline, one node per line
  dump   a Go-syntax dump of every node`,
	Args: cobra.ExactArgs(1),
	RunE: printAST,
}

var symbolsFlags struct {
	dump bool
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Print the symbol table built while parsing a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  printSymbols,
}

func init() {
	astCmd.Flags().StringVarP(&astFlags.format, "format", "f", "sexpr", "output format: sexpr, tree, dump")
	astCmd.Flags().BoolVarP(&astFlags.optimize, "optimize", "O", false, "optimize the tree before printing")
	symbolsCmd.Flags().BoolVar(&symbolsFlags.dump, "dump", false, "print a Go-syntax dump instead of a table")
	rootCmd.AddCommand(tokensCmd, astCmd, symbolsCmd)
}

// parsed is the front half of the pipeline, without code generation.
type parsed struct {
	tokens []compiler.Token
	tree   *compiler.Tree
	syms   *compiler.SymbolTable
}

func parseFile(path string, tokensOnly bool) (*parsed, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	p := &parsed{syms: compiler.NewSymbolTable()}
	if p.tokens, err = compiler.Lex(string(src), p.syms); err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}
	if tokensOnly {
		return p, nil
	}
	if p.tree, err = compiler.Parse(p.tokens, p.syms, string(src)); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return p, nil
}

func printTokens(cmd *cobra.Command, args []string) error {
	p, err := parseFile(args[0], true)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, tok := range p.tokens {
		fmt.Fprintln(out, tok)
	}
	return nil
}

// dumpNode is the nested view of a tree used by --format=dump.
type dumpNode struct {
	Kind  string
	Op    string
	Name  string
	Value float64
	Left  *dumpNode
	Right *dumpNode
}

func toDump(t *compiler.Tree, syms *compiler.SymbolTable, id compiler.NodeID) *dumpNode {
	if id == compiler.NoNode {
		return nil
	}
	n := t.Node(id)
	d := &dumpNode{Kind: n.Kind.String()}
	switch n.Kind {
	case compiler.NumberNode:
		d.Value = n.Value
	case compiler.VariableNode:
		d.Name = t.Label(id, syms)
	default:
		d.Op = n.Op.String()
		d.Left = toDump(t, syms, n.Left)
		d.Right = toDump(t, syms, n.Right)
	}
	return d
}

var dumpOptions = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	HideZeroValues:    true,
}

func printAST(cmd *cobra.Command, args []string) error {
	p, err := parseFile(args[0], false)
	if err != nil {
		return err
	}
	if astFlags.optimize {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		compiler.Optimize(p.tree, p.syms, nil, cfg.Compiler.MaxPasses)
	}

	out := cmd.OutOrStdout()
	switch astFlags.format {
	case "sexpr":
		return sexpr.Write(out, p.tree, p.syms)
	case "tree":
		_, err = fmt.Fprint(out, p.tree.Format(p.tree.Root, p.syms))
		return err
	case "dump":
		_, err = fmt.Fprintln(out, dumpOptions.Sdump(toDump(p.tree, p.syms, p.tree.Root)))
		return err
	}
	return fmt.Errorf("unknown format %q (want sexpr, tree or dump)", astFlags.format)
}

func printSymbols(cmd *cobra.Command, args []string) error {
	p, err := parseFile(args[0], false)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if symbolsFlags.dump {
		_, err = fmt.Fprintln(out, dumpOptions.Sdump(p.syms.Symbols()))
		return err
	}
	_, err = fmt.Fprint(out, p.syms.String())
	return err
}
