package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"stackc/pkg/sexpr"
)

var compileFlags struct {
	output    string
	emitAST   string
	noOpt     bool
	maxPasses int
	entry     string
}

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a source file to assembly",
	Long: `Compile a source file and write the generated assembly to stdout, or to
the file named by --output.

Files ending in .sexpr hold a program tree in the parenthesized interchange
format and skip lexing and parsing. --emit-ast writes that format, after
optimization when it is enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: compileSource,
}

func init() {
	compileCmd.Flags().StringVarP(&compileFlags.output, "output", "o", "", "assembly output file (default stdout)")
	compileCmd.Flags().StringVar(&compileFlags.emitAST, "emit-ast", "", "also write the program tree to this file")
	addCompilerFlags(compileCmd, &compileFlags.noOpt, &compileFlags.maxPasses, &compileFlags.entry)
	rootCmd.AddCommand(compileCmd)
}

func compileSource(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyCompilerFlags(cfg, compileFlags.noOpt, compileFlags.maxPasses, compileFlags.entry); err != nil {
		return err
	}
	d, err := newDriver(cmd, cfg, nil)
	if err != nil {
		return err
	}

	res, err := d.CompileFile(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	if compileFlags.emitAST != "" {
		f, err := os.Create(compileFlags.emitAST)
		if err != nil {
			return err
		}
		if err := sexpr.Write(f, res.Tree, res.Symbols); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return writeOutput(cmd, compileFlags.output, res.Assembly)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
