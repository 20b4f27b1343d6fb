package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Options controls a compilation.
type Options struct {
	// Optimize enables constant folding and neutral-element elimination.
	Optimize bool
	// MaxPasses caps the optimizer loop; 0 runs to a fixed point.
	MaxPasses int
	// Entry is the function execution starts in; empty means "main".
	Entry string
	// Logger receives stage diagnostics; nil discards them.
	Logger *slog.Logger
}

// StageDurations records how long each pipeline stage took.
type StageDurations struct {
	Lex      time.Duration
	Parse    time.Duration
	Optimize time.Duration
	Generate time.Duration
}

// Result is everything a successful compilation produced.
type Result struct {
	Assembly  string
	Tokens    []Token
	Tree      *Tree
	Symbols   *SymbolTable
	Stats     OptimizeStats
	Labels    int
	Durations StageDurations
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Compile runs the whole pipeline on src. Either a complete Result or an
// error is returned, never both.
func Compile(src string, opts Options) (*Result, error) {
	log := opts.logger()
	res := &Result{Symbols: NewSymbolTable()}

	start := time.Now()
	tokens, err := Lex(src, res.Symbols)
	if err != nil {
		log.Debug("lex failed", "stage", "lex", "error", err)
		return nil, fmt.Errorf("lex: %w", err)
	}
	res.Tokens = tokens
	res.Durations.Lex = time.Since(start)
	log.Debug("lexed source", "stage", "lex", "tokens", len(tokens), "symbols", res.Symbols.Len())

	start = time.Now()
	tree, err := Parse(tokens, res.Symbols, src)
	if err != nil {
		log.Debug("parse failed", "stage", "parse", "error", err)
		return nil, fmt.Errorf("parse: %w", err)
	}
	res.Tree = tree
	res.Durations.Parse = time.Since(start)
	log.Debug("parsed program", "stage", "parse", "nodes", tree.Count(tree.Root))

	if err := res.backend(opts, log); err != nil {
		return nil, err
	}
	return res, nil
}

// CompileTree optimizes and generates code for a tree that was built
// elsewhere, such as one read back from its S-expression form. syms must
// already be bound to t.
func CompileTree(t *Tree, syms *SymbolTable, opts Options) (*Result, error) {
	res := &Result{Tree: t, Symbols: syms}
	if err := res.backend(opts, opts.logger()); err != nil {
		return nil, err
	}
	return res, nil
}

func (res *Result) backend(opts Options, log *slog.Logger) error {
	if opts.Optimize {
		start := time.Now()
		before := res.Tree.Count(res.Tree.Root)
		_, res.Stats = Optimize(res.Tree, res.Symbols, log, opts.MaxPasses)
		res.Durations.Optimize = time.Since(start)
		log.Debug("optimized tree",
			"stage", "optimize",
			"passes", res.Stats.Passes,
			"folds", res.Stats.Folds,
			"simplified", res.Stats.Simplified,
			"nodes_before", before,
			"nodes_after", res.Tree.Count(res.Tree.Root),
		)
	}

	start := time.Now()
	labels := &Labels{}
	assembly, err := Generate(res.Tree, res.Symbols, GenOptions{Entry: opts.Entry, Labels: labels})
	if err != nil {
		log.Debug("codegen failed", "stage", "generate", "error", err)
		return fmt.Errorf("codegen: %w", err)
	}
	res.Assembly = assembly
	res.Labels = labels.Issued()
	res.Durations.Generate = time.Since(start)
	log.Debug("generated assembly", "stage", "generate", "bytes", len(assembly), "labels", res.Labels)
	return nil
}
