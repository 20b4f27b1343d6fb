// Package driver runs the compile, assemble and execute steps behind the
// stackc commands, adding logging and metrics around each one.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stackc/pkg/asm"
	"stackc/pkg/compiler"
	"stackc/pkg/config"
	"stackc/pkg/logging"
	"stackc/pkg/metrics"
	"stackc/pkg/sexpr"
	"stackc/pkg/vm"
)

// ctxCheckInterval is how many instructions Run executes between checks for
// cancellation.
const ctxCheckInterval = 4096

// Driver holds the settings shared by every command. The zero value is not
// usable; construct one with New.
type Driver struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Collector
}

// New returns a driver. A nil cfg means config.Default(), a nil log discards
// and a nil collector records nothing.
func New(cfg *config.Config, log *slog.Logger, m *metrics.Collector) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Driver{cfg: cfg, log: log, metrics: m}
}

// Config returns the configuration the driver was built with.
func (d *Driver) Config() *config.Config {
	return d.cfg
}

// CompileOptions translates the compiler section of the configuration.
func (d *Driver) CompileOptions() compiler.Options {
	return compiler.Options{
		Optimize:  d.cfg.Compiler.Optimize,
		MaxPasses: d.cfg.Compiler.MaxPasses,
		Entry:     d.cfg.Compiler.Entry,
	}
}

// Compile compiles src under a fresh compilation id. name only labels the
// log records.
func (d *Driver) Compile(ctx context.Context, name, src string) (*compiler.Result, error) {
	ctx = logging.WithCompilationID(ctx, logging.NewCompilationID())
	log := logging.FromContext(ctx, d.log).With("file", name)

	opts := d.CompileOptions()
	opts.Logger = log

	start := time.Now()
	res, err := compiler.Compile(src, opts)
	return d.finish(log, start, res, err)
}

// finish records the outcome of one compilation.
func (d *Driver) finish(log *slog.Logger, start time.Time, res *compiler.Result, err error) (*compiler.Result, error) {
	if err != nil {
		d.metrics.RecordCompilation(metrics.ResultError)
		log.Error("compilation failed", "error", err)
		return nil, err
	}

	d.metrics.RecordCompilation(metrics.ResultSuccess)
	d.metrics.ObserveStage("lex", res.Durations.Lex)
	d.metrics.ObserveStage("parse", res.Durations.Parse)
	d.metrics.ObserveStage("optimize", res.Durations.Optimize)
	d.metrics.ObserveStage("generate", res.Durations.Generate)
	d.metrics.RecordOptimizer(res.Stats.Folds, res.Stats.Simplified, res.Stats.DivByZero)

	log.Info("compiled",
		"duration", time.Since(start),
		"tokens", len(res.Tokens),
		"symbols", res.Symbols.Len(),
		"labels", res.Labels,
		"bytes", len(res.Assembly),
	)
	return res, nil
}

// CompileFile reads path and compiles it. A .sexpr file is read as a
// program tree instead of source text.
func (d *Driver) CompileFile(ctx context.Context, path string) (*compiler.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	if IsTree(path) {
		return d.CompileTree(ctx, path, string(src))
	}
	return d.Compile(ctx, path, string(src))
}

// CompileTree compiles a program tree given in the interchange format.
func (d *Driver) CompileTree(ctx context.Context, name, text string) (*compiler.Result, error) {
	ctx = logging.WithCompilationID(ctx, logging.NewCompilationID())
	log := logging.FromContext(ctx, d.log).With("file", name)

	start := time.Now()
	tree, syms, err := sexpr.ReadString(text)
	if err != nil {
		d.metrics.RecordCompilation(metrics.ResultError)
		log.Error("reading tree failed", "error", err)
		return nil, err
	}
	opts := d.CompileOptions()
	opts.Logger = log
	res, err := compiler.CompileTree(tree, syms, opts)
	return d.finish(log, start, res, err)
}

// Assemble turns assembly text into a program.
func (d *Driver) Assemble(name, code string) ([]vm.Instruction, error) {
	program, _, err := asm.Assemble(code)
	if err != nil {
		d.log.Error("assembly failed", "file", name, "error", err)
		return nil, fmt.Errorf("assemble: %w", err)
	}
	d.log.Debug("assembled", "file", name, "instructions", len(program))
	return program, nil
}

// IsTree reports whether path names a program tree in the interchange
// format.
func IsTree(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sexpr")
}

// IsAssembly reports whether path names an assembly listing rather than a
// source file.
func IsAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asm", ".s":
		return true
	}
	return false
}

// Load returns the program stored at path, compiling it first unless it is
// already assembly.
func (d *Driver) Load(ctx context.Context, path string) ([]vm.Instruction, error) {
	if IsAssembly(path) {
		code, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, err)
		}
		return d.Assemble(path, string(code))
	}
	res, err := d.CompileFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.Assemble(path, res.Assembly)
}

// NewMachine builds a machine sized by the vm section of the configuration.
func (d *Driver) NewMachine(program []vm.Instruction) *vm.Machine {
	return vm.New(program, vm.Config{
		MemorySize: d.cfg.VM.MemorySize,
		StackLimit: d.cfg.VM.StackLimit,
		MaxSteps:   d.cfg.VM.MaxSteps,
	})
}

// Run executes program with IN reading from in and OUT writing to out. It
// stops early when ctx is cancelled.
func (d *Driver) Run(ctx context.Context, program []vm.Instruction, in io.Reader, out io.Writer) (*vm.Machine, error) {
	m := d.NewMachine(program)
	m.Input = in
	m.Output = out

	start := time.Now()
	err := execute(ctx, m)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	d.metrics.RecordRun(result, m.Steps)
	d.log.Debug("program finished",
		"steps", m.Steps,
		"duration", time.Since(start),
		"error", err,
	)
	return m, err
}

func execute(ctx context.Context, m *vm.Machine) error {
	for !m.Halted {
		if m.Steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				m.Halted = true
				return err
			}
		}
		if err := m.Step(); err != nil {
			return err
		}
		if m.Waiting {
			m.Halted = true
			return vm.ErrNoInput
		}
	}
	return nil
}
