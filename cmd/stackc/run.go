package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var runFlags struct {
	input     string
	stats     bool
	maxSteps  int
	noOpt     bool
	maxPasses int
	entry     string
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile (if needed), assemble and execute a program",
	Long: `Run a program on the stack machine. Files ending in .asm or .s are
assembled directly; anything else is compiled first.

Values for scan() are read from stdin, separated by whitespace, unless
--input supplies them.`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.input, "input", "i", "", "whitespace separated values for scan() instead of stdin")
	runCmd.Flags().BoolVar(&runFlags.stats, "stats", false, "print instruction count and final stack depth to stderr")
	runCmd.Flags().IntVar(&runFlags.maxSteps, "max-steps", -1, "abort after this many instructions (0 = unlimited)")
	addCompilerFlags(runCmd, &runFlags.noOpt, &runFlags.maxPasses, &runFlags.entry)
	rootCmd.AddCommand(runCmd)
}

func runProgram(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyCompilerFlags(cfg, runFlags.noOpt, runFlags.maxPasses, runFlags.entry); err != nil {
		return err
	}
	if runFlags.maxSteps >= 0 {
		cfg.VM.MaxSteps = runFlags.maxSteps
	}
	d, err := newDriver(cmd, cfg, nil)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	program, err := d.Load(ctx, args[0])
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if runFlags.input != "" {
		in = strings.NewReader(runFlags.input)
	}
	m, err := d.Run(ctx, program, in, cmd.OutOrStdout())
	if runFlags.stats {
		fmt.Fprintf(cmd.ErrOrStderr(), "steps=%d stack=%d\n", m.Steps, len(m.Stack))
	}
	return err
}
