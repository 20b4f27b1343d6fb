package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stackc/pkg/config"
	"stackc/pkg/driver"
	"stackc/pkg/logging"
	"stackc/pkg/metrics"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "stackc",
	Short: "Compiler for a small C-like language targeting a stack machine",
	Long: `stackc compiles programs written in a small C-like language (functions,
while, if/else, print, scan and floating point arithmetic) into assembly for
a register-assisted stack machine.

The optimizer folds constant subexpressions and removes neutral operands.
The generated assembly can be assembled and executed with the built-in
virtual machine.`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")
}

// loadConfig reads the configuration file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDriver builds a driver whose logs go to the command's stderr.
func newDriver(cmd *cobra.Command, cfg *config.Config, m *metrics.Collector) (*driver.Driver, error) {
	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return driver.New(cfg, log, m), nil
}

// applyCompilerFlags overrides the compiler section from per-command flags.
// Negative maxPasses and an empty entry leave the configured values alone.
func applyCompilerFlags(cfg *config.Config, noOpt bool, maxPasses int, entry string) error {
	if noOpt {
		cfg.Compiler.Optimize = false
	}
	if maxPasses >= 0 {
		cfg.Compiler.MaxPasses = maxPasses
	}
	if entry != "" {
		cfg.Compiler.Entry = entry
	}
	return config.Validate(cfg)
}

func addCompilerFlags(cmd *cobra.Command, noOpt *bool, maxPasses *int, entry *string) {
	cmd.Flags().BoolVar(noOpt, "no-opt", false, "disable the optimizer")
	cmd.Flags().IntVar(maxPasses, "max-passes", -1, "cap optimizer passes (0 = until nothing changes)")
	cmd.Flags().StringVar(entry, "entry", "", "function execution starts in (default main)")
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path, data string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), data)
		return err
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
