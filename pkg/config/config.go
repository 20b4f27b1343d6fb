// Package config loads stackc settings from YAML.
//
// Loading is three steps: the file is decoded over Default(), ApplyDefaults
// fills any field left at its zero value, and Validate collects every
// problem into a single ValidationError.
package config

import "time"

// Config is the root of stackc.yaml.
type Config struct {
	Compiler CompilerConfig `yaml:"compiler"`
	VM       VMConfig       `yaml:"vm"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Watch    WatchConfig    `yaml:"watch"`
}

// CompilerConfig controls the compilation pipeline.
type CompilerConfig struct {
	// Optimize enables constant folding and neutral-element elimination.
	Optimize bool `yaml:"optimize"`
	// MaxPasses caps optimizer passes; 0 runs to a fixed point.
	MaxPasses int `yaml:"max_passes"`
	// Entry names the function execution starts in.
	Entry string `yaml:"entry"`
}

// VMConfig sizes the stack machine used by `stackc run`.
type VMConfig struct {
	MemorySize int `yaml:"memory_size"`
	StackLimit int `yaml:"stack_limit"`
	// MaxSteps aborts runaway programs; 0 means unlimited.
	MaxSteps int `yaml:"max_steps"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

type WatchConfig struct {
	// Debounce coalesces bursts of file events into one recompilation.
	Debounce time.Duration `yaml:"debounce"`
}
