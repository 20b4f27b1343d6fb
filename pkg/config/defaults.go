package config

import "time"

const (
	DefaultFile = "stackc.yaml"

	DefaultOptimize = true
	DefaultEntry    = "main"

	DefaultMemorySize = 65536
	DefaultStackLimit = 4096
	DefaultMaxSteps   = 10_000_000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultMetricsAddress = "127.0.0.1:9464"
	DefaultMetricsPath    = "/metrics"

	DefaultDebounce = 100 * time.Millisecond
)

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.Compiler.Optimize = DefaultOptimize
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields. Booleans are left alone since
// false is a meaningful setting; Default seeds them instead.
func ApplyDefaults(cfg *Config) {
	if cfg.Compiler.Entry == "" {
		cfg.Compiler.Entry = DefaultEntry
	}

	if cfg.VM.MemorySize == 0 {
		cfg.VM.MemorySize = DefaultMemorySize
	}
	if cfg.VM.StackLimit == 0 {
		cfg.VM.StackLimit = DefaultStackLimit
	}
	if cfg.VM.MaxSteps == 0 {
		cfg.VM.MaxSteps = DefaultMaxSteps
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
}
