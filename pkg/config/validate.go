package config

import (
	"fmt"
	"net"
	"strings"
)

// FieldError is a validation failure for one dotted configuration path.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError carries every FieldError found in one Validate call.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate returns a ValidationError listing every invalid field, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateCompiler(&cfg.Compiler)...)
	errs = append(errs, validateVM(&cfg.VM)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, FieldError{"watch.debounce", "must not be negative"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateCompiler(c *CompilerConfig) []FieldError {
	var errs []FieldError
	if c.MaxPasses < 0 {
		errs = append(errs, FieldError{"compiler.max_passes", "must not be negative"})
	}
	if !isIdentifier(c.Entry) {
		errs = append(errs, FieldError{"compiler.entry", fmt.Sprintf("%q is not a valid function name", c.Entry)})
	}
	return errs
}

func validateVM(v *VMConfig) []FieldError {
	var errs []FieldError
	if v.MemorySize <= 0 {
		errs = append(errs, FieldError{"vm.memory_size", "must be positive"})
	}
	if v.StackLimit <= 0 {
		errs = append(errs, FieldError{"vm.stack_limit", "must be positive"})
	}
	if v.MaxSteps < 0 {
		errs = append(errs, FieldError{"vm.max_steps", "must not be negative"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("unknown level %q", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("unknown format %q (want text or json)", l.Format)})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) []FieldError {
	if !m.Enabled {
		return nil
	}
	var errs []FieldError
	if _, _, err := net.SplitHostPort(m.ListenAddress); err != nil {
		errs = append(errs, FieldError{"metrics.listen_address", err.Error()})
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, FieldError{"metrics.path", "must start with /"})
	}
	return errs
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
