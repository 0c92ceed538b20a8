package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"scriptrec/internal/capture"
	"scriptrec/internal/keymap"
)

// ErrInvalidConfig is matched by every ValidationErrors value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// Fields returns the names of the fields that failed.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs.add("version", "unsupported version %d (current: %d)", c.Version, Version)
	}

	errs = append(errs, validateConversion(&c.Conversion)...)
	errs = append(errs, validateCapture(&c.Capture)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if c.Watch.DebounceMs < 0 {
		errs.add("watch.debounce_ms", "debounce cannot be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateConversion(v *ConversionConfig) ValidationErrors {
	var errs ValidationErrors

	if v.Precision < 0 {
		errs.add("conversion.precision", "precision cannot be negative")
	}
	if v.StepSize < 0 {
		errs.add("conversion.step_size", "step size cannot be negative")
	}
	if _, err := keymap.LookupLayout(v.Layout); err != nil {
		errs.add("conversion.layout", "unknown layout %q (valid: %s)", v.Layout, strings.Join(keymap.Layouts(), ", "))
	}
	if v.HighlightSeconds < 0 {
		errs.add("conversion.highlight_seconds", "highlight duration cannot be negative")
	}
	if v.HighlightColor != "" && !hexColor.MatchString(v.HighlightColor) {
		errs.add("conversion.highlight_color", "color must look like #RRGGBB, got %q", v.HighlightColor)
	}
	if v.Similarity < 0 || v.Similarity > 1 {
		errs.add("conversion.similarity", "value must be between 0 and 1")
	}
	if v.SnapModulus < 0 {
		errs.add("conversion.snap_modulus", "snap modulus cannot be negative")
	}
	if v.SnapModulus > 0 && v.SnapThreshold >= v.SnapModulus {
		errs.add("conversion.snap_threshold", "threshold %d must be below the modulus %d", v.SnapThreshold, v.SnapModulus)
	}
	return errs
}

func validateCapture(v *CaptureConfig) ValidationErrors {
	var errs ValidationErrors

	known := false
	for _, b := range capture.Backends() {
		if v.Backend == b {
			known = true
		}
	}
	if !known {
		errs.add("capture.backend", "unknown backend %q (valid: %s)", v.Backend, strings.Join(capture.Backends(), ", "))
	}
	if v.Async && v.QueueDepth < 1 {
		errs.add("capture.queue_depth", "queue depth must be at least 1 when async is on")
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs.add("storage.path", "database path is required when storage is enabled")
	}
	if s.RetentionDays < 0 {
		errs.add("storage.retention_days", "retention cannot be negative")
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs.add("logging.level", "invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		errs.add("logging.format", "invalid log format: %s (valid: text, json)", l.Format)
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs.add("logging.file_path", "file path is required when output is '%s'", l.Output)
		}
	default:
		errs.add("logging.output", "invalid log output: %q (valid: stdout, stderr, file, both)", l.Output)
	}

	if l.MaxSizeMB < 1 {
		errs.add("logging.max_size_mb", "max size must be at least 1 MB")
	}
	if l.MaxBackups < 0 {
		errs.add("logging.max_backups", "max backups cannot be negative")
	}
	if l.MaxAgeDays < 0 {
		errs.add("logging.max_age_days", "max age cannot be negative")
	}
	return errs
}
