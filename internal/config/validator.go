package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Bandokii/fahrpc/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "logging.max_bytes")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Limits enforced by Validate.
const (
	maxBackupCount     = 100
	minUpdateInterval  = time.Second
	maxPathLength      = 4096
	maxBufferSizeLimit = 1 << 16
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Setup config
	errors = append(errors, c.validateSetup()...)

	// Validate Runtime config
	errors = append(errors, c.validateRuntime()...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateLevel("logging.min_level", c.Logging.MinLevel)...)
	errors = append(errors, validateLevel("logging.console_level", c.Logging.ConsoleLevel)...)

	// Zero disables rotation
	if c.Logging.MaxBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_bytes",
			Value:   c.Logging.MaxBytes,
			Message: "must be non-negative",
		})
	}

	if c.Logging.BackupCount < 0 || c.Logging.BackupCount > maxBackupCount {
		errors = append(errors, ValidationError{
			Field:   "logging.backup_count",
			Value:   c.Logging.BackupCount,
			Message: fmt.Sprintf("must be between 0 and %d", maxBackupCount),
		})
	}

	if c.Logging.RotationStyle != "" && !slices.Contains(logging.ValidRotationStyles(), c.Logging.RotationStyle) {
		errors = append(errors, ValidationError{
			Field:   "logging.rotation_style",
			Value:   c.Logging.RotationStyle,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidRotationStyles(), ", ")),
		})
	}

	if c.Logging.BufferSize < 0 || c.Logging.BufferSize > maxBufferSizeLimit {
		errors = append(errors, ValidationError{
			Field:   "logging.buffer_size",
			Value:   c.Logging.BufferSize,
			Message: fmt.Sprintf("must be between 0 and %d", maxBufferSizeLimit),
		})
	}

	errors = append(errors, validatePath("logging.destination_path", c.Logging.DestinationPath)...)
	errors = append(errors, validateFileName("logging.file_name", c.Logging.FileName)...)

	return errors
}

// validateSetup validates the SetupConfig
func (c *Config) validateSetup() []ValidationError {
	return validateFileName("setup.log_file", c.Setup.LogFile)
}

// validateRuntime validates the RuntimeConfig
func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	if c.Runtime.UpdateInterval < minUpdateInterval {
		errors = append(errors, ValidationError{
			Field:   "runtime.update_interval",
			Value:   c.Runtime.UpdateInterval,
			Message: fmt.Sprintf("must be at least %s", minUpdateInterval),
		})
	}

	if c.Runtime.ProbeTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.probe_timeout",
			Value:   c.Runtime.ProbeTimeout,
			Message: "must be positive",
		})
	}

	if c.Runtime.FAHWebURL != "" {
		u, err := url.Parse(c.Runtime.FAHWebURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "runtime.fah_web_url",
				Value:   c.Runtime.FAHWebURL,
				Message: "must be an absolute http or https URL",
			})
		}
	}

	return errors
}

func validateLevel(field, value string) []ValidationError {
	if value == "" {
		return nil
	}
	if _, ok := logging.LookupLevel(value); !ok {
		return []ValidationError{{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}

func validatePath(field, path string) []ValidationError {
	var errors []ValidationError
	if path == "" {
		return nil
	}

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	// Reasonable path length limit (most filesystems have limits around 4096)
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}

func validateFileName(field, name string) []ValidationError {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return []ValidationError{{
			Field:   field,
			Value:   name,
			Message: "must be a file name, not a path",
		}}
	}
	return validatePath(field, name)
}
