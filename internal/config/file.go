package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	fahrpcerrors "github.com/Bandokii/fahrpc/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides,
// e.g. FAHRPC_LOGGING_MIN_LEVEL for logging.min_level.
const EnvPrefix = "FAHRPC"

// NewViper returns a viper instance with defaults and environment
// overrides registered.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaultsOn(v)
	BindEnv(v)
	return v
}

// BindEnv enables FAHRPC_* environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadFile reads and validates the config file at path. A missing file is
// not an error, and neither is an empty path: defaults and environment
// overrides apply. Read, decode and
// validation failures are returned as *errors.ConfigError.
func LoadFile(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fahrpcerrors.NewConfigError("failed to read config file", err).WithPath(path)
		}
	}

	cfg, err := LoadFrom(v)
	if err != nil {
		cerr := fahrpcerrors.NewConfigError("invalid configuration", err).WithPath(path)
		var verrs ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			cerr = cerr.WithKey(verrs[0].Field)
		}
		return nil, cerr
	}
	return cfg, nil
}

// Watch re-loads the configuration whenever the file read by v changes and
// passes the result to onChange. v must have read a config file already.
// The watch runs for the life of the process.
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := LoadFrom(v)
		onChange(cfg, err)
	})
	v.WatchConfig()
}

// WriteDefault creates a commented default config file at path. It fails if
// the file already exists.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config file already exists at %s: %w", path, err)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if _, err := f.WriteString(DefaultFileContent()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// DefaultFileContent returns the commented default config file.
func DefaultFileContent() string {
	d := Default()
	return fmt.Sprintf(`# FAHRPC Configuration

# Diagnostic log settings
logging:
  # Write the runtime log file
  enabled: %t
  # Minimum level written: debug, info, warning, error, critical
  min_level: %s
  # Rotate the active file before a write would exceed this many bytes (0 = never)
  max_bytes: %d
  # Number of rotated backups to keep (.1 newest ... .N oldest)
  backup_count: %d
  # Full log file path (empty = <config dir>/<file_name>)
  destination_path: ""
  file_name: %s
  # Backup naming: numbered or timestamp
  rotation_style: %s
  # Minimum level mirrored to an interactive terminal
  console_level: %s
  console_color: %t
  # Append process stderr to the log with a timestamp prefix
  capture_stderr: %t
  # Drop known shutdown noise from captured stderr
  suppress_noise: %t
  # Events held before the log file is ready
  buffer_size: %d

# Installer settings
setup:
  # Written next to the installed binary
  log_file: %s

# Main loop settings
runtime:
  # How often to poll Folding@Home
  update_interval: %s
  # Folding@Home web control endpoint
  fah_web_url: %s
  # Timeout for each poll
  probe_timeout: %s
`,
		d.Logging.Enabled,
		d.Logging.MinLevel,
		d.Logging.MaxBytes,
		d.Logging.BackupCount,
		d.Logging.FileName,
		d.Logging.RotationStyle,
		d.Logging.ConsoleLevel,
		d.Logging.ConsoleColor,
		d.Logging.CaptureStderr,
		d.Logging.SuppressNoise,
		d.Logging.BufferSize,
		d.Setup.LogFile,
		d.Runtime.UpdateInterval,
		d.Runtime.FAHWebURL,
		d.Runtime.ProbeTimeout,
	)
}
