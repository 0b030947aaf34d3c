package config

import (
	"time"

	"github.com/Bandokii/fahrpc/internal/logging"
	"github.com/spf13/viper"
)

// Config represents the complete FAHRPC configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Setup   SetupConfig   `mapstructure:"setup"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// LoggingConfig controls the diagnostic log
type LoggingConfig struct {
	// Enabled controls whether the runtime log file is written (default: true)
	Enabled bool `mapstructure:"enabled"`
	// MinLevel is the minimum level written: "debug", "info", "warning", "error", "critical" (default: "debug")
	MinLevel string `mapstructure:"min_level"`
	// MaxBytes is the size ceiling of the active file before rotation, 0 = never rotate (default: 10 MiB)
	MaxBytes int64 `mapstructure:"max_bytes"`
	// BackupCount is the number of rotated backups kept as .1 (newest) to .N (default: 5)
	BackupCount int `mapstructure:"backup_count"`
	// DestinationPath overrides the log file location.
	// If empty, the log is written to FileName inside the config directory.
	// Supports ~ for home directory expansion.
	DestinationPath string `mapstructure:"destination_path"`
	// FileName is the log file name used when DestinationPath is empty (default: "fah_error_log.txt")
	FileName string `mapstructure:"file_name"`
	// RotationStyle selects backup naming: "numbered" or "timestamp" (default: "numbered")
	RotationStyle string `mapstructure:"rotation_style"`
	// ConsoleLevel is the minimum level mirrored to an interactive terminal (default: "critical")
	ConsoleLevel string `mapstructure:"console_level"`
	// ConsoleColor colors the level column of the console mirror (default: true)
	ConsoleColor bool `mapstructure:"console_color"`
	// CaptureStderr appends process stderr to the log with a timestamp prefix (default: true)
	CaptureStderr bool `mapstructure:"capture_stderr"`
	// SuppressNoise drops known shutdown noise from captured stderr (default: true)
	SuppressNoise bool `mapstructure:"suppress_noise"`
	// BufferSize is the number of events held before the logger is initialized (default: 256)
	BufferSize int `mapstructure:"buffer_size"`
}

// SetupConfig controls the installer
type SetupConfig struct {
	// LogFile is the setup log file name, written next to the installed binary
	// (default: "fahrpc_setup_log.txt")
	LogFile string `mapstructure:"log_file"`
}

// RuntimeConfig controls the main loop
type RuntimeConfig struct {
	// UpdateInterval is how often the main loop polls Folding@Home (default: 15s)
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	// FAHWebURL is the Folding@Home web control endpoint (default: "http://localhost:7396")
	FAHWebURL string `mapstructure:"fah_web_url"`
	// ProbeTimeout bounds each poll request (default: 5s)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// Default file names.
const (
	DefaultLogFileName      = "fah_error_log.txt"
	DefaultSetupLogFileName = "fahrpc_setup_log.txt"
	ConfigFileName          = "config.yaml"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Enabled:         true,
			MinLevel:        "debug",
			MaxBytes:        logging.DefaultMaxBytes,
			BackupCount:     logging.DefaultBackupCount,
			DestinationPath: "", // Empty means <config dir>/<file_name>
			FileName:        DefaultLogFileName,
			RotationStyle:   logging.RotationNumbered,
			ConsoleLevel:    "critical",
			ConsoleColor:    true,
			CaptureStderr:   true,
			SuppressNoise:   true,
			BufferSize:      logging.DefaultBufferSize,
		},
		Setup: SetupConfig{
			LogFile: DefaultSetupLogFileName,
		},
		Runtime: RuntimeConfig{
			UpdateInterval: 15 * time.Second,
			FAHWebURL:      "http://localhost:7396",
			ProbeTimeout:   5 * time.Second,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.min_level", defaults.Logging.MinLevel)
	v.SetDefault("logging.max_bytes", defaults.Logging.MaxBytes)
	v.SetDefault("logging.backup_count", defaults.Logging.BackupCount)
	v.SetDefault("logging.destination_path", defaults.Logging.DestinationPath)
	v.SetDefault("logging.file_name", defaults.Logging.FileName)
	v.SetDefault("logging.rotation_style", defaults.Logging.RotationStyle)
	v.SetDefault("logging.console_level", defaults.Logging.ConsoleLevel)
	v.SetDefault("logging.console_color", defaults.Logging.ConsoleColor)
	v.SetDefault("logging.capture_stderr", defaults.Logging.CaptureStderr)
	v.SetDefault("logging.suppress_noise", defaults.Logging.SuppressNoise)
	v.SetDefault("logging.buffer_size", defaults.Logging.BufferSize)

	// Setup defaults
	v.SetDefault("setup.log_file", defaults.Setup.LogFile)

	// Runtime defaults
	v.SetDefault("runtime.update_interval", defaults.Runtime.UpdateInterval)
	v.SetDefault("runtime.fah_web_url", defaults.Runtime.FAHWebURL)
	v.SetDefault("runtime.probe_timeout", defaults.Runtime.ProbeTimeout)
}

// DefaultValue returns the default for a dotted key such as
// "logging.max_bytes", or nil for an unknown key.
func DefaultValue(key string) any {
	v := viper.New()
	SetDefaultsOn(v)
	return v.Get(key)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v into a Config struct and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// MinLevelValue returns the parsed minimum log level
func (c *LoggingConfig) MinLevelValue() logging.Level {
	return logging.ParseLevel(c.MinLevel)
}

// ConsoleLevelValue returns the parsed console mirror level
func (c *LoggingConfig) ConsoleLevelValue() logging.Level {
	return logging.ParseLevel(c.ConsoleLevel)
}

// Rotation returns the rotation settings for the runtime log sink
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxBytes:    c.MaxBytes,
		BackupCount: c.BackupCount,
	}
}
