package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify FAHRPC configuration",
	Long: `View or modify FAHRPC configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  fahrpc config set logging.min_level info
  fahrpc config set logging.max_bytes 5242880
  fahrpc config set logging.backup_count 3
  fahrpc config set runtime.update_interval 30s

The new value is validated together with the rest of the file before
anything is written. Run 'fahrpc config show' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file in the user config directory with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(out, "Configuration is invalid, defaults are in effect:\n  %v\n\n", err)
		cfg = config.Default()
	}

	_, _ = fmt.Fprintln(out, "Current configuration:")
	_, _ = fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		_, _ = fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		_, _ = fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	_, _ = fmt.Fprintf(out, "Runtime log: %s\n", cfg.Logging.LogPath(config.ConfigDir()))
	_, _ = fmt.Fprintln(out)

	// Logging settings
	_, _ = fmt.Fprintln(out, "logging:")
	_, _ = fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	_, _ = fmt.Fprintf(out, "  min_level: %s\n", cfg.Logging.MinLevel)
	_, _ = fmt.Fprintf(out, "  max_bytes: %d\n", cfg.Logging.MaxBytes)
	_, _ = fmt.Fprintf(out, "  backup_count: %d\n", cfg.Logging.BackupCount)
	_, _ = fmt.Fprintf(out, "  destination_path: %q\n", cfg.Logging.DestinationPath)
	_, _ = fmt.Fprintf(out, "  file_name: %s\n", cfg.Logging.FileName)
	_, _ = fmt.Fprintf(out, "  rotation_style: %s\n", cfg.Logging.RotationStyle)
	_, _ = fmt.Fprintf(out, "  console_level: %s\n", cfg.Logging.ConsoleLevel)
	_, _ = fmt.Fprintf(out, "  console_color: %v\n", cfg.Logging.ConsoleColor)
	_, _ = fmt.Fprintf(out, "  capture_stderr: %v\n", cfg.Logging.CaptureStderr)
	_, _ = fmt.Fprintf(out, "  suppress_noise: %v\n", cfg.Logging.SuppressNoise)
	_, _ = fmt.Fprintf(out, "  buffer_size: %d\n", cfg.Logging.BufferSize)

	// Setup settings
	_, _ = fmt.Fprintln(out, "setup:")
	_, _ = fmt.Fprintf(out, "  log_file: %s\n", cfg.Setup.LogFile)

	// Runtime settings
	_, _ = fmt.Fprintln(out, "runtime:")
	_, _ = fmt.Fprintf(out, "  update_interval: %s\n", cfg.Runtime.UpdateInterval)
	_, _ = fmt.Fprintf(out, "  fah_web_url: %s\n", cfg.Runtime.FAHWebURL)
	_, _ = fmt.Fprintf(out, "  probe_timeout: %s\n", cfg.Runtime.ProbeTimeout)

	return nil
}

// configKeys returns every settable key, sorted
func configKeys(v *viper.Viper) []string {
	var keys []string
	for _, k := range v.AllKeys() {
		if strings.Contains(k, ".") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// parseConfigValue converts value to the type of the key's default
func parseConfigValue(key, value string, def any) (any, error) {
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 15s", key)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]
	configFile := configFilePath()

	// A private viper keeps a rejected value out of the process-wide config.
	v := config.NewViper()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	keys := configKeys(v)
	idx := sort.SearchStrings(keys, key)
	if idx == len(keys) || keys[idx] != key {
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(keys, ", "))
	}

	typedValue, err := parseConfigValue(key, value, config.DefaultValue(key))
	if err != nil {
		return err
	}
	v.Set(key, typedValue)

	if _, err := config.LoadFrom(v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Durations are written in their readable form, not as nanoseconds.
	for _, k := range keys {
		if _, ok := config.DefaultValue(k).(time.Duration); ok {
			v.Set(k, v.GetDuration(k).String())
		}
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write to config file
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := configFilePath()

	if err := config.WriteDefault(configFile); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config file already exists at %s\nUse 'fahrpc config set' to modify values", configFile)
		}
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created config file at %s\n", configFile)
	_, _ = fmt.Fprintln(out, "Edit this file to customize FAHRPC's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		if _, err := os.Stat(viper.ConfigFileUsed()); err == nil {
			_, _ = fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
		} else {
			_, _ = fmt.Fprintf(out, "Config path: %s (not created)\n", viper.ConfigFileUsed())
		}
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	_, _ = fmt.Fprintf(out, "\nConfig directory: %s\n", config.ConfigDir())
	if root, ok := config.ProjectRoot(); ok {
		_, _ = fmt.Fprintf(out, "  (project root %s: go.mod and config.yaml present)\n", root)
	}
	_, _ = fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_LOGGING_MIN_LEVEL)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
