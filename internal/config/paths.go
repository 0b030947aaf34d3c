package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the directory name used under the platform config location.
const AppName = "fahrpc"

// vendorName is the extra path level used on Windows.
const vendorName = "Bandokii"

// ConfigDir returns the path to the user's config directory.
//
// When the working directory is a development checkout (it contains both
// go.mod and config.yaml), that directory is used instead so a local run
// keeps its log next to the source.
func ConfigDir() string {
	if root, ok := ProjectRoot(); ok {
		return root
	}
	home, _ := os.UserHomeDir()
	return platformConfigDir(runtime.GOOS, os.Getenv, home)
}

// platformConfigDir resolves the per-user config directory for goos.
func platformConfigDir(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, vendorName, AppName)
		}
		if home != "" {
			return filepath.Join(home, "AppData", "Local", vendorName, AppName)
		}
	case "darwin":
		if home != "" {
			return filepath.Join(home, "Library", "Application Support", AppName)
		}
	default:
		// Check XDG_CONFIG_HOME first
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName)
		}
		if home != "" {
			return filepath.Join(home, ".config", AppName)
		}
	}
	return "." + AppName
}

// ProjectRoot reports the working directory when it is a development
// checkout.
func ProjectRoot() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return wd, isProjectRoot(wd)
}

func isProjectRoot(dir string) bool {
	for _, name := range []string{"go.mod", ConfigFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// LogPath returns the resolved runtime log path.
// If DestinationPath is empty, it returns FileName inside configDir.
// If DestinationPath starts with ~, it expands to the user's home directory.
// If DestinationPath is a relative path, it's resolved relative to configDir.
func (c *LoggingConfig) LogPath(configDir string) string {
	if c.DestinationPath == "" {
		name := c.FileName
		if name == "" {
			name = DefaultLogFileName
		}
		return filepath.Join(configDir, name)
	}

	path := expandHome(c.DestinationPath)

	// If relative path, resolve relative to configDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}

	return path
}

// SetupLogPath returns the setup log path inside installDir.
func (c *SetupConfig) SetupLogPath(installDir string) string {
	name := c.LogFile
	if name == "" {
		name = DefaultSetupLogFileName
	}
	return filepath.Join(installDir, name)
}

// DefaultInstallDir returns the directory holding the running executable,
// or the working directory if that cannot be determined.
func DefaultInstallDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
