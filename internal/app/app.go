// Package app is the runtime composition root of fahrpc. It loads the
// configuration, builds the diagnostic logger with its sinks, captures
// stderr into the runtime log and runs the monitoring loop until a signal
// or context cancellation stops it.
package app

import (
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/Bandokii/fahrpc/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const separator = "================================================================================"

// Options configures an App.
type Options struct {
	// ConfigFile is read at startup. A missing file means defaults.
	ConfigFile string
	// ConfigDir anchors a relative or empty log destination.
	ConfigDir string
	// Poller checks Folding@Home each tick. Defaults to an HTTPPoller on
	// runtime.fah_web_url.
	Poller Poller
	// Signals overrides the OS signal channel.
	Signals <-chan os.Signal
	// Stderr receives rotation failures and sink fallback output. It must
	// not be the captured stream. Defaults to the process stderr at Start.
	Stderr io.Writer
	// Watch reloads logging.min_level when the config file changes.
	Watch bool
	// Console mirrors events to an interactive terminal.
	Console bool
}

// App owns the runtime logger and everything attached to it.
type App struct {
	opts   Options
	cfg    *config.Config
	log    *logging.Logger
	sink   *logging.Sink
	poller Poller
	runID  string

	restoreStderr func()
	restoreSlog   func()
	crashPath     string
	closeOnce     sync.Once
	closeErr      error

	fahLost bool
}

// Start loads the configuration and initializes the runtime logger. Events
// logged while loading are held in the pre-init buffer and written once the
// sinks are attached.
func Start(opts Options) (*App, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir = config.ConfigDir()
	}

	cfg, report := loadConfig(opts.ConfigFile)
	a := &App{
		opts:  opts,
		cfg:   cfg,
		log:   logging.New(logging.WithBufferSize(cfg.Logging.BufferSize)),
		runID: uuid.New().String(),
	}
	// Held in the pre-init buffer until the sinks exist.
	report(a.log.WithPhase(logging.PhaseConfig))

	if err := a.initLogger(); err != nil {
		return nil, err
	}
	a.banner()
	a.routeSlog()

	if a.cfg.Logging.Enabled && a.cfg.Logging.CaptureStderr {
		a.captureStderr()
	}
	if opts.Watch {
		a.watchConfig()
	}

	a.poller = opts.Poller
	if a.poller == nil {
		a.poller = NewHTTPPoller(a.cfg.Runtime.FAHWebURL, a.cfg.Runtime.ProbeTimeout)
	}
	return a, nil
}

// loadConfig reads path and returns the effective configuration with a
// function that records how it was obtained.
func loadConfig(path string) (*config.Config, func(*logging.Logger)) {
	cfg, err := config.LoadFile(path)
	switch {
	case err != nil:
		return config.Default(), func(log *logging.Logger) {
			log.Warningf("Configuration unusable, continuing with defaults: %v", err)
		}
	case path == "":
		return cfg, func(log *logging.Logger) {
			log.Info("No config file given, using defaults")
		}
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return cfg, func(log *logging.Logger) {
			log.Infof("No config file at %s, using defaults", path)
		}
	}
	return cfg, func(log *logging.Logger) {
		log.Infof("Configuration loaded from: %s", path)
	}
}

func (a *App) initLogger() error {
	lc := &a.cfg.Logging

	var sinks []logging.EventSink
	if lc.Enabled {
		path := lc.LogPath(a.opts.ConfigDir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			_, _ = fmt.Fprintf(a.opts.Stderr, "fahrpc: failed to create log directory: %v\n", err)
		}

		rotation := lc.Rotation()
		stderr := a.opts.Stderr
		rotation.OnError = func(err error) {
			_, _ = fmt.Fprintf(stderr, "fahrpc: log rotation failed: %v\n", err)
		}
		a.sink = logging.NewRotatingSink(path, lc.RotationStyle, rotation,
			logging.WithFallback(stderr))
		sinks = append(sinks, a.sink)
	}

	if a.opts.Console {
		if c := logging.NewTerminalConsole(lc.ConsoleLevelValue(), lc.ConsoleColor); c != nil {
			sinks = append(sinks, c)
		}
	}

	return a.log.Init(lc.MinLevelValue(), sinks...)
}

func (a *App) banner() {
	lc := &a.cfg.Logging

	a.log.Info(separator)
	a.log.Info("FAHRPC Logging Initialized")
	a.log.Info(separator)
	a.log.Debugf("Run ID: %s", a.runID)
	if a.sink != nil {
		a.log.Debugf("Log file: %s", a.sink.Path())
	}
	if lc.MaxBytes > 0 {
		a.log.Debugf("Max file size: %s with %d backups", formatBytes(lc.MaxBytes), lc.BackupCount)
	} else {
		a.log.Debug("Max file size: unlimited (rotation disabled)")
	}
	a.log.Debugf("Log level: %s", lc.MinLevelValue())
	a.log.Info(separator)

	a.log.Info(separator)
	a.log.Info("FAHRPC Application Starting")
	a.log.Info(separator)
	a.log.Infof("Platform: %s/%s", runtime.GOOS, runtime.GOARCH)
	a.log.Infof("Go: %s", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		a.log.Infof("Executable: %s", exe)
	}
}

// routeSlog makes the runtime logger the slog default. The standard log
// package follows slog's default, so both end up in the runtime log.
func (a *App) routeSlog() {
	prev, prevOut, prevFlags := slog.Default(), stdlog.Writer(), stdlog.Flags()
	slog.SetDefault(slog.New(logging.NewHandler(a.log)))
	a.restoreSlog = func() {
		slog.SetDefault(prev)
		stdlog.SetOutput(prevOut)
		stdlog.SetFlags(prevFlags)
	}
	a.log.WithPhase(logging.PhaseStartup).Debug("Routing log/slog output into the runtime log")
}

func (a *App) captureStderr() {
	log := a.log.WithPhase(logging.PhaseStartup)

	var patterns []string
	if a.cfg.Logging.SuppressNoise {
		patterns = logging.DefaultNoisePatterns
	}
	restore, err := logging.Capture(logging.NewStderrWriter(a.sink, patterns))
	if err != nil {
		log.Exception(err, "Failed to capture stderr")
		return
	}
	a.restoreStderr = restore
	log.Debug("Capturing stderr into the runtime log")

	// The runtime keeps its own handle to the crash file, so it must not be
	// a file the sink renames.
	path := crashLogPath(a.sink.Path())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		log.Warningf("Crash output stays on stderr: %v", err)
		return
	}
	defer func() { _ = f.Close() }()
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		log.Warningf("Crash output stays on stderr: %v", err)
		return
	}
	a.crashPath = path
	log.Debugf("Crash output goes to %s", path)
}

// crashLogPath places the crash file next to the runtime log:
// fah_error_log.txt gives fah_error_log_crash.txt.
func crashLogPath(logPath string) string {
	ext := filepath.Ext(logPath)
	return strings.TrimSuffix(logPath, ext) + "_crash" + ext
}

// CrashLogPath returns the file receiving fatal runtime output, or "" when
// crash output is not redirected.
func (a *App) CrashLogPath() string {
	return a.crashPath
}

func (a *App) watchConfig() {
	log := a.log.WithPhase(logging.PhaseConfig)
	if _, err := os.Stat(a.opts.ConfigFile); err != nil {
		log.Debugf("Not watching %s: %v", a.opts.ConfigFile, err)
		return
	}

	v := config.NewViper()
	v.SetConfigFile(a.opts.ConfigFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		log.Warningf("Not watching config file: %v", err)
		return
	}
	config.Watch(v, a.applyConfig(v))
	log.Debugf("Watching %s for changes", a.opts.ConfigFile)
}

func (a *App) applyConfig(v *viper.Viper) func(*config.Config, error) {
	log := a.log.WithPhase(logging.PhaseConfig)
	return func(cfg *config.Config, err error) {
		if err != nil {
			log.Warningf("Ignoring config change from %s: %v", v.ConfigFileUsed(), err)
			return
		}
		a.Reload(cfg)
	}
}

// Reload applies the live-adjustable settings of cfg.
func (a *App) Reload(cfg *config.Config) {
	log := a.log.WithPhase(logging.PhaseConfig)
	old, level := a.log.Level(), cfg.Logging.MinLevelValue()
	if level == old {
		return
	}
	// The change is recorded under whichever of the two levels is lower.
	if level < old {
		a.log.SetLevel(level)
		log.Infof("Log level changed from %s to %s", old, level)
		return
	}
	log.Infof("Log level changed from %s to %s", old, level)
	a.log.SetLevel(level)
}

// Logger returns the runtime logger.
func (a *App) Logger() *logging.Logger {
	return a.log
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// RunID identifies this process in the runtime log.
func (a *App) RunID() string {
	return a.runID
}

// LogPath returns the runtime log path, or "" when file logging is off.
func (a *App) LogPath() string {
	if a.sink == nil {
		return ""
	}
	return a.sink.Path()
}

// Close restores stderr and closes the logger. It is safe to call more
// than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.restoreStderr != nil {
			a.restoreStderr()
		}
		if a.restoreSlog != nil {
			a.restoreSlog()
		}
		if a.crashPath != "" {
			_ = debug.SetCrashOutput(nil, debug.CrashOptions{})
		}
		a.log.WithPhase(logging.PhaseMain).Info("Application exited")
		a.closeErr = a.log.Close()
	})
	return a.closeErr
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	if n >= mb {
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/mb), ".0") + " MB"
	}
	return fmt.Sprintf("%d bytes", n)
}
