// Package setup prepares a machine to run fahrpc: it resolves the install
// and config directories, writes a default config file and checks that the
// runtime log can be written. Every step is recorded in the setup log next
// to the installed binary, using the locale timestamp layout.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Bandokii/fahrpc/internal/config"
	fahrpcerrors "github.com/Bandokii/fahrpc/internal/errors"
	"github.com/Bandokii/fahrpc/internal/logging"
)

// Options configures an installer run.
type Options struct {
	// InstallDir holds the binary and the setup log.
	InstallDir string
	// ConfigDir receives config.yaml and the runtime log.
	ConfigDir string
	// Config supplies the log file names. Defaults are used when nil.
	Config *config.Config
	// Force overwrites an existing config file with defaults.
	Force bool
}

// Step is one named installer action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result summarizes a completed run.
type Result struct {
	SetupLogPath  string
	ConfigFile    string
	RuntimeLog    string
	ConfigCreated bool
	Duration      time.Duration
}

// Installer runs the setup steps.
type Installer struct {
	opts   Options
	log    *logging.Logger
	result Result
}

// New returns an Installer logging to log. The caller owns log and is
// expected to have attached a setup-log sink (see NewLogger).
func New(log *logging.Logger, opts Options) *Installer {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Installer{
		opts: opts,
		log:  log.WithPhase(logging.PhaseSetup),
		result: Result{
			SetupLogPath: opts.Config.Setup.SetupLogPath(opts.InstallDir),
			ConfigFile:   filepath.Join(opts.ConfigDir, config.ConfigFileName),
		},
	}
}

// NewLogger returns an initialized logger writing to the setup log in
// installDir with the locale layout and no rotation.
func NewLogger(cfg *config.Config, installDir string) (*logging.Logger, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logging.New()
	sink := logging.NewFileSink(cfg.Setup.SetupLogPath(installDir),
		logging.WithTimeLayout(logging.SetupTimeLayout))
	if err := log.Init(logging.LevelDebug, sink); err != nil {
		return nil, err
	}
	return log, nil
}

// Steps returns the installer steps in execution order.
func (i *Installer) Steps() []Step {
	return []Step{
		{Name: "resolve directories", Run: i.resolveDirs},
		{Name: "create config directory", Run: i.createConfigDir},
		{Name: "write default config", Run: i.writeConfig},
		{Name: "verify runtime log", Run: i.verifyRuntimeLog},
	}
}

// Run executes every step in order and stops at the first failure, which is
// returned as a *errors.SetupError.
func (i *Installer) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	steps := i.Steps()

	i.log.Info("Setup started")
	i.log.Infof("Install directory: %s", i.opts.InstallDir)

	for n, step := range steps {
		if err := ctx.Err(); err != nil {
			serr := fahrpcerrors.NewSetupError(step.Name, "setup cancelled", err)
			i.log.Warningf("Step %d/%d: %s skipped: %v", n+1, len(steps), step.Name, err)
			return i.result, serr
		}

		i.log.Infof("Step %d/%d: %s", n+1, len(steps), step.Name)
		if err := step.Run(ctx); err != nil {
			serr := fahrpcerrors.NewSetupError(step.Name, "step failed", err)
			i.log.Exceptionf(serr, "Step %d/%d: %s failed: %v", n+1, len(steps), step.Name, err)
			i.log.Critical("Setup failed")
			return i.result, serr
		}
		i.log.Debugf("Step %d/%d: %s completed", n+1, len(steps), step.Name)
	}

	i.result.Duration = time.Since(start)
	i.log.Infof("Setup completed successfully in %s", i.result.Duration.Round(time.Millisecond))
	return i.result, nil
}

func (i *Installer) resolveDirs(ctx context.Context) error {
	if i.opts.InstallDir == "" {
		return errors.New("install directory is empty")
	}
	if i.opts.ConfigDir == "" {
		return errors.New("config directory is empty")
	}

	for _, dir := range []*string{&i.opts.InstallDir, &i.opts.ConfigDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", *dir, err)
		}
		*dir = abs
	}
	i.result.SetupLogPath = i.opts.Config.Setup.SetupLogPath(i.opts.InstallDir)
	i.result.ConfigFile = filepath.Join(i.opts.ConfigDir, config.ConfigFileName)
	i.result.RuntimeLog = i.opts.Config.Logging.LogPath(i.opts.ConfigDir)

	i.log.Debugf("Config directory: %s", i.opts.ConfigDir)
	i.log.Debugf("Config file: %s", i.result.ConfigFile)
	i.log.Debugf("Runtime log: %s", i.result.RuntimeLog)
	return nil
}

func (i *Installer) createConfigDir(ctx context.Context) error {
	if err := os.MkdirAll(i.opts.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

func (i *Installer) writeConfig(ctx context.Context) error {
	path := i.result.ConfigFile

	if i.opts.Force {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to replace config file: %w", err)
		}
	} else if _, err := os.Stat(path); err == nil {
		i.log.Infof("Config file already exists, keeping it: %s", path)
		if _, err := config.LoadFile(path); err != nil {
			i.log.Warningf("Existing config file is invalid, defaults will be used at runtime: %v", err)
		}
		return nil
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	i.result.ConfigCreated = true
	i.log.Infof("Wrote default config: %s", path)
	return nil
}

func (i *Installer) verifyRuntimeLog(ctx context.Context) error {
	path := i.result.RuntimeLog
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", fahrpcerrors.ErrLogUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", fahrpcerrors.ErrLogUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", fahrpcerrors.ErrLogUnavailable, err)
	}

	if gens, err := logging.Generations(path); err == nil && len(gens) > 1 {
		i.log.Debugf("Runtime log has %d backup(s)", len(gens)-1)
	}
	i.log.Infof("Runtime log is writable: %s", path)
	return nil
}
