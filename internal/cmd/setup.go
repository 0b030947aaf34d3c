package cmd

import (
	"fmt"

	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/Bandokii/fahrpc/internal/setup"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare this machine to run FAHRPC",
	Long: `Prepare this machine to run FAHRPC.

Creates the user config directory, writes a default config file if none
exists and checks that the runtime log can be written. Every step is
recorded in the setup log next to the installed binary.`,
	RunE: runSetup,
}

var (
	setupInstallDir string
	setupForce      bool
)

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVar(&setupInstallDir, "install-dir", "", "Directory holding the binary and the setup log (default: executable directory)")
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "Overwrite an existing config file with defaults")
}

var (
	setupOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399")).Bold(true)
	setupFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
)

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := configFilePath()

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Warning: %v\nUsing default file names.\n", err)
		cfg = config.Default()
	}

	installDir := setupInstallDir
	if installDir == "" {
		installDir = config.DefaultInstallDir()
	}

	log, err := setup.NewLogger(cfg, installDir)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	res, err := setup.New(log, setup.Options{
		InstallDir: installDir,
		ConfigDir:  config.ConfigDir(),
		Config:     cfg,
		Force:      setupForce,
	}).Run(cmd.Context())

	color := isTerminalWriter(out)
	if err != nil {
		mark := "Setup failed"
		if color {
			mark = setupFailStyle.Render(mark)
		}
		_, _ = fmt.Fprintf(out, "%s, details in %s\n", mark, res.SetupLogPath)
		return err
	}

	mark := "Setup complete"
	if color {
		mark = setupOKStyle.Render(mark)
	}
	_, _ = fmt.Fprintln(out, mark)
	if res.ConfigCreated {
		_, _ = fmt.Fprintf(out, "  Config file: %s (created)\n", res.ConfigFile)
	} else {
		_, _ = fmt.Fprintf(out, "  Config file: %s (kept)\n", res.ConfigFile)
	}
	_, _ = fmt.Fprintf(out, "  Runtime log: %s\n", res.RuntimeLog)
	_, _ = fmt.Fprintf(out, "  Setup log:   %s\n", res.SetupLogPath)
	return nil
}
