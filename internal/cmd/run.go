package cmd

import (
	"github.com/Bandokii/fahrpc/internal/app"
	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring loop",
	Long: `Start the FAHRPC monitoring loop.

The loop polls the Folding@Home web control endpoint every
runtime.update_interval and records its lifecycle in the runtime log.
It stops cleanly on Ctrl+C or SIGTERM. This is also what 'fahrpc' does
without a subcommand.`,
	RunE: runRun,
}

var (
	runNoWatch   bool
	runNoConsole bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&runNoWatch, "no-watch", false, "Do not reload the log level when the config file changes")
		c.Flags().BoolVar(&runNoConsole, "no-console", false, "Do not mirror severe events to the terminal")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := app.Start(app.Options{
		ConfigFile: configFilePath(),
		ConfigDir:  config.ConfigDir(),
		Watch:      !runNoWatch,
		Console:    !runNoConsole,
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return a.Run(cmd.Context())
}
