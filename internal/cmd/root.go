package cmd

import (
	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "fahrpc",
	Short: "Folding@Home Discord Rich Presence",
	Long: `FAHRPC mirrors Folding@Home progress into Discord Rich Presence.

Running fahrpc without a subcommand starts the monitoring loop. Diagnostic
output goes to the runtime log in the user config directory; use
'fahrpc logs' to read it.`,
	SilenceUsage: true,
	RunE:         runRun,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is <user config dir>/fahrpc/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	// e.g., FAHRPC_LOGGING_MIN_LEVEL for logging.min_level
	config.BindEnv(viper.GetViper())

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// configFilePath returns the config file in effect: the --config flag, the
// file viper found, or the default location.
func configFilePath() string {
	if f := viper.GetString("config"); f != "" {
		return f
	}
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return config.ConfigFile()
}
