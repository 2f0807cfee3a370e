// Package cli implements the notifier command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/stormlightlabs/notifier/common/logging"
	"github.com/stormlightlabs/notifier/internal/config"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "GitHub to Discord event relay",
	Long: `notifier receives GitHub webhook deliveries, verifies their signatures and
relays each event as a message to a Discord channel through a bot session.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/notifier/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default: ./.env when present)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
}
