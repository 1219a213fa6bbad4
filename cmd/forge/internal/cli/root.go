// Package cli assembles forge's subcommands the way smidr's
// internal/cli/root.go wires up its build/client command tree: a
// package-level rootCmd with persistent flags bound to viper, and one
// New() per subcommand package added via AddCommand.
package cli

import (
	"fmt"

	"github.com/forgeci/forge/cmd/forge/internal/cli/serve"
	"github.com/forgeci/forge/cmd/forge/internal/cli/status"
	"github.com/forgeci/forge/cmd/forge/internal/cli/submit"
	"github.com/forgeci/forge/cmd/forge/internal/cli/tail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	apiAddr string
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Client and daemon for the forge build queue",
	Long: `forge submits build requests to a forged daemon, tails their
output while they run, and reports recorded outcomes once they finish.
forge serve runs the daemon itself.`,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("forge: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $FORGE_CONFIG or ~/.forge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:3718", "forged API base URL")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	viper.SetEnvPrefix("FORGE")
	viper.AutomaticEnv()

	rootCmd.AddCommand(submit.New())
	rootCmd.AddCommand(status.New())
	rootCmd.AddCommand(tail.New())
	rootCmd.AddCommand(serve.New())
}
