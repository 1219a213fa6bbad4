// Package serve implements "forge serve", running the daemon
// in-process — the same entrypoint cmd/forged/main.go uses, exposed as
// a subcommand so a single forge binary can act as both client and
// server.
package serve

import (
	forge "github.com/forgeci/forge"
	"github.com/forgeci/forge/internal/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forge build queue daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := forge.InterruptibleContext()
		defer cancel()
		if err := daemon.Run(ctx, viper.GetString("config")); err != nil {
			return err
		}
		return forge.RunAtExit()
	},
}

func New() *cobra.Command {
	return serveCmd
}
