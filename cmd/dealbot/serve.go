package main

import (
	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/config"
	"github.com/sakif/dealbot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		// Start blocks until SIGINT/SIGTERM and closes the pool on return.
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (env PORT)")
	serveCmd.Flags().Bool("auto-migrate", true, "apply migrations at startup (env AUTO_MIGRATE)")
	_ = v.BindPFlag(config.KeyPort, serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag(config.KeyAutoMigrate, serveCmd.Flags().Lookup("auto-migrate"))
}
