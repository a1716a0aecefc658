package main

import (
	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProvider(cmd, db.Migrate)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether each is applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProvider(cmd, db.MigrationStatus)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
