package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/config"
)

// Set by PersistentPreRunE so every subcommand can use them.
var (
	v      = config.NewViper()
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "dealbot",
	Short:        "DealBot dashboard server and tools",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	// Flags only win when given explicitly; otherwise viper falls through
	// to the environment and then to the defaults.
	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL URL (env DATABASE_URL); empty uses SQLite")
	flags.String("sqlite-path", "", "SQLite file (env DEAL_TRACKER_DB)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	_ = v.BindPFlag(config.KeyDatabaseURL, flags.Lookup("database-url"))
	_ = v.BindPFlag(config.KeySQLitePath, flags.Lookup("sqlite-path"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

// newLogger builds the process logger: text to stdout at the configured level.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
