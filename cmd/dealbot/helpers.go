package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/db"
)

// withProvider opens the configured database, runs fn and closes it.
func withProvider(cmd *cobra.Command, fn func(context.Context, *db.Provider, *slog.Logger) error) error {
	ctx := cmd.Context()

	provider, err := db.Open(ctx, cfg.DB())
	if err != nil {
		return err
	}
	defer provider.Close()

	logger.Info("database opened", slog.String("backend", provider.Dialect().Name()))
	return fn(ctx, provider, logger)
}
