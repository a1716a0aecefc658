package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/db"
	"github.com/sakif/dealbot/internal/repository/sqlstore"
	"github.com/sakif/dealbot/internal/service"
)

var linkCmd = &cobra.Command{
	Use:   "link <phone>",
	Short: "Issue a magic link for a user and print it",
	Long: `Issue a magic link for the user with the given phone number, exactly as
POST /api/generate-link would, and print the URL. Useful when the bot is
down or for support.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		provider, err := db.Open(ctx, cfg.DB())
		if err != nil {
			return err
		}
		defer provider.Close()

		store := sqlstore.New(provider)
		links := service.NewLinkService(store, store, store, cfg.DashboardURL, logger)

		link, err := links.IssueForPhone(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), link.URL)
		fmt.Fprintf(cmd.ErrOrStderr(), "valid for %s\n", link.ExpiresIn)
		return nil
	},
}
