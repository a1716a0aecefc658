package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/dealbot/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Print the bcrypt hash of an API key for LINK_API_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
