// Package main is the dealbot command.
//
//	dealbot serve            run the dashboard HTTP server
//	dealbot link <phone>     print a magic link for a user (what the bot does)
//	dealbot migrate up       apply database migrations
//	dealbot migrate status   list migrations and whether they are applied
//	dealbot hash-key <key>   print the bcrypt hash to put in LINK_API_KEY_HASH
//
// Configuration comes from the environment (see internal/config); a few
// settings can also be given as flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
