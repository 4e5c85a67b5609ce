// Package id implements the idbctl id commands.
package id

import "github.com/spf13/cobra"

// Cmd is the parent command for ID generation.
var Cmd = &cobra.Command{
	Use:   "id",
	Short: "Generate IDs",
	Long: `Generate IDs for a configured key.

These commands hit the same endpoints applications use, so they are
handy for smoke tests. The admin token authorizes them without a
per-key token.`,
}

func init() {
	Cmd.AddCommand(incrementCmd)
	Cmd.AddCommand(snowflakeCmd)
	Cmd.AddCommand(formattedCmd)
}
