// Package token implements the idbctl token commands.
package token

import "github.com/spf13/cobra"

// Cmd is the parent command for token management.
var Cmd = &cobra.Command{
	Use:   "token",
	Short: "Manage per-key tokens",
	Long: `Manage the per-key tokens that authorize ID generation.

A token is shown in plaintext exactly once, when it is first issued.
Only its hash is stored server-side, so a lost token cannot be
recovered; rotate it with 'idbctl token reset' instead.`,
}

func init() {
	Cmd.AddCommand(issueCmd)
	Cmd.AddCommand(resetCmd)
}
