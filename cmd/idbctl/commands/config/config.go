// Package config implements the idbctl config commands.
package config

import "github.com/spf13/cobra"

// Cmd is the parent command for key configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage key configurations",
	Long: `Manage the per-key ID configurations on the server.

A key is bound to its ID type (increment, snowflake or formatted) when
it is first configured; later updates may change parameters but never
the type.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(setIncrementCmd)
	Cmd.AddCommand(setSnowflakeCmd)
	Cmd.AddCommand(setFormattedCmd)
}
