// Package commands implements the idbctl CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	configcmd "github.com/marmos91/idbuilder/cmd/idbctl/commands/config"
	idcmd "github.com/marmos91/idbuilder/cmd/idbctl/commands/id"
	tokencmd "github.com/marmos91/idbuilder/cmd/idbctl/commands/token"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "idbctl",
	Short: "idbctl - Administer an idbuilder server",
	Long: `idbctl administers a running idbuilder server over its REST API:
manage key configurations, issue and rotate key tokens, and generate
IDs for testing.

Log in once with 'idbctl login', then run commands against the stored
context. Use --server and --token to override the context per call.

Use "idbctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.ServerURL, "server", "", "server URL (overrides the stored context)")
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.Token, "token", "", "admin token (overrides the stored context)")
	rootCmd.PersistentFlags().StringVarP(&cmdutil.Flags.Output, "output", "o", "", "output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(idcmd.Cmd)
	rootCmd.AddCommand(tokencmd.Cmd)
}
