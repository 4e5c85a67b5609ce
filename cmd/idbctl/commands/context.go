package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/credentials"
	"github.com/marmos91/idbuilder/internal/cli/output"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored contexts",
	RunE:  runContextList,
}

var contextUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextUse,
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextDelete,
}

func init() {
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextUseCmd)
	contextCmd.AddCommand(contextDeleteCmd)
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}

	names := store.ListContexts()
	table := output.NewTableData("CURRENT", "NAME", "SERVER")
	for _, name := range names {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}
		marker := ""
		if name == store.GetCurrentContextName() {
			marker = "*"
		}
		table.AddRow(marker, name, ctx.ServerURL)
	}

	return cmdutil.PrintOutput(os.Stdout, names, len(names) == 0, "No contexts stored. Run 'idbctl login' first.", table)
}

func runContextUse(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}
	if err := store.UseContext(args[0]); err != nil {
		return err
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Switched to context %q", args[0]))
	return nil
}

func runContextDelete(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}
	if err := store.DeleteContext(args[0]); err != nil {
		return err
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Deleted context %q", args[0]))
	return nil
}
