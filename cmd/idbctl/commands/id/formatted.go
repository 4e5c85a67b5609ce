package id

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
)

var formattedSize int64

var formattedCmd = &cobra.Command{
	Use:   "formatted <key>",
	Short: "Generate formatted IDs",
	Long: `Generate formatted IDs for a key.

Examples:
  idbctl id formatted invoices

  idbctl id formatted invoices --size 5`,
	Args: cobra.ExactArgs(1),
	RunE: runFormatted,
}

func init() {
	formattedCmd.Flags().Int64Var(&formattedSize, "size", 1, "number of IDs, 1..1000")
}

func runFormatted(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	ids, err := client.GenerateFormatted(args[0], formattedSize)
	if err != nil {
		return fmt.Errorf("failed to generate IDs: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, map[string]any{"id": ids}, nil)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
