package id

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
)

var (
	incrementSize      int64
	incrementDelta     int64
	incrementRandDelta bool
)

var incrementCmd = &cobra.Command{
	Use:   "increment <key>",
	Short: "Generate increment IDs",
	Long: `Generate increment IDs for a key.

Examples:
  # One ID
  idbctl id increment orders

  # A batch of 10
  idbctl id increment orders --size 10

  # Override the configured step for this request
  idbctl id increment orders --delta 5`,
	Args: cobra.ExactArgs(1),
	RunE: runIncrement,
}

func init() {
	incrementCmd.Flags().Int64Var(&incrementSize, "size", 1, "number of IDs, 1..1000")
	incrementCmd.Flags().Int64Var(&incrementDelta, "delta", 0, "per-request step override (default: the key's delta)")
	incrementCmd.Flags().BoolVar(&incrementRandDelta, "rand-delta", false, "randomize the step for this request")
}

func runIncrement(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	ids, err := client.GenerateIncrement(args[0], incrementSize, incrementDelta, incrementRandDelta)
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
