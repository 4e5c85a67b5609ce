package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
	"github.com/marmos91/idbuilder/pkg/domain"
)

var incrementCfg domain.IncrementConfig

var setIncrementCmd = &cobra.Command{
	Use:   "set-increment <key>",
	Short: "Create or update an increment key",
	Long: `Create or update an increment key.

Unset flags fall back to the server defaults (delta 1, unbounded).

Examples:
  # Order numbers starting at 1000
  idbctl config set-increment orders --base 1000

  # Step by 10, cap client batch deltas at 100
  idbctl config set-increment orders --base 1000 --delta 10 --max-request-delta 100`,
	Args: cobra.ExactArgs(1),
	RunE: runSetIncrement,
}

func init() {
	setIncrementCmd.Flags().Int64Var(&incrementCfg.Base, "base", 0, "first value handed out")
	setIncrementCmd.Flags().Int64Var(&incrementCfg.Delta, "delta", 0, "step between values (default 1)")
	setIncrementCmd.Flags().Int64Var(&incrementCfg.MaxRequestDelta, "max-request-delta", 0, "largest per-request delta override (default: no override allowed)")
	setIncrementCmd.Flags().BoolVar(&incrementCfg.RandDelta, "rand-delta", false, "randomize the step per request")
	setIncrementCmd.Flags().Int64Var(&incrementCfg.MaxValue, "max-value", 0, "exhaust the key at this value (default: int64 max)")
}

func runSetIncrement(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	stored, err := client.SetIncrementConfig(args[0], incrementCfg)
	if err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, stored, nil)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Increment key %q configured (base %d, delta %d)",
		stored.Key, stored.Increment.Base, stored.Increment.Delta))
	return nil
}
