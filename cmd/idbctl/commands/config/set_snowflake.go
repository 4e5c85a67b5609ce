package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
	"github.com/marmos91/idbuilder/pkg/domain"
)

var snowflakeCfg domain.SnowflakeConfig

var setSnowflakeCmd = &cobra.Command{
	Use:   "set-snowflake <key>",
	Short: "Create or update a snowflake key",
	Long: `Create or update a snowflake key.

The flags describe the bit layout clients use to pack IDs locally.
Unset flags fall back to the server defaults. The bit sizes must sum
to at most 63 (skip + timestamp + worker id + sequence).

Examples:
  # Default layout
  idbctl config set-snowflake events

  # Wider worker-id pool, shorter sequence
  idbctl config set-snowflake events --worker-id-size 12 --seq-size 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSetSnowflake,
}

func init() {
	setSnowflakeCmd.Flags().Uint8Var(&snowflakeCfg.SkipSize, "skip-size", 0, "unused high bits")
	setSnowflakeCmd.Flags().Int64Var(&snowflakeCfg.BaseTS, "base-ts", 0, "custom epoch in milliseconds")
	setSnowflakeCmd.Flags().Uint8Var(&snowflakeCfg.TSSize, "ts-size", 0, "timestamp bits (default 41)")
	setSnowflakeCmd.Flags().Uint8Var(&snowflakeCfg.WorkerIDSize, "worker-id-size", 0, "worker id bits (default 10)")
	setSnowflakeCmd.Flags().Uint8Var(&snowflakeCfg.SeqSize, "seq-size", 0, "sequence bits (default 12)")
}

func runSetSnowflake(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	stored, err := client.SetSnowflakeConfig(args[0], snowflakeCfg)
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

	sf := stored.Snowflake
	cmdutil.PrintSuccess(fmt.Sprintf("Snowflake key %q configured (ts %d, worker %d, seq %d bits)",
		stored.Key, sf.TSSize, sf.WorkerIDSize, sf.SeqSize))
	return nil
}
