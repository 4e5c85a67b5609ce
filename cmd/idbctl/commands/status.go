package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
	"github.com/marmos91/idbuilder/internal/cli/timeutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and readiness",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("server is unreachable: %w", err)
	}

	pairs := [][2]string{
		{"Service", health.Service},
		{"Started", timeutil.FormatTime(health.StartedAt)},
		{"Uptime", timeutil.FormatUptime(health.Uptime)},
	}

	ready, err := client.Ready()
	if err != nil {
		pairs = append(pairs, [2]string{"Ready", "no: " + err.Error()})
	} else {
		pairs = append(pairs,
			[2]string{"Ready", "yes"},
			[2]string{"Backend", ready.Backend},
			[2]string{"Backend latency", ready.Latency},
		)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		data := map[string]any{"health": health, "ready": ready}
		if format == output.FormatJSON {
			return output.PrintJSON(os.Stdout, data)
		}
		return output.PrintYAML(os.Stdout, data)
	}

	return output.SimpleTable(os.Stdout, pairs)
}
