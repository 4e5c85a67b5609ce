package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
	"github.com/marmos91/idbuilder/pkg/domain"
)

var formattedFile string

var setFormattedCmd = &cobra.Command{
	Use:   "set-formatted <key>",
	Short: "Create or update a formatted key",
	Long: `Create or update a formatted key from a JSON parts file.

The file holds either {"parts": [...]} or a bare JSON array of parts.
Each part has a "type" (fixed_chars, fixed_polling_char,
fixed_random_chars, date_format, timestamp, unix_seconds,
auto_increment) plus its type-specific fields.

Example parts file for invoice numbers like INV-20260824-0001:

  [
    {"type": "fixed_chars", "value": "INV-"},
    {"type": "date_format", "pattern": "20060102"},
    {"type": "fixed_chars", "value": "-"},
    {"type": "auto_increment", "length": 4, "length_fixed": true, "reset_scope": "day"}
  ]

Examples:
  idbctl config set-formatted invoices --file parts.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSetFormatted,
}

func init() {
	setFormattedCmd.Flags().StringVar(&formattedFile, "file", "", "path to the JSON parts file (required)")
	_ = setFormattedCmd.MarkFlagRequired("file")
}

// readPartsFile accepts a full FormattedConfig object or a bare array
// of parts.
func readPartsFile(path string) (domain.FormattedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FormattedConfig{}, fmt.Errorf("failed to read parts file: %w", err)
	}

	var cfg domain.FormattedConfig
	if err := json.Unmarshal(data, &cfg); err == nil && len(cfg.Parts) > 0 {
		return cfg, nil
	}

	var parts []domain.Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return domain.FormattedConfig{}, fmt.Errorf("failed to parse parts file: %w", err)
	}
	return domain.FormattedConfig{Parts: parts}, nil
}

func runSetFormatted(cmd *cobra.Command, args []string) error {
	cfg, err := readPartsFile(formattedFile)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	stored, err := client.SetFormattedConfig(args[0], cfg)
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

	cmdutil.PrintSuccess(fmt.Sprintf("Formatted key %q configured (%d parts)",
		stored.Key, len(stored.Formatted.Parts)))
	return nil
}
