package token

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Rotate the token for a key",
	Long: `Rotate the token for a key.

The previous token stops working immediately, so every client using
the key must switch to the new token.

Examples:
  idbctl token reset orders

  # Skip the confirmation prompt
  idbctl token reset orders --force`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	key := args[0]

	confirmed, err := cmdutil.ConfirmDestructive(
		fmt.Sprintf("Rotate the token for %q? Clients using the old token will stop working", key),
		resetForce)
	if err != nil || !confirmed {
		return err
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	grant, err := client.ResetToken(key)
	if err != nil {
		return fmt.Errorf("failed to reset token: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, grant, nil)
	}

	fmt.Printf("Token rotated for key %q:\n\n  %s\n\n", grant.Key, grant.Token)
	fmt.Println("Save this token now. It will not be shown again.")
	return nil
}
