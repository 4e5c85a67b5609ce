package token

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/output"
)

var issueCmd = &cobra.Command{
	Use:   "issue <key>",
	Short: "Issue a token for a key",
	Long: `Issue a token for a key.

If the key already has a token, nothing changes: the command reports
that a token exists without revealing it. Use 'idbctl token reset' to
rotate it.

Examples:
  idbctl token issue orders`,
	Args: cobra.ExactArgs(1),
	RunE: runIssue,
}

func runIssue(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	grant, err := client.IssueToken(args[0])
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, grant, nil)
	}

	if !grant.Created {
		fmt.Printf("Key %q already has a token. Use 'idbctl token reset %s' to rotate it.\n", grant.Key, grant.Key)
		return nil
	}

	fmt.Printf("Token issued for key %q:\n\n  %s\n\n", grant.Key, grant.Token)
	fmt.Println("Save this token now. It will not be shown again.")
	return nil
}
