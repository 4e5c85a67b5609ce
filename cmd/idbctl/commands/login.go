package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/credentials"
	"github.com/marmos91/idbuilder/internal/cli/prompt"
	"github.com/marmos91/idbuilder/pkg/apiclient"
)

var loginContextName string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to an idbuilder server",
	Long: `Log in to an idbuilder server and store the credentials locally.

The admin token is verified against the server before it is saved.
Credentials are stored per context, so one idbctl can switch between
deployments with 'idbctl context use'.

Examples:
  # Interactive login
  idbctl login

  # Non-interactive login
  idbctl login --server http://localhost:8080 --token <admin-token>

  # Store the credentials under a named context
  idbctl login --server http://prod:8080 --token <admin-token> --context prod`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginContextName, "context", "default", "context name to store the credentials under")
}

func runLogin(cmd *cobra.Command, args []string) error {
	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		var err error
		serverURL, err = prompt.Input("Server URL", "http://localhost:8080")
		if err != nil {
			return err
		}
	}

	token := cmdutil.Flags.Token
	if token == "" {
		var err error
		token, err = prompt.Password("Admin token")
		if err != nil {
			return err
		}
	}

	// Verify before saving so a typo does not poison the context.
	client := apiclient.New(serverURL).WithToken(token)
	if err := client.VerifyAdmin(); err != nil {
		if apiclient.IsAuthError(err) {
			return fmt.Errorf("server rejected the token: %w", err)
		}
		return fmt.Errorf("failed to reach server: %w", err)
	}

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}
	if err := store.SetContext(loginContextName, &credentials.Context{
		ServerURL: serverURL,
		Token:     token,
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Logged in to %s (context %q)", serverURL, loginContextName))
	return nil
}
