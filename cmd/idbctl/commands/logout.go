package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/internal/cli/credentials"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token for the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentials.NewStore()
		if err != nil {
			return fmt.Errorf("failed to initialize credential store: %w", err)
		}

		if err := store.ClearCurrentContext(); err != nil {
			if errors.Is(err, credentials.ErrNoCurrentContext) {
				fmt.Println("Not logged in.")
				return nil
			}
			return err
		}

		cmdutil.PrintSuccess(fmt.Sprintf("Logged out of context %q", store.GetCurrentContextName()))
		return nil
	},
}
