package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/cmd/idbctl/cmdutil"
	"github.com/marmos91/idbuilder/pkg/apiclient"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the configuration of a single key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	summary, err := client.GetConfig(args[0])
	if err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("no config for key %q", args[0])
		}
		return err
	}

	return cmdutil.PrintResource(os.Stdout, summary, ConfigList{*summary})
}
