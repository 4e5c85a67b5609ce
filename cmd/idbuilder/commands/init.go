package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample idbuilder configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/idbuilder/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  idbuilder init

  # Initialize with custom path
  idbuilder init --config /etc/idbuilder/config.yaml

  # Force overwrite existing config
  idbuilder init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: idbuilder start")
	fmt.Printf("  3. Or specify custom config: idbuilder start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  Authentication is disabled in the sample config. For production,")
	fmt.Println("  enable it and set the admin token via an environment variable:")
	fmt.Println("    export IDBUILDER_AUTH_ADMIN_TOKEN=$(openssl rand -hex 32)")

	return nil
}
