package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/idbuilder/internal/api"
	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/bootstrap"
	"github.com/marmos91/idbuilder/pkg/config"
	"github.com/marmos91/idbuilder/pkg/metrics"
	"github.com/marmos91/idbuilder/pkg/storage/factory"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the idbuilder server",
	Long: `Start the idbuilder server with the specified configuration.

The server runs in the foreground; use a process supervisor for
background operation. Use --config to specify a custom configuration
file, or it will use the default location at
$XDG_CONFIG_HOME/idbuilder/config.yaml.

Examples:
  # Start with default config location
  idbuilder start

  # Start with custom config file
  idbuilder start --config /etc/idbuilder/config.yaml

  # Start with environment variable overrides
  IDBUILDER_LOGGING_LEVEL=DEBUG idbuilder start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (optional)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Metrics must be initialized before the collectors are created in
	// api.NewServer, otherwise they stay disabled.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Create the storage backend
	backend, err := factory.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("backend close error", "error", err)
		}
	}()
	logger.Info("Storage backend ready", "backend", backend.Name())

	// Bring the schema to the current version. Exactly one worker in the
	// fleet runs the migration; the others wait for it.
	if err := bootstrap.NewCoordinator(backend, 0).Run(ctx); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}

	if cfg.Auth.Enabled {
		logger.Info("Authentication enabled")
	} else {
		logger.Warn("Authentication disabled, all endpoints are open")
	}

	server := api.NewServer(cfg, backend)

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
