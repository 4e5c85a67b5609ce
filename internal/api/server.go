package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/config"
	"github.com/marmos91/idbuilder/pkg/idgen"
	"github.com/marmos91/idbuilder/pkg/metrics"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/token"
)

// Server provides the HTTP server for the ID service API.
//
// The server wires the storage backend into the sequence manager, the
// three ID services and the token store, and serves the routes listed
// on NewRouter. It supports graceful shutdown with configurable timeout.
type Server struct {
	server          *http.Server
	config          config.ServerConfig
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates a new API server over backend.
//
// The server is created in a stopped state. Call Start() to begin
// serving requests. Metrics collectors are created here and are no-ops
// unless metrics.InitRegistry was called first.
func NewServer(cfg *config.Config, backend storage.Backend) *Server {
	seq := sequence.NewManager(backend, sequence.Config{
		BatchSize:         cfg.Sequence.BatchSize,
		PrefetchThreshold: cfg.Sequence.PrefetchThreshold,
		PrefetchTimeout:   cfg.Sequence.PrefetchTimeout,
		Metrics:           metrics.NewSequenceMetrics(),
	})

	deps := Deps{
		Backend:   backend,
		Sequence:  seq,
		Increment: idgen.NewIncrementService(backend, seq),
		Snowflake: idgen.NewSnowflakeService(backend, cfg.Lease.TTL, metrics.NewLeaseMetrics()),
		Formatted: idgen.NewFormattedService(backend, seq),
		Tokens:    token.NewStore(backend),

		Auth:           cfg.Auth,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        metrics.NewAPIMetrics(),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		server:          server,
		config:          cfg.Server,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start starts the API HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		// Fresh context: the cancelled one would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop gracefully shuts the server down, draining in-flight requests
// until ctx expires. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("API server stopping")
		err = s.server.Shutdown(ctx)
	})
	return err
}
