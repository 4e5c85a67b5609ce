// Package bootstrap brings the storage schema to the current version
// exactly once per fleet. One worker wins the schema_init lock and runs
// the migration; the others poll the recorded version until it is
// current. No worker starts serving before the check passes.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/storage"
)

const (
	// CurrentSchemaVersion is the version this build requires.
	CurrentSchemaVersion = 1

	lockKey      = "schema_init"
	lockTTL      = 60 * time.Second
	pollInterval = 500 * time.Millisecond

	// DefaultDeadline bounds the whole bootstrap, lock retries included.
	DefaultDeadline = 5 * time.Minute
)

// Coordinator runs the schema bootstrap against one backend.
type Coordinator struct {
	backend  storage.Backend
	deadline time.Duration

	// ownerID identifies this worker in the lock table.
	ownerID string
}

// NewCoordinator creates a coordinator. A zero deadline uses
// DefaultDeadline.
func NewCoordinator(backend storage.Backend, deadline time.Duration) *Coordinator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Coordinator{
		backend:  backend,
		deadline: deadline,
		ownerID:  uuid.NewString(),
	}
}

// Run ensures the schema is at CurrentSchemaVersion, initializing it if
// this worker wins the lock and waiting for the winner otherwise.
// Initialization is idempotent, so a crashed winner is recovered by the
// next worker that takes over the expired lock.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	for {
		version, err := c.backend.SchemaVersion(ctx)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version >= CurrentSchemaVersion {
			return nil
		}

		acquired, err := c.backend.TryAcquireLock(ctx, lockKey, c.ownerID, lockTTL)
		if err != nil {
			return fmt.Errorf("acquire %s lock: %w", lockKey, err)
		}

		if acquired {
			return c.initialize(ctx, version)
		}

		logger.Info("waiting for another worker to initialize storage",
			"backend", c.backend.Name(),
			"version", version)

		select {
		case <-ctx.Done():
			return fmt.Errorf("storage bootstrap deadline exceeded: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (c *Coordinator) initialize(ctx context.Context, fromVersion int) error {
	defer func() {
		if err := c.backend.ReleaseLock(context.WithoutCancel(ctx), lockKey, c.ownerID); err != nil {
			logger.Warn("release schema_init lock failed",
				"backend", c.backend.Name(),
				"error", err)
		}
	}()

	// Re-check under the lock; another worker may have finished between
	// our version read and the lock grant.
	version, err := c.backend.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= CurrentSchemaVersion {
		return nil
	}

	logger.Info("initializing storage schema",
		"backend", c.backend.Name(),
		"from_version", fromVersion,
		"to_version", CurrentSchemaVersion)

	if err := c.backend.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if err := c.backend.SetSchemaVersion(ctx, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}
