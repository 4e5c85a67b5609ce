// Package idgen implements the three ID services: increment numbers,
// snowflake layout descriptors and formatted strings. Each service
// resolves the key's config, enforces the request limits and delegates
// counter work to the sequence manager.
package idgen

import (
	"context"
	"errors"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// MaxBatchSize is the largest number of IDs one request may ask for.
const MaxBatchSize = 1000

// resolveConfig loads the config for key and checks its type.
func resolveConfig(ctx context.Context, backend storage.Backend, key string, want domain.IDType) (*domain.KeyConfig, error) {
	if err := domain.ValidateKey(key); err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidKey, "invalid key", err)
	}

	cfg, err := backend.GetConfig(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierr.Newf(apierr.CodeNotFound, "no config for key %q", key)
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternal, "load config", err)
	}
	if cfg.Type != want {
		return nil, apierr.Newf(apierr.CodeInvalidKey, "key %q is a %s key, not %s", key, cfg.Type, want)
	}
	return cfg, nil
}

// checkSize enforces the batch size limits.
func checkSize(size int64) error {
	if size < 1 {
		return apierr.Newf(apierr.CodeBadParams, "size must be >= 1, got %d", size)
	}
	if size > MaxBatchSize {
		return apierr.Newf(apierr.CodeSizeTooLarge, "size %d exceeds maximum %d", size, MaxBatchSize)
	}
	return nil
}

// mapDrawError translates sequence/storage failures into API errors.
func mapDrawError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrExhausted):
		return apierr.Wrap(apierr.CodeExhausted, "sequence exhausted", err)
	default:
		return apierr.Wrap(apierr.CodeInternal, "reserve sequence range", err)
	}
}
