// Package storage defines the backend contract every persistence layer
// satisfies: atomic sequence reservation, config and token records,
// snowflake worker-id leases, and a TTL-based distributed lock.
//
// The contract is stated in terms of observable atomicity guarantees:
//   - ReserveRange returns disjoint ranges per key across all workers.
//   - ResetSequence is a compare-and-swap on the reset witness.
//   - TryAcquireLock never grants the same lock to two owners inside
//     the TTL (assuming bounded clock skew).
//
// Backends are interchangeable at boot; nothing above this package may
// depend on which one was chosen.
package storage

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/marmos91/idbuilder/pkg/domain"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned when a key has no sequence, config or token.
	ErrNotFound = errors.New("storage: not found")

	// ErrExhausted is returned when advancing a sequence would overflow.
	ErrExhausted = errors.New("storage: sequence exhausted")

	// ErrPoolExhausted is returned when every worker id of a key is leased.
	ErrPoolExhausted = errors.New("storage: worker id pool exhausted")
)

// Backend is the single contract satisfied by the file, Redis, SQL and
// badger backends. All operations honor context cancellation; blocking
// happens only inside storage round-trips.
type Backend interface {
	// ReserveRange atomically advances the counter for key by count*delta
	// and returns the inclusive range [First, Last] of reserved values.
	// A sequence that does not exist yet is materialized at initial, so
	// the first reserved value is initial+delta. Returns ErrExhausted if
	// the advance would overflow int64.
	ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error)

	// GetSequence returns the committed sequence state for key, or
	// ErrNotFound if the key was never allocated.
	GetSequence(ctx context.Context, key string) (domain.SequenceState, error)

	// ResetSequence sets the counter to newValue and records witness,
	// atomically. If the stored witness already equals witness the call
	// is a no-op and returns false (the reset was already performed).
	ResetSequence(ctx context.Context, key string, newValue int64, witness string) (bool, error)

	// GetConfig returns the config for key, or ErrNotFound.
	GetConfig(ctx context.Context, key string) (*domain.KeyConfig, error)

	// PutConfig upserts a config. Writes for the same key are serialized.
	PutConfig(ctx context.Context, cfg *domain.KeyConfig) error

	// ListConfigs returns up to size summaries with keys greater than
	// from, in key order, plus the cursor for the next page and whether
	// more pages exist.
	ListConfigs(ctx context.Context, from string, size int) ([]domain.ConfigSummary, string, bool, error)

	// PutToken upserts the token hash for key.
	PutToken(ctx context.Context, key string, hash []byte) error

	// GetToken returns the token hash for key, or ErrNotFound.
	GetToken(ctx context.Context, key string) ([]byte, error)

	// AcquireWorkerID leases the least-numbered free worker id in
	// [0, poolSize) for fingerprint, or renews an unexpired lease held
	// by the same fingerprint. Returns ErrPoolExhausted when every id
	// is leased by other fingerprints.
	AcquireWorkerID(ctx context.Context, key string, poolSize int, fingerprint string, ttl time.Duration) (domain.WorkerLease, error)

	// TryAcquireLock attempts best-effort distributed mutual exclusion
	// on lockKey. Reacquisition by the current owner extends the TTL.
	TryAcquireLock(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error)

	// ReleaseLock releases lockKey if still owned by ownerID.
	ReleaseLock(ctx context.Context, lockKey, ownerID string) error

	// SchemaVersion returns the recorded schema version, 0 if none.
	SchemaVersion(ctx context.Context) (int, error)

	// SetSchemaVersion records version as applied.
	SetSchemaVersion(ctx context.Context, version int) error

	// InitSchema performs idempotent structural setup (tables, indices
	// or the directory tree). Safe to run concurrently from several
	// workers; the bootstrap coordinator serializes it anyway.
	InitSchema(ctx context.Context) error

	// HealthCheck round-trips the backend.
	HealthCheck(ctx context.Context) error

	// Close releases connections and file handles.
	Close() error

	// Name returns the backend name for logs and metrics.
	Name() string
}

// Advance computes the reserved range for a read-modify-write backend:
// given the current committed value (or initial for a fresh sequence),
// it returns the new committed value and the reserved range. It is the
// shared overflow guard for the file, SQL and badger backends; Redis
// relies on INCRBY's server-side overflow detection instead.
func Advance(current, count, delta int64) (next int64, r domain.Range, err error) {
	if count < 1 || delta < 1 {
		return 0, domain.Range{}, errors.New("storage: count and delta must be >= 1")
	}
	span := count * delta
	if span/count != delta || current > math.MaxInt64-span {
		return 0, domain.Range{}, ErrExhausted
	}
	next = current + span
	return next, domain.Range{First: current + delta, Last: next, Delta: delta}, nil
}
