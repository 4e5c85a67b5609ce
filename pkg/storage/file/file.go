// Package file implements the storage backend on a local directory tree.
//
// Layout under the base directory:
//
//	configs/<key>.json     key configuration blobs
//	sequences/<key>.json   {current, version, witness, updated_at}
//	tokens/<key>.json      token hash records
//	leases/<key>.json      snowflake worker-id leases
//	locks/<key>.lock       advisory lock files (flock)
//	schema_version         plaintext integer
//
// Every read-modify-write runs under an exclusive OS advisory file lock,
// which makes the backend safe for multiple processes on one machine.
// Uniqueness across machines is not provided; the file backend is a
// single-node backend.
package file

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

const (
	configsDir   = "configs"
	sequencesDir = "sequences"
	tokensDir    = "tokens"
	leasesDir    = "leases"
	locksDir     = "locks"
	schemaFile   = "schema_version"
)

// Backend is the file-based storage backend.
type Backend struct {
	dir string
}

// New creates a file backend rooted at cfg.Dir. The directory tree is
// created by InitSchema, not here, so that fleet bootstrap coordination
// stays in one place.
func New(cfg storage.FileConfig) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file backend requires a directory")
	}
	return &Backend{dir: cfg.Dir}, nil
}

// Name returns "file".
func (b *Backend) Name() string { return "file" }

// Close is a no-op; file handles are not kept open between operations.
func (b *Backend) Close() error { return nil }

// fname encodes a key into a safe file name. Derived keys contain ':',
// which PathEscape keeps portable.
func fname(key string) string {
	return url.PathEscape(key) + ".json"
}

func (b *Backend) path(sub, key string) string {
	return filepath.Join(b.dir, sub, fname(key))
}

func (b *Backend) lockPath(key string) string {
	return filepath.Join(b.dir, locksDir, url.PathEscape(key)+".lock")
}

// withLock runs fn while holding the exclusive advisory lock for key.
// The locks directory is created on demand: the schema_init lock is
// taken before InitSchema has built the tree.
func (b *Backend) withLock(ctx context.Context, key string, fn func() error) error {
	if err := os.MkdirAll(filepath.Join(b.dir, locksDir), 0o755); err != nil {
		return fmt.Errorf("create locks directory: %w", err)
	}
	fl := flock.New(b.lockPath(key))
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire lock for %q: %w", key, err)
	}
	if !locked {
		return fmt.Errorf("acquire lock for %q: not granted", key)
	}
	defer fl.Unlock() //nolint:errcheck // advisory unlock on close path
	return fn()
}

// readJSON loads path into v. Returns storage.ErrNotFound for missing files.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON persists v to path atomically (temp file + rename).
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ============================================================================
// Sequences
// ============================================================================

func (b *Backend) ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error) {
	var r domain.Range
	err := b.withLock(ctx, key, func() error {
		path := b.path(sequencesDir, key)

		state := domain.SequenceState{Key: key, Current: initial}
		if err := readJSON(path, &state); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		next, reserved, err := storage.Advance(state.Current, count, delta)
		if err != nil {
			return err
		}

		state.Current = next
		state.Version++
		state.UpdatedAt = time.Now().UTC()
		if err := writeJSON(path, &state); err != nil {
			return err
		}
		r = reserved
		return nil
	})
	return r, err
}

func (b *Backend) GetSequence(ctx context.Context, key string) (domain.SequenceState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SequenceState{}, err
	}
	var state domain.SequenceState
	if err := readJSON(b.path(sequencesDir, key), &state); err != nil {
		return domain.SequenceState{}, err
	}
	return state, nil
}

func (b *Backend) ResetSequence(ctx context.Context, key string, newValue int64, witness string) (bool, error) {
	performed := false
	err := b.withLock(ctx, key, func() error {
		path := b.path(sequencesDir, key)

		var state domain.SequenceState
		if err := readJSON(path, &state); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if state.Witness == witness && state.Key != "" {
			return nil // already reset for this scope
		}

		state.Key = key
		state.Current = newValue
		state.Version++
		state.Witness = witness
		state.UpdatedAt = time.Now().UTC()
		if err := writeJSON(path, &state); err != nil {
			return err
		}
		performed = true
		return nil
	})
	return performed, err
}

// ============================================================================
// Configs
// ============================================================================

func (b *Backend) GetConfig(ctx context.Context, key string) (*domain.KeyConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cfg domain.KeyConfig
	if err := readJSON(b.path(configsDir, key), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (b *Backend) PutConfig(ctx context.Context, cfg *domain.KeyConfig) error {
	return b.withLock(ctx, "config:"+cfg.Key, func() error {
		return writeJSON(b.path(configsDir, cfg.Key), cfg)
	})
}

func (b *Backend) ListConfigs(ctx context.Context, from string, size int) ([]domain.ConfigSummary, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}
	entries, err := os.ReadDir(filepath.Join(b.dir, configsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil || key <= from {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hasMore := len(keys) > size
	if hasMore {
		keys = keys[:size]
	}

	items := make([]domain.ConfigSummary, 0, len(keys))
	for _, key := range keys {
		var cfg domain.KeyConfig
		if err := readJSON(b.path(configsDir, key), &cfg); err != nil {
			return nil, "", false, err
		}
		items = append(items, domain.ConfigSummary{Key: cfg.Key, Type: cfg.Type})
	}

	cursor := ""
	if hasMore && len(items) > 0 {
		cursor = items[len(items)-1].Key
	}
	return items, cursor, hasMore, nil
}

// ============================================================================
// Tokens
// ============================================================================

type tokenRecord struct {
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Backend) PutToken(ctx context.Context, key string, hash []byte) error {
	return b.withLock(ctx, "token:"+key, func() error {
		rec := tokenRecord{Hash: hex.EncodeToString(hash), UpdatedAt: time.Now().UTC()}
		return writeJSON(b.path(tokensDir, key), &rec)
	})
}

func (b *Backend) GetToken(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec tokenRecord
	if err := readJSON(b.path(tokensDir, key), &rec); err != nil {
		return nil, err
	}
	hash, err := hex.DecodeString(rec.Hash)
	if err != nil {
		return nil, fmt.Errorf("corrupt token record for %q: %w", key, err)
	}
	return hash, nil
}

// ============================================================================
// Worker leases
// ============================================================================

type leaseFile struct {
	Leases []domain.WorkerLease `json:"leases"`
}

func (b *Backend) AcquireWorkerID(ctx context.Context, key string, poolSize int, fingerprint string, ttl time.Duration) (domain.WorkerLease, error) {
	var lease domain.WorkerLease
	err := b.withLock(ctx, "lease:"+key, func() error {
		path := b.path(leasesDir, key)

		var lf leaseFile
		if err := readJSON(path, &lf); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		live := lf.Leases[:0]
		for _, l := range lf.Leases {
			if !l.Expired(now) {
				live = append(live, l)
			}
		}
		lf.Leases = live

		// Renew an existing lease held by the same client.
		for i := range lf.Leases {
			if lf.Leases[i].Fingerprint == fingerprint {
				lf.Leases[i].ExpiresAt = now.Add(ttl)
				lease = lf.Leases[i]
				return writeJSON(path, &lf)
			}
		}

		taken := make(map[int]bool, len(lf.Leases))
		for _, l := range lf.Leases {
			taken[l.WorkerID] = true
		}
		for id := 0; id < poolSize; id++ {
			if taken[id] {
				continue
			}
			lease = domain.WorkerLease{
				Key:         key,
				WorkerID:    id,
				Fingerprint: fingerprint,
				ExpiresAt:   now.Add(ttl),
			}
			lf.Leases = append(lf.Leases, lease)
			return writeJSON(path, &lf)
		}
		return storage.ErrPoolExhausted
	})
	return lease, err
}

// ============================================================================
// Distributed lock
// ============================================================================

type lockRecord struct {
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (b *Backend) TryAcquireLock(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error) {
	acquired := false
	err := b.withLock(ctx, "dlock:"+lockKey, func() error {
		path := b.path(locksDir, "named-"+lockKey)

		var rec lockRecord
		err := readJSON(path, &rec)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		if err == nil && rec.OwnerID != ownerID && now.Before(rec.ExpiresAt) {
			return nil // held by someone else
		}

		rec = lockRecord{OwnerID: ownerID, ExpiresAt: now.Add(ttl)}
		if err := writeJSON(path, &rec); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (b *Backend) ReleaseLock(ctx context.Context, lockKey, ownerID string) error {
	return b.withLock(ctx, "dlock:"+lockKey, func() error {
		path := b.path(locksDir, "named-"+lockKey)

		var rec lockRecord
		if err := readJSON(path, &rec); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		if rec.OwnerID != ownerID {
			return nil
		}
		return os.Remove(path)
	})
}

// ============================================================================
// Schema and health
// ============================================================================

func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(b.dir, schemaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt schema_version: %w", err)
	}
	return v, nil
}

func (b *Backend) SetSchemaVersion(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.dir, schemaFile), []byte(strconv.Itoa(version)+"\n"), 0o644)
}

func (b *Backend) InitSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sub := range []string{configsDir, sequencesDir, tokensDir, leasesDir, locksDir} {
		if err := os.MkdirAll(filepath.Join(b.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return nil
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(b.dir)
	return err
}
