// Package badgerstore implements the storage backend on an embedded
// Badger key-value store. Badger transactions are serializable, so
// range reservation and witness resets need no extra coordination.
// Single-node only.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// Key prefixes. Every record lives under one of these namespaces.
const (
	prefixSequence = "seq:"
	prefixConfig   = "cfg:"
	prefixToken    = "tok:"
	prefixLease    = "lease:"
	prefixLock     = "lock:"
	keySchema      = "schema:version"
)

func keySequence(key string) []byte { return []byte(prefixSequence + key) }
func keyConfig(key string) []byte   { return []byte(prefixConfig + key) }
func keyToken(key string) []byte    { return []byte(prefixToken + key) }
func keyLease(key string) []byte    { return []byte(prefixLease + key) }
func keyLock(key string) []byte     { return []byte(prefixLock + key) }

// Store is the Badger storage backend.
type Store struct {
	db *badger.DB
}

// New opens (or creates) a Badger database at cfg.Dir. With
// cfg.InMemory set the store keeps everything in RAM.
func New(cfg storage.BadgerConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "badger" }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// sequenceRecord is the stored form of one counter.
type sequenceRecord struct {
	Current   int64     `json:"current"`
	Version   int64     `json:"version"`
	Witness   string    `json:"witness,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// leaseRecord is the stored form of one key's worker-id leases.
type leaseRecord struct {
	Leases map[int]leaseEntry `json:"leases"`
}

type leaseEntry struct {
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// lockRecord is the stored form of one distributed lock.
type lockRecord struct {
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// getJSON loads and decodes one record inside a transaction.
// Returns storage.ErrNotFound when the key does not exist.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// ============================================================================
// Sequences
// ============================================================================

func (s *Store) ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error) {
	if err := ctx.Err(); err != nil {
		return domain.Range{}, err
	}

	var r domain.Range
	err := s.db.Update(func(txn *badger.Txn) error {
		var rec sequenceRecord
		err := getJSON(txn, keySequence(key), &rec)
		if errors.Is(err, storage.ErrNotFound) {
			rec = sequenceRecord{Current: initial}
		} else if err != nil {
			return err
		}

		next, reserved, err := storage.Advance(rec.Current, count, delta)
		if err != nil {
			return err
		}

		rec.Current = next
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		if err := setJSON(txn, keySequence(key), &rec); err != nil {
			return err
		}
		r = reserved
		return nil
	})
	return r, err
}

func (s *Store) GetSequence(ctx context.Context, key string) (domain.SequenceState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SequenceState{}, err
	}

	var rec sequenceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keySequence(key), &rec)
	})
	if err != nil {
		return domain.SequenceState{}, err
	}
	return domain.SequenceState{
		Key:       key,
		Current:   rec.Current,
		Version:   rec.Version,
		Witness:   rec.Witness,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (s *Store) ResetSequence(ctx context.Context, key string, newValue int64, witness string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	performed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var rec sequenceRecord
		err := getJSON(txn, keySequence(key), &rec)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err == nil && rec.Witness == witness {
			return nil // already reset for this scope
		}

		rec.Current = newValue
		rec.Version++
		rec.Witness = witness
		rec.UpdatedAt = time.Now().UTC()
		if err := setJSON(txn, keySequence(key), &rec); err != nil {
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

func (s *Store) GetConfig(ctx context.Context, key string) (*domain.KeyConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cfg domain.KeyConfig
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyConfig(key), &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg *domain.KeyConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, keyConfig(cfg.Key), cfg)
	})
}

func (s *Store) ListConfigs(ctx context.Context, from string, size int) ([]domain.ConfigSummary, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}

	var items []domain.ConfigSummary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixConfig)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefixConfig)
			if key <= from {
				continue
			}
			var cfg domain.KeyConfig
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cfg)
			})
			if err != nil {
				return err
			}
			items = append(items, domain.ConfigSummary{Key: key, Type: cfg.Type})
		}
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	hasMore := len(items) > size
	if hasMore {
		items = items[:size]
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

func (s *Store) PutToken(ctx context.Context, key string, hash []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyToken(key), hash)
	})
}

func (s *Store) GetToken(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hash []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyToken(key))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		hash, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hash, nil
}

// ============================================================================
// Worker leases
// ============================================================================

func (s *Store) AcquireWorkerID(ctx context.Context, key string, poolSize int, fingerprint string, ttl time.Duration) (domain.WorkerLease, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkerLease{}, err
	}

	var lease domain.WorkerLease
	err := s.db.Update(func(txn *badger.Txn) error {
		rec := leaseRecord{Leases: make(map[int]leaseEntry)}
		err := getJSON(txn, keyLease(key), &rec)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if rec.Leases == nil {
			rec.Leases = make(map[int]leaseEntry)
		}

		now := time.Now().UTC()
		for id, entry := range rec.Leases {
			if !entry.ExpiresAt.After(now) {
				delete(rec.Leases, id)
			}
		}

		workerID := -1
		for id, entry := range rec.Leases {
			if entry.Fingerprint == fingerprint {
				workerID = id
				break
			}
		}
		if workerID < 0 {
			for id := 0; id < poolSize; id++ {
				if _, taken := rec.Leases[id]; !taken {
					workerID = id
					break
				}
			}
		}
		if workerID < 0 {
			return storage.ErrPoolExhausted
		}

		expires := now.Add(ttl)
		rec.Leases[workerID] = leaseEntry{Fingerprint: fingerprint, ExpiresAt: expires}
		if err := setJSON(txn, keyLease(key), &rec); err != nil {
			return err
		}
		lease = domain.WorkerLease{Key: key, WorkerID: workerID, Fingerprint: fingerprint, ExpiresAt: expires}
		return nil
	})
	return lease, err
}

// ============================================================================
// Distributed lock
// ============================================================================

func (s *Store) TryAcquireLock(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	acquired := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var rec lockRecord
		err := getJSON(txn, keyLock(lockKey), &rec)
		now := time.Now().UTC()
		if err == nil && rec.OwnerID != ownerID && now.Before(rec.ExpiresAt) {
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		rec = lockRecord{OwnerID: ownerID, ExpiresAt: now.Add(ttl)}
		if err := setJSON(txn, keyLock(lockKey), &rec); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (s *Store) ReleaseLock(ctx context.Context, lockKey, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var rec lockRecord
		err := getJSON(txn, keyLock(lockKey), &rec)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.OwnerID != ownerID {
			return nil
		}
		return txn.Delete(keyLock(lockKey))
	})
}

// ============================================================================
// Schema
// ============================================================================

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	version := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchema))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
			version = v
			return nil
		})
	})
	return version, err
}

func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keySchema), []byte(strconv.Itoa(version)))
	})
}

// InitSchema is a no-op: Badger has no schema to create.
func (s *Store) InitSchema(ctx context.Context) error {
	return ctx.Err()
}
