// Package sqlstore implements the storage backend on MySQL, PostgreSQL
// and SQLite through GORM.
//
// Counter advancement runs in a transaction: the row is read under
// SELECT ... FOR UPDATE where the dialect supports it, and committed
// with an optimistic version check (UPDATE ... WHERE version = ?).
// Zero rows affected means another worker won the race; the operation
// retries up to maxRetries times with jittered backoff.
//
// Distributed locks live in the distributed_locks table; the dialects
// additionally serialize lock-table writes with their native primitive
// (GET_LOCK on MySQL, pg_advisory_xact_lock on PostgreSQL).
package sqlstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

const (
	// maxRetries bounds the optimistic-update retry loop.
	maxRetries = 5

	// Retry backoff jitter window.
	retryJitterMin = 10 * time.Millisecond
	retryJitterMax = 50 * time.Millisecond
)

// Store is the SQL storage backend.
type Store struct {
	db      *gorm.DB
	dialect dialect
}

// New opens a SQL backend of the given type (mysql, postgres or sqlite).
// Schema creation is deferred to InitSchema so that fleet bootstrap
// coordination stays in one place.
func New(backendType storage.BackendType, cfg storage.SQLConfig) (*Store, error) {
	var (
		dialector gorm.Dialector
		d         dialect
	)

	switch backendType {
	case storage.BackendMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		dialector = mysql.Open(dsn)
		d = mysqlDialect{}

	case storage.BackendPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
		dialector = postgres.Open(dsn)
		d = postgresDialect{}

	case storage.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// WAL for concurrent readers, busy_timeout to ride out the
		// single-writer window.
		dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
		d = sqliteDialect{}

	default:
		return nil, fmt.Errorf("unsupported SQL backend %q", backendType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", backendType, err)
	}

	if backendType != storage.BackendSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return &Store{db: db, dialect: d}, nil
}

// NewWithDB wraps an existing gorm handle. Used by tests.
func NewWithDB(db *gorm.DB, backendType storage.BackendType) *Store {
	var d dialect
	switch backendType {
	case storage.BackendMySQL:
		d = mysqlDialect{}
	case storage.BackendPostgres:
		d = postgresDialect{}
	default:
		d = sqliteDialect{}
	}
	return &Store{db: db, dialect: d}
}

func (s *Store) Name() string { return s.dialect.name() }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueConstraintError matches the three engines' duplicate-key errors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}

// retryable reports whether the transaction should be retried: version
// conflicts, duplicate-key races and engine deadlocks all qualify.
var errVersionConflict = errors.New("sqlstore: version conflict")

func retryable(err error) bool {
	if errors.Is(err, errVersionConflict) || isUniqueConstraintError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}

// withRetry runs fn up to maxRetries times with jittered backoff while
// it keeps failing with a retryable error.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		jitter := retryJitterMin +
			time.Duration(rand.Int63n(int64(retryJitterMax-retryJitterMin)))
		backoff := jitter * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("retries exhausted: %w", err)
}

// lockedFirst loads one row FOR UPDATE where the dialect supports it.
func (s *Store) lockedFirst(tx *gorm.DB, dest any, query string, args ...any) error {
	q := tx.Where(query, args...)
	if s.dialect.supportsRowLock() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q.First(dest).Error
}

// ============================================================================
// Sequences
// ============================================================================

func (s *Store) ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error) {
	var r domain.Range
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row SequenceRow
			err := s.lockedFirst(tx, &row, "key_name = ?", key)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = SequenceRow{KeyName: key, CurrentValue: initial, UpdatedAt: time.Now().UTC()}
				if err := tx.Create(&row).Error; err != nil {
					return err // duplicate-key race is retryable
				}
			} else if err != nil {
				return err
			}

			next, reserved, err := storage.Advance(row.CurrentValue, count, delta)
			if err != nil {
				return err
			}

			res := tx.Model(&SequenceRow{}).
				Where("key_name = ? AND version = ?", key, row.Version).
				Updates(map[string]any{
					"current_value": next,
					"version":       row.Version + 1,
					"updated_at":    time.Now().UTC(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}
			r = reserved
			return nil
		})
	})
	return r, err
}

func (s *Store) GetSequence(ctx context.Context, key string) (domain.SequenceState, error) {
	var row SequenceRow
	if err := s.db.WithContext(ctx).Where("key_name = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SequenceState{}, storage.ErrNotFound
		}
		return domain.SequenceState{}, err
	}
	return domain.SequenceState{
		Key:       row.KeyName,
		Current:   row.CurrentValue,
		Version:   row.Version,
		Witness:   row.Witness,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *Store) ResetSequence(ctx context.Context, key string, newValue int64, witness string) (bool, error) {
	performed := false
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row SequenceRow
			err := s.lockedFirst(tx, &row, "key_name = ?", key)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = SequenceRow{
					KeyName:      key,
					CurrentValue: newValue,
					Witness:      witness,
					UpdatedAt:    time.Now().UTC(),
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				performed = true
				return nil
			} else if err != nil {
				return err
			}

			if row.Witness == witness {
				performed = false
				return nil // another worker already reset this scope
			}

			res := tx.Model(&SequenceRow{}).
				Where("key_name = ? AND version = ?", key, row.Version).
				Updates(map[string]any{
					"current_value": newValue,
					"version":       row.Version + 1,
					"witness":       witness,
					"updated_at":    time.Now().UTC(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}
			performed = true
			return nil
		})
	})
	return performed, err
}

// ============================================================================
// Configs
// ============================================================================

func (s *Store) GetConfig(ctx context.Context, key string) (*domain.KeyConfig, error) {
	var row ConfigRow
	if err := s.db.WithContext(ctx).Where("key_name = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var cfg domain.KeyConfig
	if err := json.Unmarshal([]byte(row.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("corrupt config for %q: %w", key, err)
	}
	return &cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg *domain.KeyConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	row := ConfigRow{
		KeyName:    cfg.Key,
		IDType:     string(cfg.Type),
		ConfigJSON: string(data),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"id_type", "config_json", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) ListConfigs(ctx context.Context, from string, size int) ([]domain.ConfigSummary, string, bool, error) {
	var rows []ConfigRow
	if err := s.db.WithContext(ctx).
		Select("key_name", "id_type").
		Where("key_name > ?", from).
		Order("key_name").
		Limit(size + 1).
		Find(&rows).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}

	items := make([]domain.ConfigSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.ConfigSummary{Key: row.KeyName, Type: domain.IDType(row.IDType)})
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
	row := TokenRow{
		KeyName:   key,
		TokenHash: hex.EncodeToString(hash),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) GetToken(ctx context.Context, key string) ([]byte, error) {
	var row TokenRow
	if err := s.db.WithContext(ctx).Where("key_name = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	hash, err := hex.DecodeString(row.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("corrupt token for %q: %w", key, err)
	}
	return hash, nil
}

// ============================================================================
// Worker leases
// ============================================================================

func (s *Store) AcquireWorkerID(ctx context.Context, key string, poolSize int, fingerprint string, ttl time.Duration) (domain.WorkerLease, error) {
	var lease domain.WorkerLease
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.dialect.lockTx(tx, "lease:"+key); err != nil {
				return err
			}
			defer s.dialect.unlockTx(tx, "lease:"+key) //nolint:errcheck

			now := time.Now().UTC()
			if err := tx.Where("key_name = ? AND expires_at <= ?", key, now).
				Delete(&LeaseRow{}).Error; err != nil {
				return err
			}

			// Renew a lease already held by this client.
			var own LeaseRow
			err := tx.Where("key_name = ? AND fingerprint = ?", key, fingerprint).First(&own).Error
			if err == nil {
				own.ExpiresAt = now.Add(ttl)
				if err := tx.Save(&own).Error; err != nil {
					return err
				}
				lease = domain.WorkerLease{Key: key, WorkerID: own.WorkerID, Fingerprint: fingerprint, ExpiresAt: own.ExpiresAt}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			var taken []int
			if err := tx.Model(&LeaseRow{}).
				Where("key_name = ?", key).
				Order("worker_id").
				Pluck("worker_id", &taken).Error; err != nil {
				return err
			}

			free := -1
			next := 0
			for _, id := range taken {
				if id != next {
					break
				}
				next++
			}
			if next < poolSize {
				free = next
			}
			if free < 0 {
				return storage.ErrPoolExhausted
			}

			row := LeaseRow{
				KeyName:     key,
				WorkerID:    free,
				Fingerprint: fingerprint,
				ExpiresAt:   now.Add(ttl),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err // duplicate-key race is retryable
			}
			lease = domain.WorkerLease{Key: key, WorkerID: free, Fingerprint: fingerprint, ExpiresAt: row.ExpiresAt}
			return nil
		})
	})
	return lease, err
}

// ============================================================================
// Distributed lock
// ============================================================================

func (s *Store) TryAcquireLock(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.dialect.lockTx(tx, "lock:"+lockKey); err != nil {
				return err
			}
			defer s.dialect.unlockTx(tx, "lock:"+lockKey) //nolint:errcheck

			now := time.Now().UTC()
			var row LockRow
			err := s.lockedFirst(tx, &row, "lock_key = ?", lockKey)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row = LockRow{LockKey: lockKey, OwnerID: ownerID, ExpiresAt: now.Add(ttl)}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				acquired = true
				return nil
			} else if err != nil {
				return err
			}

			if row.OwnerID != ownerID && now.Before(row.ExpiresAt) {
				acquired = false
				return nil
			}

			res := tx.Model(&LockRow{}).
				Where("lock_key = ?", lockKey).
				Updates(map[string]any{"owner_id": ownerID, "expires_at": now.Add(ttl)})
			if res.Error != nil {
				return res.Error
			}
			acquired = true
			return nil
		})
	})
	return acquired, err
}

func (s *Store) ReleaseLock(ctx context.Context, lockKey, ownerID string) error {
	return s.db.WithContext(ctx).
		Where("lock_key = ? AND owner_id = ?", lockKey, ownerID).
		Delete(&LockRow{}).Error
}

// ============================================================================
// Schema and health
// ============================================================================

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if !s.db.WithContext(ctx).Migrator().HasTable(&SchemaRow{}) {
		return 0, nil
	}
	var version *int
	if err := s.db.WithContext(ctx).Model(&SchemaRow{}).
		Select("MAX(version)").Scan(&version).Error; err != nil {
		return 0, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	row := SchemaRow{Version: version, AppliedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *Store) InitSchema(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(allModels()...)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
