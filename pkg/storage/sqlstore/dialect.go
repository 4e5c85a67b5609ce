package sqlstore

import (
	"fmt"

	"gorm.io/gorm"
)

// dialect abstracts the engine differences the store cares about:
// row-level locking support and the native advisory-lock primitive
// used to serialize lease and lock writes.
type dialect interface {
	name() string
	supportsRowLock() bool
	lockTx(tx *gorm.DB, key string) error
	unlockTx(tx *gorm.DB, key string) error
}

type mysqlDialect struct{}

func (mysqlDialect) name() string          { return "mysql" }
func (mysqlDialect) supportsRowLock() bool { return true }

func (mysqlDialect) lockTx(tx *gorm.DB, key string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(MD5(?), 5)", key).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("GET_LOCK timed out for %q", key)
	}
	return nil
}

func (mysqlDialect) unlockTx(tx *gorm.DB, key string) error {
	var ok int
	return tx.Raw("SELECT RELEASE_LOCK(MD5(?))", key).Scan(&ok).Error
}

type postgresDialect struct{}

func (postgresDialect) name() string          { return "postgres" }
func (postgresDialect) supportsRowLock() bool { return true }

func (postgresDialect) lockTx(tx *gorm.DB, key string) error {
	// Transaction-scoped: released automatically on commit or rollback.
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

func (postgresDialect) unlockTx(tx *gorm.DB, key string) error { return nil }

type sqliteDialect struct{}

func (sqliteDialect) name() string          { return "sqlite" }
func (sqliteDialect) supportsRowLock() bool { return false }

// SQLite serializes writers at the database level already.
func (sqliteDialect) lockTx(tx *gorm.DB, key string) error   { return nil }
func (sqliteDialect) unlockTx(tx *gorm.DB, key string) error { return nil }
