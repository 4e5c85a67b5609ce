// Package factory builds a storage backend from configuration.
// It lives apart from pkg/storage so the backend packages can import
// the contract without a cycle.
package factory

import (
	"fmt"

	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/storage/badgerstore"
	"github.com/marmos91/idbuilder/pkg/storage/file"
	"github.com/marmos91/idbuilder/pkg/storage/redis"
	"github.com/marmos91/idbuilder/pkg/storage/sqlstore"
)

// New creates the backend selected by cfg.Type. The configuration must
// already have defaults applied and be validated.
func New(cfg storage.Config) (storage.Backend, error) {
	switch cfg.Type {
	case storage.BackendFile:
		return file.New(cfg.File)
	case storage.BackendRedis:
		return redis.New(cfg.Redis), nil
	case storage.BackendMySQL, storage.BackendPostgres, storage.BackendSQLite:
		return sqlstore.New(cfg.Type, cfg.SQL)
	case storage.BackendBadger:
		return badgerstore.New(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
