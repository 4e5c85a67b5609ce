package sqlstore_test

import (
	"path/filepath"
	"testing"

	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/storage/sqlstore"
	"github.com/marmos91/idbuilder/pkg/storage/storagetest"
)

// The SQL store is exercised through SQLite. The MySQL and PostgreSQL
// paths share the same transaction logic and differ only in dialector
// and advisory-lock hooks, which need a live server to test.
func TestConformance(t *testing.T) {
	storagetest.RunConformanceSuite(t, func(t *testing.T) storage.Backend {
		path := filepath.Join(t.TempDir(), "idbuilder.db")
		b, err := sqlstore.New(storage.BackendSQLite, storage.SQLConfig{Path: path})
		if err != nil {
			t.Fatalf("sqlstore.New() failed: %v", err)
		}
		t.Cleanup(func() {
			b.Close()
		})
		return b
	})
}
