// Package storagetest provides a conformance test suite for storage
// backend implementations.
//
// All backends (file, redis, mysql, postgres, sqlite, badger) should
// pass these tests. The suite verifies that every implementation
// satisfies the Backend behavioral contract, catching regressions when
// backend code changes.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storagetest.RunConformanceSuite(t, func(t *testing.T) storage.Backend {
//	        b, err := file.New(storage.FileConfig{Dir: t.TempDir()})
//	        ...
//	        return b
//	    })
//	}
//
// The factory function receives *testing.T so it can call t.TempDir()
// for backends that need filesystem paths and t.Cleanup for teardown.
package storagetest

import (
	"context"
	"testing"

	"github.com/marmos91/idbuilder/pkg/storage"
)

// BackendFactory creates a fresh Backend instance for each test.
type BackendFactory func(t *testing.T) storage.Backend

// RunConformanceSuite runs the full conformance test suite against the
// provided backend factory. Each test gets a fresh backend to ensure
// isolation.
//
// The suite covers three categories:
//   - Sequences: range reservation, disjointness, witness resets
//   - Configs: config and token round trips, cursor pagination
//   - Coordination: worker-id leases, distributed locks, schema version
func RunConformanceSuite(t *testing.T, factory BackendFactory) {
	t.Helper()

	t.Run("Sequences", func(t *testing.T) {
		runSequenceTests(t, factory)
	})

	t.Run("Configs", func(t *testing.T) {
		runConfigTests(t, factory)
	})

	t.Run("Coordination", func(t *testing.T) {
		runCoordinationTests(t, factory)
	})
}

// newBackend builds a backend and runs InitSchema so tests start from a
// usable state.
func newBackend(t *testing.T, factory BackendFactory) storage.Backend {
	t.Helper()

	b := factory(t)
	if err := b.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return b
}
