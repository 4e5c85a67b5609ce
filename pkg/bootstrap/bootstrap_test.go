package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/storage/file"
)

func newBackend(t *testing.T) storage.Backend {
	t.Helper()

	b, err := file.New(storage.FileConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRunInitializesFreshBackend(t *testing.T) {
	b := newBackend(t)

	c := NewCoordinator(b, time.Minute)
	require.NoError(t, c.Run(context.Background()))

	version, err := b.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestRunIsIdempotent(t *testing.T) {
	b := newBackend(t)

	require.NoError(t, NewCoordinator(b, time.Minute).Run(context.Background()))
	require.NoError(t, NewCoordinator(b, time.Minute).Run(context.Background()))

	version, err := b.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestRunConcurrentWorkers(t *testing.T) {
	b := newBackend(t)

	// All workers share the backend; exactly one runs the init, the
	// rest wait on the version record. Every Run must come back clean.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = NewCoordinator(b, time.Minute).Run(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}

	version, err := b.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
