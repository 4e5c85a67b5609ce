package idgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

func snowflakeKey(t *testing.T, backend storage.Backend, key string, sf domain.SnowflakeConfig) {
	t.Helper()
	sf.ApplyDefaults()
	putConfig(t, backend, &domain.KeyConfig{
		Key:       key,
		Type:      domain.IDTypeSnowflake,
		Snowflake: &sf,
	})
}

func TestSnowflakeDescribe(t *testing.T) {
	backend := newBackend(t)
	snowflakeKey(t, backend, "events", domain.SnowflakeConfig{})
	svc := NewSnowflakeService(backend, time.Minute, nil)

	desc, err := svc.Describe(context.Background(), "events", "node-a")
	require.NoError(t, err)

	assert.Equal(t, uint8(1), desc.SkipSize)
	assert.Equal(t, domain.DefaultSnowflakeEpoch, desc.BaseTS)
	assert.Equal(t, uint8(41), desc.TSSize)
	assert.Equal(t, uint8(10), desc.WorkerIDSize)
	assert.Equal(t, uint8(12), desc.SeqSize)
	assert.Equal(t, 0, desc.WorkerID)
	assert.False(t, desc.LeaseExpiresAt.IsZero())
}

func TestSnowflakeDistinctWorkerIDs(t *testing.T) {
	backend := newBackend(t)
	snowflakeKey(t, backend, "events", domain.SnowflakeConfig{})
	svc := NewSnowflakeService(backend, time.Minute, nil)

	a, err := svc.Describe(context.Background(), "events", "node-a")
	require.NoError(t, err)
	b, err := svc.Describe(context.Background(), "events", "node-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.WorkerID, b.WorkerID)

	// Renewal keeps the id.
	again, err := svc.Describe(context.Background(), "events", "node-a")
	require.NoError(t, err)
	assert.Equal(t, a.WorkerID, again.WorkerID)
}

func TestSnowflakePoolExhausted(t *testing.T) {
	backend := newBackend(t)
	// worker_id_size 1: pool of two ids.
	snowflakeKey(t, backend, "tiny", domain.SnowflakeConfig{WorkerIDSize: 1})
	svc := NewSnowflakeService(backend, time.Minute, nil)

	_, err := svc.Describe(context.Background(), "tiny", "node-a")
	require.NoError(t, err)
	_, err = svc.Describe(context.Background(), "tiny", "node-b")
	require.NoError(t, err)

	_, err = svc.Describe(context.Background(), "tiny", "node-c")
	requireCode(t, err, apierr.CodeUnavailable)
}

func TestSnowflakeValidation(t *testing.T) {
	backend := newBackend(t)
	incrementKey(t, backend, "orders", domain.IncrementConfig{})
	svc := NewSnowflakeService(backend, time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Describe(ctx, "events", "node-a")
	requireCode(t, err, apierr.CodeNotFound)

	_, err = svc.Describe(ctx, "orders", "node-a")
	requireCode(t, err, apierr.CodeInvalidKey)

	_, err = svc.Describe(ctx, "events", "")
	requireCode(t, err, apierr.CodeBadParams)
}
