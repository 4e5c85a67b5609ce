package idgen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
)

func formattedKey(t *testing.T, backend storage.Backend, key string, parts ...domain.Part) {
	t.Helper()
	putConfig(t, backend, &domain.KeyConfig{
		Key:       key,
		Type:      domain.IDTypeFormatted,
		Formatted: &domain.FormattedConfig{Parts: parts},
	})
}

func TestFormattedGenerate(t *testing.T) {
	backend := newBackend(t)
	formattedKey(t, backend, "invoices",
		domain.Part{Type: domain.PartFixedChars, Value: "INV-"},
		domain.Part{Type: domain.PartDateFormat, Pattern: "yyyyMMdd"},
		domain.Part{Type: domain.PartFixedChars, Value: "-"},
		domain.Part{Type: domain.PartAutoIncrement, Length: 4, LengthFixed: true},
	)

	svc := NewFormattedService(backend, sequence.NewManager(backend, sequence.Config{BatchSize: 10}))
	svc.now = func() time.Time { return time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC) }

	ids, err := svc.Generate(context.Background(), "invoices", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"INV-20260824-0001",
		"INV-20260824-0002",
		"INV-20260824-0003",
	}, ids)

	// The counter lives under the derived key, not the client key.
	_, err = backend.GetSequence(context.Background(), domain.DerivedKeyPrefix+"invoices")
	require.NoError(t, err)
	_, err = backend.GetSequence(context.Background(), "invoices")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFormattedCountersContinueAcrossBatches(t *testing.T) {
	backend := newBackend(t)
	formattedKey(t, backend, "tickets",
		domain.Part{Type: domain.PartAutoIncrement, Length: 3, LengthFixed: true},
	)
	svc := NewFormattedService(backend, sequence.NewManager(backend, sequence.Config{BatchSize: 5}))

	var all []string
	for i := 0; i < 4; i++ {
		ids, err := svc.Generate(context.Background(), "tickets", 3)
		require.NoError(t, err)
		all = append(all, ids...)
	}

	for i, id := range all {
		assert.Equal(t, fmt.Sprintf("%03d", i+1), id)
	}
}

func TestFormattedResetScope(t *testing.T) {
	backend := newBackend(t)
	formattedKey(t, backend, "daily",
		domain.Part{Type: domain.PartDateFormat, Pattern: "yyyy-MM-dd"},
		domain.Part{Type: domain.PartFixedChars, Value: "#"},
		domain.Part{Type: domain.PartAutoIncrement, Length: 3, LengthFixed: true, ResetScope: domain.ResetDate},
	)
	svc := NewFormattedService(backend, sequence.NewManager(backend, sequence.Config{BatchSize: 5}))

	day1 := time.Date(2026, time.August, 24, 23, 50, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }

	ids, err := svc.Generate(context.Background(), "daily", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-24#001", "2026-08-24#002"}, ids)

	// Midnight rolls the scope: the counter restarts at 1.
	svc.now = func() time.Time { return day1.Add(time.Hour) }

	ids, err = svc.Generate(context.Background(), "daily", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-25#001", "2026-08-25#002"}, ids)

	// Same day again: no reset, the counter continues.
	ids, err = svc.Generate(context.Background(), "daily", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-25#003"}, ids)
}

func TestFormattedResetSurvivesOtherWorker(t *testing.T) {
	backend := newBackend(t)
	formattedKey(t, backend, "daily",
		domain.Part{Type: domain.PartAutoIncrement, Length: 3, LengthFixed: true, ResetScope: domain.ResetDate},
	)
	svc := NewFormattedService(backend, sequence.NewManager(backend, sequence.Config{BatchSize: 5}))
	svc.now = func() time.Time { return time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC) }

	// Another worker already reset the counter for today's scope.
	counterKey := domain.DerivedKeyPrefix + "daily"
	performed, err := backend.ResetSequence(context.Background(), counterKey, 0, "2026-08-25")
	require.NoError(t, err)
	require.True(t, performed)
	_, err = backend.ReserveRange(context.Background(), counterKey, 7, 1, 0)
	require.NoError(t, err)

	// This worker continues where the fleet left off instead of
	// resetting again.
	ids, err := svc.Generate(context.Background(), "daily", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"008"}, ids)
}

func TestFormattedWrongType(t *testing.T) {
	backend := newBackend(t)
	incrementKey(t, backend, "orders", domain.IncrementConfig{})
	svc := NewFormattedService(backend, sequence.NewManager(backend, sequence.Config{}))

	_, err := svc.Generate(context.Background(), "orders", 1)
	requireCode(t, err, apierr.CodeInvalidKey)
}
