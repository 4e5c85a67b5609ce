package sequence

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// stubBackend implements just enough of storage.Backend for the
// manager: an in-memory counter per key with reservation accounting.
type stubBackend struct {
	storage.Backend

	mu       sync.Mutex
	counters map[string]int64
	reserves int
}

func newStubBackend() *stubBackend {
	return &stubBackend{counters: make(map[string]int64)}
}

func (s *stubBackend) ReserveRange(ctx context.Context, key string, count, delta, initial int64) (domain.Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserves++

	current, ok := s.counters[key]
	if !ok {
		current = initial
	}
	next, r, err := storage.Advance(current, count, delta)
	if err != nil {
		return domain.Range{}, err
	}
	s.counters[key] = next
	return r, nil
}

func (s *stubBackend) reserveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserves
}

func spec(key string) DrawSpec {
	return DrawSpec{Key: key, Delta: 1, Initial: 0, Max: math.MaxInt64, Floor: 1}
}

func TestDrawSingleValues(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 100})

	for want := int64(1); want <= 5; want++ {
		values, err := m.Draw(context.Background(), spec("orders"), 1)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, want, values[0])
	}
}

func TestDrawServesFromChunk(t *testing.T) {
	backend := newStubBackend()
	m := NewManager(backend, Config{BatchSize: 100})

	for i := 0; i < 50; i++ {
		_, err := m.Draw(context.Background(), spec("orders"), 1)
		require.NoError(t, err)
	}

	// 50 draws out of a 100-value chunk: one reservation, no prefetch
	// (fill fraction still 0.5).
	assert.Equal(t, 1, backend.reserveCount())
}

func TestDrawBatch(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 10})

	values, err := m.Draw(context.Background(), spec("orders"), 25)
	require.NoError(t, err)
	require.Len(t, values, 25)

	for i, v := range values {
		assert.Equal(t, int64(i+1), v, "values must be dense from 1")
	}
}

func TestDrawWithDelta(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 10})

	s := DrawSpec{Key: "stride", Delta: 5, Initial: 95, Max: math.MaxInt64, Floor: 100}
	values, err := m.Draw(context.Background(), s, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{100, 105, 110}, values)
}

func TestDrawMonotonic(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 7})

	var last int64
	for i := 0; i < 100; i++ {
		values, err := m.Draw(context.Background(), spec("orders"), 3)
		require.NoError(t, err)
		for _, v := range values {
			require.Greater(t, v, last, "stream must be strictly increasing")
			last = v
		}
	}
}

func TestDrawConcurrentUnique(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 50})

	const (
		goroutines = 8
		perG       = 200
	)

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				values, err := m.Draw(context.Background(), spec("orders"), 1)
				if err != nil {
					t.Errorf("Draw() failed: %v", err)
					return
				}
				mu.Lock()
				if seen[values[0]] {
					t.Errorf("value %d issued twice", values[0])
				}
				seen[values[0]] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perG)
}

func TestDrawMaxValuePoisons(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 10})

	s := DrawSpec{Key: "capped", Delta: 1, Initial: 0, Max: 10, Floor: 1}

	values, err := m.Draw(context.Background(), s, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), values[9])

	_, err = m.Draw(context.Background(), s, 1)
	require.ErrorIs(t, err, storage.ErrExhausted)

	// Poisoned: fails fast without another reservation.
	_, err = m.Draw(context.Background(), s, 1)
	require.ErrorIs(t, err, storage.ErrExhausted)
}

func TestInvalidateClearsPoison(t *testing.T) {
	m := NewManager(newStubBackend(), Config{BatchSize: 10})

	s := DrawSpec{Key: "capped", Delta: 1, Initial: 0, Max: 10, Floor: 1}
	_, err := m.Draw(context.Background(), s, 10)
	require.NoError(t, err)
	_, err = m.Draw(context.Background(), s, 1)
	require.ErrorIs(t, err, storage.ErrExhausted)

	// Admin raised the cap.
	m.Invalidate("capped")
	s.Max = 100

	// Failed reservations burned counter space, so the exact value is
	// not pinned down; it just has to be past the old cap.
	values, err := m.Draw(context.Background(), s, 1)
	require.NoError(t, err)
	assert.Greater(t, values[0], int64(10))
}

func TestDrawDiscardsStaleChunk(t *testing.T) {
	backend := newStubBackend()
	m := NewManager(backend, Config{BatchSize: 100})

	s := spec("daily")
	_, err := m.Draw(context.Background(), s, 5)
	require.NoError(t, err)

	// A reset rewound the stored counter; the cached chunk now holds
	// pre-reset values. Raising the floor past them forces a re-reserve.
	backend.mu.Lock()
	backend.counters["daily"] = 1000
	backend.mu.Unlock()
	s.Floor = 500

	values, err := m.Draw(context.Background(), s, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), values[0])
}

func TestPrefetchExtendsChunk(t *testing.T) {
	backend := newStubBackend()
	m := NewManager(backend, Config{BatchSize: 10, PrefetchThreshold: 0.5})

	// Draw 8 of 10: fill fraction 0.2 < 0.5 triggers a prefetch.
	_, err := m.Draw(context.Background(), spec("hot"), 8)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return backend.reserveCount() == 2
	}, time.Second, 5*time.Millisecond, "prefetch should reserve a successor chunk")

	// The successor is consumed after the current chunk, in order.
	values, err := m.Draw(context.Background(), spec("hot"), 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10, 11, 12}, values)
	assert.Equal(t, 2, backend.reserveCount(), "no extra reservation needed")
}
