// Package sequence implements the per-key chunk cache over a storage
// backend. Workers draw counter values from an in-memory chunk and only
// hit storage when the chunk runs low or dry, so a key served by many
// workers still issues globally unique values: every chunk comes from
// one atomic ReserveRange and ranges never overlap.
//
// Ordering: within one worker a key's values are strictly increasing.
// Across workers values are unique but not globally ordered.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/metrics"
	"github.com/marmos91/idbuilder/pkg/storage"
)

const (
	// DefaultBatchSize is how many values one storage reservation fetches.
	DefaultBatchSize = 1000

	// DefaultPrefetchThreshold is the remaining-capacity fraction below
	// which a background prefetch is scheduled.
	DefaultPrefetchThreshold = 0.2

	// DefaultPrefetchTimeout bounds one background reservation.
	DefaultPrefetchTimeout = 5 * time.Second
)

// Config tunes the manager. Zero values fall back to the defaults.
type Config struct {
	BatchSize         int64
	PrefetchThreshold float64
	PrefetchTimeout   time.Duration

	// Metrics is optional; nil disables reservation metrics.
	Metrics *metrics.SequenceMetrics
}

// DrawSpec describes one key's draw parameters, resolved from its
// config by the calling service.
type DrawSpec struct {
	// Key is the storage counter key.
	Key string

	// Delta is the stride between consecutive values.
	Delta int64

	// Initial is the counter materialization value for a fresh key,
	// base - delta, so the first issued value is base.
	Initial int64

	// Max is the highest value the key may issue. Draws past it fail
	// with storage.ErrExhausted.
	Max int64

	// Floor is the lowest currently valid value. Chunks holding values
	// below it predate a counter reset and are discarded.
	Floor int64
}

// keyState is the per-key coordination record. Its mutex is the per-key
// critical section: draws, reservations and chunk swaps all run under
// it, so storage sees one reservation per key per worker at a time.
type keyState struct {
	mu          sync.Mutex
	cur         chunk
	successor   *chunk
	prefetching bool
	poisoned    bool
}

// Manager hands out counter values from per-key chunks.
type Manager struct {
	backend   storage.Backend
	batchSize int64
	threshold float64
	timeout   time.Duration
	metrics   *metrics.SequenceMetrics

	mu   sync.Mutex
	keys map[string]*keyState
}

// NewManager creates a manager over backend.
func NewManager(backend storage.Backend, cfg Config) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PrefetchThreshold <= 0 {
		cfg.PrefetchThreshold = DefaultPrefetchThreshold
	}
	if cfg.PrefetchTimeout <= 0 {
		cfg.PrefetchTimeout = DefaultPrefetchTimeout
	}
	return &Manager{
		backend:   backend,
		batchSize: cfg.BatchSize,
		threshold: cfg.PrefetchThreshold,
		timeout:   cfg.PrefetchTimeout,
		metrics:   cfg.Metrics,
		keys:      make(map[string]*keyState),
	}
}

func (m *Manager) state(key string) *keyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keys[key]
	if !ok {
		ks = &keyState{}
		m.keys[key] = ks
	}
	return ks
}

// Draw returns n counter values for spec.Key, strictly increasing,
// served from the local chunk and topped up from storage as needed.
// Returns storage.ErrExhausted once the key passes spec.Max or the
// counter overflows; the key then fails fast until Invalidate.
func (m *Manager) Draw(ctx context.Context, spec DrawSpec, n int64) ([]int64, error) {
	if n < 1 {
		return nil, fmt.Errorf("sequence: draw count must be >= 1")
	}
	if spec.Delta < 1 {
		return nil, fmt.Errorf("sequence: delta must be >= 1")
	}
	if spec.Max <= 0 {
		spec.Max = math.MaxInt64
	}

	ks := m.state(spec.Key)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.poisoned {
		return nil, fmt.Errorf("sequence %q: %w", spec.Key, storage.ErrExhausted)
	}

	values := make([]int64, 0, n)
	for int64(len(values)) < n {
		// A chunk reserved before a counter reset holds values from the
		// previous scope. Drop it rather than issue them.
		if ks.cur.remaining() > 0 && ks.cur.next < spec.Floor {
			ks.cur = chunk{}
			ks.successor = nil
		}

		if ks.cur.remaining() == 0 {
			if ks.successor != nil {
				ks.cur = *ks.successor
				ks.successor = nil
				continue
			}
			if err := m.refill(ctx, ks, spec, n-int64(len(values))); err != nil {
				return nil, err
			}
			continue
		}

		values = append(values, ks.cur.draw(n-int64(len(values)))...)
	}

	m.maybePrefetch(ks, spec)
	return values, nil
}

// refill reserves a fresh chunk synchronously, sized at least at the
// outstanding need and at most at the configured batch. Any surplus
// stays in the chunk for later draws.
func (m *Manager) refill(ctx context.Context, ks *keyState, spec DrawSpec, needed int64) error {
	count := needed
	if count < m.batchSize {
		count = m.batchSize
	}

	c, err := m.reserve(ctx, spec, count)
	if err != nil {
		m.metrics.RecordReserveError(metrics.ReserveRefill)
		if errorsIsExhausted(err) {
			ks.poisoned = true
		}
		return err
	}
	m.metrics.RecordReservation(metrics.ReserveRefill, count)
	ks.cur = *c
	return nil
}

// reserve performs one storage reservation and clips it at spec.Max.
func (m *Manager) reserve(ctx context.Context, spec DrawSpec, count int64) (*chunk, error) {
	r, err := m.backend.ReserveRange(ctx, spec.Key, count, spec.Delta, spec.Initial)
	if err != nil {
		return nil, err
	}

	c := &chunk{
		next:     r.First,
		end:      r.Last + spec.Delta,
		delta:    spec.Delta,
		capacity: count,
	}
	if !c.clip(spec.Max) {
		return nil, fmt.Errorf("sequence %q passed max value %d: %w", spec.Key, spec.Max, storage.ErrExhausted)
	}
	return c, nil
}

// maybePrefetch schedules a background reservation when the chunk drops
// below the watermark. At most one prefetch per key is in flight; a
// failed prefetch is dropped and the next foreground draw refills
// synchronously instead.
func (m *Manager) maybePrefetch(ks *keyState, spec DrawSpec) {
	if ks.prefetching || ks.poisoned || ks.successor != nil {
		return
	}
	if ks.cur.fillFraction() >= m.threshold {
		return
	}
	ks.prefetching = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		c, err := m.reserve(ctx, spec, m.batchSize)

		ks.mu.Lock()
		defer ks.mu.Unlock()
		ks.prefetching = false
		if err != nil {
			// Dropped on the floor: the next foreground draw refills
			// synchronously and surfaces exhaustion there.
			m.metrics.RecordReserveError(metrics.ReservePrefetch)
			logger.Debug("chunk prefetch failed",
				"key", spec.Key,
				"error", err)
			return
		}
		m.metrics.RecordReservation(metrics.ReservePrefetch, m.batchSize)
		if ks.cur.remaining() == 0 {
			ks.cur = *c
		} else {
			ks.successor = c
		}
	}()
}

// Invalidate drops the in-memory chunks for key and clears poisoning.
// Called after a counter reset or a config change raising the cap.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	ks, ok := m.keys[key]
	m.mu.Unlock()
	if !ok {
		return
	}

	ks.mu.Lock()
	ks.cur = chunk{}
	ks.successor = nil
	ks.poisoned = false
	ks.mu.Unlock()
}

func errorsIsExhausted(err error) bool {
	return errors.Is(err, storage.ErrExhausted)
}
