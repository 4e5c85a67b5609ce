package idgen

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// FormattedService issues templated string IDs with an embedded
// counter. The counter lives under a derived storage key so it never
// collides with a client-visible increment key.
type FormattedService struct {
	backend storage.Backend
	seq     *sequence.Manager

	// now is swappable for tests.
	now func() time.Time
}

// NewFormattedService creates the formatted service.
func NewFormattedService(backend storage.Backend, seq *sequence.Manager) *FormattedService {
	return &FormattedService{backend: backend, seq: seq, now: time.Now}
}

// Generate renders size formatted IDs for key.
func (s *FormattedService) Generate(ctx context.Context, key string, size int64) ([]string, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	cfg, err := resolveConfig(ctx, s.backend, key, domain.IDTypeFormatted)
	if err != nil {
		return nil, err
	}

	counter := cfg.Formatted.CounterPart()
	now := s.now().In(counter.Location())
	counterKey := domain.DerivedKeyPrefix + key

	if err := s.maybeReset(ctx, counterKey, counter, now); err != nil {
		return nil, err
	}

	values, err := s.seq.Draw(ctx, sequence.DrawSpec{
		Key:     counterKey,
		Delta:   1,
		Initial: 0,
		Floor:   1,
	}, size)
	if err != nil {
		return nil, mapDrawError(err)
	}

	rng := rand.New(rand.NewSource(now.UnixNano()))
	ids := make([]string, 0, size)
	for _, n := range values {
		ids = append(ids, renderParts(cfg.Formatted.Parts, now, n, rng))
	}
	return ids, nil
}

// maybeReset rewinds the derived counter when the reset scope rolled
// over. The witness is re-read at the start of every batch, so a reset
// performed by another worker is noticed promptly; the storage CAS
// guarantees at most one worker rewinds per scope transition. Either
// way the local chunks predate the new scope and are dropped.
func (s *FormattedService) maybeReset(ctx context.Context, counterKey string, counter *domain.Part, now time.Time) error {
	scope := counter.EffectiveResetScope()
	if scope == domain.ResetNone {
		return nil
	}
	witness := scope.Witness(now)

	state, err := s.backend.GetSequence(ctx, counterKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return mapDrawError(err)
	}
	if err == nil && state.Witness == witness {
		return nil
	}

	// Losing the CAS to another worker is fine; either way our local
	// chunks predate the new scope and must go.
	if _, err := s.backend.ResetSequence(ctx, counterKey, 0, witness); err != nil {
		return mapDrawError(err)
	}
	s.seq.Invalidate(counterKey)
	return nil
}
