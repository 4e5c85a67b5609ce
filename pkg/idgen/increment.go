package idgen

import (
	"context"
	"math/rand"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// IncrementService issues monotonic numeric IDs.
type IncrementService struct {
	backend storage.Backend
	seq     *sequence.Manager
}

// NewIncrementService creates the increment service.
func NewIncrementService(backend storage.Backend, seq *sequence.Manager) *IncrementService {
	return &IncrementService{backend: backend, seq: seq}
}

// Generate issues size IDs for key. A delta of 0 uses the config's
// default; explicit deltas are capped at the config's
// max_request_delta. randDelta additionally enables randomized steps
// for this request even if the config leaves them off.
func (s *IncrementService) Generate(ctx context.Context, key string, size, delta int64, randDelta bool) ([]int64, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	cfg, err := resolveConfig(ctx, s.backend, key, domain.IDTypeIncrement)
	if err != nil {
		return nil, err
	}
	inc := cfg.Increment

	if delta == 0 {
		delta = inc.Delta
	}
	if delta < 1 {
		return nil, apierr.Newf(apierr.CodeBadParams, "delta must be >= 1, got %d", delta)
	}
	if delta > inc.MaxRequestDelta {
		return nil, apierr.Newf(apierr.CodeDeltaTooLarge, "delta %d exceeds max_request_delta %d", delta, inc.MaxRequestDelta)
	}

	if randDelta || inc.RandDelta {
		return s.generateRandomized(ctx, key, inc, size, delta)
	}

	values, err := s.seq.Draw(ctx, sequence.DrawSpec{
		Key:     key,
		Delta:   delta,
		Initial: inc.Base - delta,
		Max:     inc.EffectiveMax(),
		Floor:   inc.Base,
	}, size)
	if err != nil {
		return nil, mapDrawError(err)
	}
	return values, nil
}

// generateRandomized issues IDs with a uniformly random step in
// [1, delta] per value. Uniqueness is kept by reserving pessimistically:
// the counter advances by size*max_request_delta, carving one slot of
// width max_request_delta per value, and each value lands inside its
// slot. Unused headroom is discarded, so these draws bypass the chunk
// cache entirely.
func (s *IncrementService) generateRandomized(ctx context.Context, key string, inc *domain.IncrementConfig, size, delta int64) ([]int64, error) {
	maxDelta := inc.MaxRequestDelta

	r, err := s.backend.ReserveRange(ctx, key, size, maxDelta, inc.Base-maxDelta)
	if err != nil {
		return nil, mapDrawError(err)
	}

	max := inc.EffectiveMax()
	values := make([]int64, 0, size)
	for i := int64(0); i < size; i++ {
		slotStart := r.First + i*maxDelta - maxDelta
		v := slotStart + 1 + rand.Int63n(delta)
		if v > max {
			return nil, apierr.Newf(apierr.CodeExhausted, "sequence %q passed max value %d", key, max)
		}
		values = append(values, v)
	}
	return values, nil
}
