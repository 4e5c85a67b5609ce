package storagetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/marmos91/idbuilder/pkg/storage"
)

// runSequenceTests runs all sequence operation conformance tests.
func runSequenceTests(t *testing.T, factory BackendFactory) {
	t.Run("ReserveFirstRange", func(t *testing.T) { testReserveFirstRange(t, factory) })
	t.Run("ReserveContiguous", func(t *testing.T) { testReserveContiguous(t, factory) })
	t.Run("ReserveWithDelta", func(t *testing.T) { testReserveWithDelta(t, factory) })
	t.Run("ReserveDisjointConcurrent", func(t *testing.T) { testReserveDisjointConcurrent(t, factory) })
	t.Run("ReserveOverflow", func(t *testing.T) { testReserveOverflow(t, factory) })
	t.Run("GetSequenceNotFound", func(t *testing.T) { testGetSequenceNotFound(t, factory) })
	t.Run("ResetWitness", func(t *testing.T) { testResetWitness(t, factory) })
	t.Run("ResetWitnessIdempotent", func(t *testing.T) { testResetWitnessIdempotent(t, factory) })
}

// testReserveFirstRange verifies that the first reservation on a fresh
// key materializes the counter from the initial value.
func testReserveFirstRange(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	// initial = base - delta = 0, so the first value handed out is 1.
	r, err := b.ReserveRange(ctx, "orders", 10, 1, 0)
	if err != nil {
		t.Fatalf("ReserveRange() failed: %v", err)
	}

	if r.First != 1 {
		t.Errorf("First = %d, want 1", r.First)
	}
	if r.Last != 10 {
		t.Errorf("Last = %d, want 10", r.Last)
	}

	state, err := b.GetSequence(ctx, "orders")
	if err != nil {
		t.Fatalf("GetSequence() failed: %v", err)
	}
	if state.Current != 10 {
		t.Errorf("Current = %d, want 10", state.Current)
	}
}

// testReserveContiguous verifies that sequential reservations hand out
// adjacent ranges.
func testReserveContiguous(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	r1, err := b.ReserveRange(ctx, "orders", 100, 1, 0)
	if err != nil {
		t.Fatalf("ReserveRange() #1 failed: %v", err)
	}
	r2, err := b.ReserveRange(ctx, "orders", 100, 1, 0)
	if err != nil {
		t.Fatalf("ReserveRange() #2 failed: %v", err)
	}

	if r2.First != r1.Last+1 {
		t.Errorf("second range starts at %d, want %d", r2.First, r1.Last+1)
	}
}

// testReserveWithDelta verifies stride semantics: a delta of 5 yields
// values 5 apart.
func testReserveWithDelta(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	// base 100, delta 5: initial = 95, first value 100.
	r, err := b.ReserveRange(ctx, "stride", 3, 5, 95)
	if err != nil {
		t.Fatalf("ReserveRange() failed: %v", err)
	}

	if r.First != 100 {
		t.Errorf("First = %d, want 100", r.First)
	}
	if r.Last != 110 {
		t.Errorf("Last = %d, want 110", r.Last)
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
}

// testReserveDisjointConcurrent verifies the core correctness property:
// concurrent reservations never hand out overlapping ranges.
func testReserveDisjointConcurrent(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	const (
		workers = 8
		rounds  = 20
		size    = 10
	)

	var mu sync.Mutex
	seen := make(map[int64]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				r, err := b.ReserveRange(ctx, "concurrent", size, 1, 0)
				if err != nil {
					t.Errorf("ReserveRange() failed: %v", err)
					return
				}
				mu.Lock()
				for v := r.First; v <= r.Last; v++ {
					seen[v]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	want := workers * rounds * size
	if len(seen) != want {
		t.Errorf("distinct values = %d, want %d", len(seen), want)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %d handed out %d times", v, n)
		}
	}
}

// testReserveOverflow verifies that a reservation past int64 max fails
// with ErrExhausted and leaves the counter untouched.
func testReserveOverflow(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	near := int64(math.MaxInt64 - 5)
	if _, err := b.ReserveRange(ctx, "edge", 1, 1, near); err != nil {
		t.Fatalf("ReserveRange() setup failed: %v", err)
	}

	_, err := b.ReserveRange(ctx, "edge", 100, 1, 0)
	if !errors.Is(err, storage.ErrExhausted) {
		t.Fatalf("ReserveRange() error = %v, want ErrExhausted", err)
	}

	state, err := b.GetSequence(ctx, "edge")
	if err != nil {
		t.Fatalf("GetSequence() failed: %v", err)
	}
	if state.Current != near+1 {
		t.Errorf("Current = %d, want %d (unchanged after failed reserve)", state.Current, near+1)
	}
}

// testGetSequenceNotFound verifies the sentinel for missing keys.
func testGetSequenceNotFound(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)

	_, err := b.GetSequence(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetSequence() error = %v, want ErrNotFound", err)
	}
}

// testResetWitness verifies that a reset rewinds the counter and that
// subsequent reservations start over.
func testResetWitness(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if _, err := b.ReserveRange(ctx, "daily", 500, 1, 0); err != nil {
		t.Fatalf("ReserveRange() failed: %v", err)
	}

	performed, err := b.ResetSequence(ctx, "daily", 0, "2026-08-24")
	if err != nil {
		t.Fatalf("ResetSequence() failed: %v", err)
	}
	if !performed {
		t.Fatal("ResetSequence() performed = false, want true")
	}

	r, err := b.ReserveRange(ctx, "daily", 1, 1, 0)
	if err != nil {
		t.Fatalf("ReserveRange() after reset failed: %v", err)
	}
	if r.First != 1 {
		t.Errorf("First = %d after reset, want 1", r.First)
	}
}

// testResetWitnessIdempotent verifies that a second reset with the same
// witness is a no-op, so racing workers cannot rewind twice.
func testResetWitnessIdempotent(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if _, err := b.ResetSequence(ctx, "daily", 0, "2026-08-24"); err != nil {
		t.Fatalf("ResetSequence() #1 failed: %v", err)
	}
	if _, err := b.ReserveRange(ctx, "daily", 50, 1, 0); err != nil {
		t.Fatalf("ReserveRange() failed: %v", err)
	}

	performed, err := b.ResetSequence(ctx, "daily", 0, "2026-08-24")
	if err != nil {
		t.Fatalf("ResetSequence() #2 failed: %v", err)
	}
	if performed {
		t.Fatal("ResetSequence() performed = true for same witness, want false")
	}

	state, err := b.GetSequence(ctx, "daily")
	if err != nil {
		t.Fatalf("GetSequence() failed: %v", err)
	}
	if state.Current != 50 {
		t.Errorf("Current = %d, want 50 (no-op reset must not rewind)", state.Current)
	}

	// A new scope witness does reset.
	performed, err = b.ResetSequence(ctx, "daily", 0, "2026-08-25")
	if err != nil {
		t.Fatalf("ResetSequence() #3 failed: %v", err)
	}
	if !performed {
		t.Fatal("ResetSequence() performed = false for new witness, want true")
	}
}
