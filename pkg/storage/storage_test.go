package storage

import (
	"errors"
	"math"
	"testing"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		current   int64
		count     int64
		delta     int64
		wantNext  int64
		wantFirst int64
		wantLast  int64
		wantErr   error
	}{
		{
			name:    "single value from zero",
			current: 0, count: 1, delta: 1,
			wantNext: 1, wantFirst: 1, wantLast: 1,
		},
		{
			name:    "batch of ten",
			current: 100, count: 10, delta: 1,
			wantNext: 110, wantFirst: 101, wantLast: 110,
		},
		{
			name:    "stride of five",
			current: 95, count: 3, delta: 5,
			wantNext: 110, wantFirst: 100, wantLast: 110,
		},
		{
			name:    "zero count rejected",
			current: 0, count: 0, delta: 1,
			wantErr: errors.New("storage: count and delta must be >= 1"),
		},
		{
			name:    "overflow near max",
			current: math.MaxInt64 - 5, count: 10, delta: 1,
			wantErr: ErrExhausted,
		},
		{
			name:    "span multiplication overflow",
			current: 0, count: math.MaxInt64, delta: 2,
			wantErr: ErrExhausted,
		},
		{
			name:    "exactly reaches max",
			current: math.MaxInt64 - 10, count: 10, delta: 1,
			wantNext: math.MaxInt64, wantFirst: math.MaxInt64 - 9, wantLast: math.MaxInt64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, r, err := Advance(tt.current, tt.count, tt.delta)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Advance() error = nil, want %v", tt.wantErr)
				}
				if errors.Is(tt.wantErr, ErrExhausted) && !errors.Is(err, ErrExhausted) {
					t.Fatalf("Advance() error = %v, want ErrExhausted", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Advance() failed: %v", err)
			}
			if next != tt.wantNext {
				t.Errorf("next = %d, want %d", next, tt.wantNext)
			}
			if r.First != tt.wantFirst {
				t.Errorf("First = %d, want %d", r.First, tt.wantFirst)
			}
			if r.Last != tt.wantLast {
				t.Errorf("Last = %d, want %d", r.Last, tt.wantLast)
			}
			if r.Count() != tt.count {
				t.Errorf("Count() = %d, want %d", r.Count(), tt.count)
			}
		})
	}
}
