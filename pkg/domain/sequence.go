package domain

import "time"

// SequenceState is the per-key persistent counter record. Current holds
// the last value handed out by storage; Version backs the SQL optimistic
// update; Witness records the most recent reset scope marker.
type SequenceState struct {
	Key       string    `json:"key"`
	Current   int64     `json:"current"`
	Version   int64     `json:"version"`
	Witness   string    `json:"witness,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Range is an inclusive reserved counter range [First, Last] stepped by
// Delta. Ranges reserved for the same key are disjoint across workers.
type Range struct {
	First int64
	Last  int64
	Delta int64
}

// Count returns the number of values in the range.
func (r Range) Count() int64 {
	if r.Delta <= 0 {
		return 0
	}
	return (r.Last-r.First)/r.Delta + 1
}

// WorkerLease records one leased snowflake worker id.
type WorkerLease struct {
	Key         string    `json:"key"`
	WorkerID    int       `json:"worker_id"`
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at time now.
func (l WorkerLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// ConfigSummary is one row of a paginated config listing.
type ConfigSummary struct {
	Key  string `json:"key"`
	Type IDType `json:"id_type"`
}
