package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/idbuilder/pkg/storage"
)

// runCoordinationTests runs worker-lease, lock and schema conformance tests.
func runCoordinationTests(t *testing.T, factory BackendFactory) {
	t.Run("LeaseGrant", func(t *testing.T) { testLeaseGrant(t, factory) })
	t.Run("LeaseRenewal", func(t *testing.T) { testLeaseRenewal(t, factory) })
	t.Run("LeasePoolExhausted", func(t *testing.T) { testLeasePoolExhausted(t, factory) })
	t.Run("LeaseExpiryReclaim", func(t *testing.T) { testLeaseExpiryReclaim(t, factory) })
	t.Run("LockMutualExclusion", func(t *testing.T) { testLockMutualExclusion(t, factory) })
	t.Run("LockExpiry", func(t *testing.T) { testLockExpiry(t, factory) })
	t.Run("LockRelease", func(t *testing.T) { testLockRelease(t, factory) })
	t.Run("SchemaVersion", func(t *testing.T) { testSchemaVersion(t, factory) })
}

// testLeaseGrant verifies that distinct clients receive distinct worker ids.
func testLeaseGrant(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	seen := make(map[int]bool)
	for i, fp := range []string{"node-a", "node-b", "node-c"} {
		lease, err := b.AcquireWorkerID(ctx, "events", 4, fp, time.Minute)
		if err != nil {
			t.Fatalf("AcquireWorkerID(%q) failed: %v", fp, err)
		}
		if lease.WorkerID < 0 || lease.WorkerID >= 4 {
			t.Errorf("worker id %d out of pool [0,4)", lease.WorkerID)
		}
		if seen[lease.WorkerID] {
			t.Errorf("worker id %d granted twice (client #%d)", lease.WorkerID, i)
		}
		seen[lease.WorkerID] = true
	}
}

// testLeaseRenewal verifies that the same fingerprint keeps its id.
func testLeaseRenewal(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	first, err := b.AcquireWorkerID(ctx, "events", 4, "node-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireWorkerID() #1 failed: %v", err)
	}
	second, err := b.AcquireWorkerID(ctx, "events", 4, "node-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireWorkerID() #2 failed: %v", err)
	}

	if second.WorkerID != first.WorkerID {
		t.Errorf("renewal moved worker id: %d -> %d", first.WorkerID, second.WorkerID)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) && !second.ExpiresAt.Equal(first.ExpiresAt) {
		t.Errorf("renewal did not extend expiry: %v -> %v", first.ExpiresAt, second.ExpiresAt)
	}
}

// testLeasePoolExhausted verifies the sentinel when every slot is taken.
func testLeasePoolExhausted(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	for _, fp := range []string{"node-a", "node-b"} {
		if _, err := b.AcquireWorkerID(ctx, "tiny", 2, fp, time.Minute); err != nil {
			t.Fatalf("AcquireWorkerID(%q) failed: %v", fp, err)
		}
	}

	_, err := b.AcquireWorkerID(ctx, "tiny", 2, "node-c", time.Minute)
	if !errors.Is(err, storage.ErrPoolExhausted) {
		t.Fatalf("AcquireWorkerID() error = %v, want ErrPoolExhausted", err)
	}
}

// testLeaseExpiryReclaim verifies that expired leases free their slots.
func testLeaseExpiryReclaim(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if _, err := b.AcquireWorkerID(ctx, "tiny", 1, "node-a", 10*time.Millisecond); err != nil {
		t.Fatalf("AcquireWorkerID() failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	lease, err := b.AcquireWorkerID(ctx, "tiny", 1, "node-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireWorkerID() after expiry failed: %v", err)
	}
	if lease.WorkerID != 0 {
		t.Errorf("worker id = %d, want 0 (reclaimed slot)", lease.WorkerID)
	}
}

// testLockMutualExclusion verifies that a held lock blocks other owners.
func testLockMutualExclusion(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	acquired, err := b.TryAcquireLock(ctx, "schema_init", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() #1 failed: %v", err)
	}
	if !acquired {
		t.Fatal("TryAcquireLock() #1 = false, want true")
	}

	acquired, err = b.TryAcquireLock(ctx, "schema_init", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() #2 failed: %v", err)
	}
	if acquired {
		t.Fatal("TryAcquireLock() #2 = true, want false (lock held)")
	}

	// Re-entry by the same owner extends the lock.
	acquired, err = b.TryAcquireLock(ctx, "schema_init", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() #3 failed: %v", err)
	}
	if !acquired {
		t.Fatal("TryAcquireLock() #3 = false, want true (same owner)")
	}
}

// testLockExpiry verifies TTL takeover by a new owner.
func testLockExpiry(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if _, err := b.TryAcquireLock(ctx, "schema_init", "owner-1", 10*time.Millisecond); err != nil {
		t.Fatalf("TryAcquireLock() failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	acquired, err := b.TryAcquireLock(ctx, "schema_init", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() after expiry failed: %v", err)
	}
	if !acquired {
		t.Fatal("TryAcquireLock() = false after expiry, want true")
	}
}

// testLockRelease verifies release semantics, including the non-owner no-op.
func testLockRelease(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if _, err := b.TryAcquireLock(ctx, "schema_init", "owner-1", time.Minute); err != nil {
		t.Fatalf("TryAcquireLock() failed: %v", err)
	}

	// Release by a non-owner must not free the lock.
	if err := b.ReleaseLock(ctx, "schema_init", "owner-2"); err != nil {
		t.Fatalf("ReleaseLock() by non-owner failed: %v", err)
	}
	acquired, err := b.TryAcquireLock(ctx, "schema_init", "owner-3", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() failed: %v", err)
	}
	if acquired {
		t.Fatal("lock freed by non-owner release")
	}

	if err := b.ReleaseLock(ctx, "schema_init", "owner-1"); err != nil {
		t.Fatalf("ReleaseLock() by owner failed: %v", err)
	}
	acquired, err = b.TryAcquireLock(ctx, "schema_init", "owner-3", time.Minute)
	if err != nil {
		t.Fatalf("TryAcquireLock() after release failed: %v", err)
	}
	if !acquired {
		t.Fatal("TryAcquireLock() = false after owner release, want true")
	}
}

// testSchemaVersion verifies the version record used by fleet bootstrap.
func testSchemaVersion(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	v, err := b.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != 0 {
		t.Errorf("SchemaVersion() = %d on fresh store, want 0", v)
	}

	if err := b.SetSchemaVersion(ctx, 1); err != nil {
		t.Fatalf("SetSchemaVersion() failed: %v", err)
	}

	v, err = b.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", v)
	}
}
