package storagetest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// runConfigTests runs all config and token conformance tests.
func runConfigTests(t *testing.T, factory BackendFactory) {
	t.Run("ConfigRoundTrip", func(t *testing.T) { testConfigRoundTrip(t, factory) })
	t.Run("ConfigOverwrite", func(t *testing.T) { testConfigOverwrite(t, factory) })
	t.Run("ConfigNotFound", func(t *testing.T) { testConfigNotFound(t, factory) })
	t.Run("ListConfigsPagination", func(t *testing.T) { testListConfigsPagination(t, factory) })
	t.Run("TokenRoundTrip", func(t *testing.T) { testTokenRoundTrip(t, factory) })
}

func incrementConfig(key string, base int64) *domain.KeyConfig {
	cfg := &domain.KeyConfig{
		Key:  key,
		Type: domain.IDTypeIncrement,
		Increment: &domain.IncrementConfig{
			Base:            base,
			Delta:           1,
			MaxRequestDelta: 100,
		},
	}
	return cfg
}

// testConfigRoundTrip verifies that a stored config comes back intact.
func testConfigRoundTrip(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	want := incrementConfig("orders", 1000)
	if err := b.PutConfig(ctx, want); err != nil {
		t.Fatalf("PutConfig() failed: %v", err)
	}

	got, err := b.GetConfig(ctx, "orders")
	if err != nil {
		t.Fatalf("GetConfig() failed: %v", err)
	}
	if got.Key != "orders" {
		t.Errorf("Key = %q, want %q", got.Key, "orders")
	}
	if got.Type != domain.IDTypeIncrement {
		t.Errorf("Type = %q, want %q", got.Type, domain.IDTypeIncrement)
	}
	if got.Increment == nil || got.Increment.Base != 1000 {
		t.Errorf("Increment = %+v, want Base 1000", got.Increment)
	}
}

// testConfigOverwrite verifies that PutConfig replaces an existing entry.
func testConfigOverwrite(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	if err := b.PutConfig(ctx, incrementConfig("orders", 1)); err != nil {
		t.Fatalf("PutConfig() #1 failed: %v", err)
	}
	if err := b.PutConfig(ctx, incrementConfig("orders", 5000)); err != nil {
		t.Fatalf("PutConfig() #2 failed: %v", err)
	}

	got, err := b.GetConfig(ctx, "orders")
	if err != nil {
		t.Fatalf("GetConfig() failed: %v", err)
	}
	if got.Increment.Base != 5000 {
		t.Errorf("Base = %d, want 5000", got.Increment.Base)
	}
}

// testConfigNotFound verifies the sentinel for missing configs.
func testConfigNotFound(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)

	_, err := b.GetConfig(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetConfig() error = %v, want ErrNotFound", err)
	}
}

// testListConfigsPagination verifies lexicographic cursor paging over
// the key namespace.
func testListConfigsPagination(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		key := fmt.Sprintf("key-%02d", i)
		if err := b.PutConfig(ctx, incrementConfig(key, 1)); err != nil {
			t.Fatalf("PutConfig(%q) failed: %v", key, err)
		}
	}

	var collected []string
	cursor := ""
	pages := 0
	for {
		items, next, hasMore, err := b.ListConfigs(ctx, cursor, 3)
		if err != nil {
			t.Fatalf("ListConfigs() failed: %v", err)
		}
		pages++
		for _, item := range items {
			collected = append(collected, item.Key)
		}
		if !hasMore {
			break
		}
		cursor = next
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(collected) != 7 {
		t.Fatalf("collected %d keys, want 7", len(collected))
	}
	for i, key := range collected {
		want := fmt.Sprintf("key-%02d", i)
		if key != want {
			t.Errorf("collected[%d] = %q, want %q", i, key, want)
		}
	}
}

// testTokenRoundTrip verifies token hash storage.
func testTokenRoundTrip(t *testing.T, factory BackendFactory) {
	b := newBackend(t, factory)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("secret-token"))
	if err := b.PutToken(ctx, "orders", sum[:]); err != nil {
		t.Fatalf("PutToken() failed: %v", err)
	}

	got, err := b.GetToken(ctx, "orders")
	if err != nil {
		t.Fatalf("GetToken() failed: %v", err)
	}
	if !bytes.Equal(got, sum[:]) {
		t.Errorf("GetToken() = %x, want %x", got, sum)
	}

	_, err = b.GetToken(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetToken() error = %v, want ErrNotFound", err)
	}
}
