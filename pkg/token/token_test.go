package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/storage/file"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	backend, err := file.New(storage.FileConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, backend.InitSchema(context.Background()))
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend)
}

func TestIssueAndVerify(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	plaintext, created, err := s.Issue(ctx, "orders")
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, plaintext, 64, "256-bit token as hex")

	ok, err := s.Verify(ctx, "orders", plaintext)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(ctx, "orders", "wrong-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, created, err := s.Issue(ctx, "orders")
	require.NoError(t, err)
	require.True(t, created)

	// A second issue must not rotate the token.
	second, created, err := s.Issue(ctx, "orders")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, second)

	ok, err := s.Verify(ctx, "orders", first)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetRotates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	old, _, err := s.Issue(ctx, "orders")
	require.NoError(t, err)

	fresh, err := s.Reset(ctx, "orders")
	require.NoError(t, err)
	require.NotEqual(t, old, fresh)

	ok, err := s.Verify(ctx, "orders", old)
	require.NoError(t, err)
	assert.False(t, ok, "old token must be cut off")

	ok, err = s.Verify(ctx, "orders", fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUnknownKey(t *testing.T) {
	s := newStore(t)

	ok, err := s.Verify(context.Background(), "missing", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
