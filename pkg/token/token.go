// Package token manages per-key client tokens. Only the SHA-256 hash
// of a token is ever stored; the plaintext is returned exactly once, at
// generation time.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/marmos91/idbuilder/pkg/storage"
)

// tokenBytes is the token entropy, 256 bits.
const tokenBytes = 32

// Store issues, rotates and verifies per-key tokens on top of a
// storage backend.
type Store struct {
	backend storage.Backend
}

// NewStore creates a token store over backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Issue generates a token for key if none exists yet and returns the
// plaintext with created=true. If a token already exists the call is a
// no-op returning created=false and no plaintext: the stored hash
// cannot be reversed, so rotation goes through Reset.
func (s *Store) Issue(ctx context.Context, key string) (plaintext string, created bool, err error) {
	_, err = s.backend.GetToken(ctx, key)
	if err == nil {
		return "", false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", false, fmt.Errorf("look up token for %q: %w", key, err)
	}

	plaintext, err = s.generate(ctx, key)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

// Reset unconditionally replaces the token for key and returns the new
// plaintext. Outstanding clients holding the old token are cut off.
func (s *Store) Reset(ctx context.Context, key string) (string, error) {
	return s.generate(ctx, key)
}

// Verify reports whether plaintext matches the stored token for key.
// The hash comparison is constant-time. A key without a token verifies
// nothing.
func (s *Store) Verify(ctx context.Context, key, plaintext string) (bool, error) {
	stored, err := s.backend.GetToken(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up token for %q: %w", key, err)
	}

	sum := sha256.Sum256([]byte(plaintext))
	return subtle.ConstantTimeCompare(stored, sum[:]) == 1, nil
}

func (s *Store) generate(ctx context.Context, key string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	plaintext := hex.EncodeToString(raw)
	sum := sha256.Sum256([]byte(plaintext))
	if err := s.backend.PutToken(ctx, key, sum[:]); err != nil {
		return "", fmt.Errorf("store token for %q: %w", key, err)
	}
	return plaintext, nil
}
