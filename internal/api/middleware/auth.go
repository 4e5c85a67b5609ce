// Package middleware provides the bearer-token authentication middleware
// for the ID service API.
//
// Two scopes exist. The admin token (from server config) authorizes the
// config and token endpoints. Per-key tokens, issued through the token
// endpoints, authorize ID generation for their key only. The admin token
// is accepted everywhere.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/marmos91/idbuilder/internal/api/handlers"
	"github.com/marmos91/idbuilder/pkg/apierr"
)

// TokenVerifier checks a per-key token. Implemented by token.Store.
type TokenVerifier interface {
	Verify(ctx context.Context, key, plaintext string) (bool, error)
}

// AdminAuth requires the admin token on every request.
//
// Disabled auth passes everything through, for local development.
func AdminAuth(enabled bool, adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			tok, ok := extractBearerToken(r)
			if !ok {
				handlers.WriteError(w, r, apierr.New(apierr.CodeUnauthenticated, "missing bearer token"))
				return
			}
			if !tokenEqual(tok, adminToken) {
				// A key token is valid somewhere, just not here.
				handlers.WriteError(w, r, apierr.New(apierr.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// KeyAuth requires the token of the key named in the `key` query
// parameter. The admin token is accepted as well.
func KeyAuth(enabled bool, adminToken string, tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			tok, ok := extractBearerToken(r)
			if !ok {
				handlers.WriteError(w, r, apierr.New(apierr.CodeUnauthenticated, "missing bearer token"))
				return
			}

			if adminToken != "" && tokenEqual(tok, adminToken) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.Query().Get("key")
			valid, err := tokens.Verify(r.Context(), key, tok)
			if err != nil {
				handlers.WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "verify token", err))
				return
			}
			if !valid {
				handlers.WriteError(w, r, apierr.Newf(apierr.CodeUnauthenticated, "invalid token for key %q", key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// The scheme comparison is case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	tok := header[len(prefix):]
	if tok == "" {
		return "", false
	}
	return tok, true
}

// tokenEqual compares tokens in constant time.
func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
