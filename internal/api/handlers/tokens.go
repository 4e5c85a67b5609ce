package handlers

import (
	"net/http"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/token"
)

// TokenHandler handles the admin token endpoints.
type TokenHandler struct {
	tokens *token.Store
}

// NewTokenHandler creates a new token handler.
func NewTokenHandler(tokens *token.Store) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Verify handles GET /v1/auth/verify.
//
// Reaching this handler means the admin middleware accepted the token,
// so there is nothing left to check.
func (h *TokenHandler) Verify(w http.ResponseWriter, r *http.Request) {
	WriteData(w, struct{}{})
}

// Issue handles GET /v1/auth/token.
//
// The plaintext is returned exactly once, on first issue. Only its hash
// is stored, so a repeat call cannot return the existing token; it
// reports created=false and an empty token instead. Use tokenreset to
// rotate a lost token.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := domain.ValidateKey(key); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInvalidKey, "invalid key", err))
		return
	}

	plaintext, created, err := h.tokens.Issue(r.Context(), key)
	if err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "issue token", err))
		return
	}

	if created {
		logger.InfoCtx(r.Context(), "token issued", "key", key)
	}
	WriteData(w, map[string]any{
		"key":     key,
		"token":   plaintext,
		"created": created,
	})
}

// Reset handles GET /v1/auth/tokenreset.
//
// Always rotates: the previous token stops verifying immediately.
func (h *TokenHandler) Reset(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := domain.ValidateKey(key); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInvalidKey, "invalid key", err))
		return
	}

	plaintext, err := h.tokens.Reset(r.Context(), key)
	if err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "reset token", err))
		return
	}

	logger.InfoCtx(r.Context(), "token reset", "key", key)
	WriteData(w, map[string]any{
		"key":   key,
		"token": plaintext,
	})
}
