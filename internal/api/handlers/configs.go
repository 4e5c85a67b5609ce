package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// Listing page size bounds.
const (
	DefaultListSize = 20
	MaxListSize     = 100
)

// ConfigHandler handles the admin config endpoints: per-type upsert and
// cursor-paginated listing.
type ConfigHandler struct {
	backend storage.Backend
	seq     *sequence.Manager
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(backend storage.Backend, seq *sequence.Manager) *ConfigHandler {
	return &ConfigHandler{backend: backend, seq: seq}
}

// Increment handles GET/POST /v1/config/increment.
func (h *ConfigHandler) Increment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
		domain.IncrementConfig
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	req.IncrementConfig.ApplyDefaults()
	cfg := &domain.KeyConfig{
		Key:       req.Key,
		Type:      domain.IDTypeIncrement,
		Increment: &req.IncrementConfig,
	}
	h.put(w, r, cfg, cfg.Key)
}

// Snowflake handles GET/POST /v1/config/snowflake.
func (h *ConfigHandler) Snowflake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
		domain.SnowflakeConfig
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	req.SnowflakeConfig.ApplyDefaults()
	cfg := &domain.KeyConfig{
		Key:       req.Key,
		Type:      domain.IDTypeSnowflake,
		Snowflake: &req.SnowflakeConfig,
	}
	h.put(w, r, cfg, cfg.Key)
}

// Formatted handles GET/POST /v1/config/formatted.
func (h *ConfigHandler) Formatted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
		domain.FormattedConfig
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cfg := &domain.KeyConfig{
		Key:       req.Key,
		Type:      domain.IDTypeFormatted,
		Formatted: &req.FormattedConfig,
	}
	// Chunk state for formatted keys lives under the derived counter key.
	h.put(w, r, cfg, domain.DerivedKeyPrefix+cfg.Key)
}

// put validates cfg, enforces the type guard and upserts it. counterKey
// is the chunk-cache key to invalidate, so raised caps and changed
// layouts take effect without a restart.
func (h *ConfigHandler) put(w http.ResponseWriter, r *http.Request, cfg *domain.KeyConfig, counterKey string) {
	if err := domain.ValidateKey(cfg.Key); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInvalidKey, "invalid key", err))
		return
	}
	if err := cfg.Validate(); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeBadParams, "invalid config", err))
		return
	}

	// A key keeps its id_type for life. Same-type updates are allowed.
	existing, err := h.backend.GetConfig(r.Context(), cfg.Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "load config", err))
		return
	}
	if existing != nil && existing.Type != cfg.Type {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams,
			"key %q is already a %s key; id_type cannot change", cfg.Key, existing.Type))
		return
	}

	if err := h.backend.PutConfig(r.Context(), cfg); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "store config", err))
		return
	}

	h.seq.Invalidate(counterKey)

	logger.InfoCtx(r.Context(), "config stored",
		"key", cfg.Key,
		"id_type", string(cfg.Type))
	WriteData(w, cfg)
}

// List handles GET /v1/config/list.
//
// Query: key (exact lookup), from (cursor), size (1..100, default 20).
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Exact lookup short-circuits pagination.
	if key := q.Get("key"); key != "" {
		cfg, err := h.backend.GetConfig(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, r, apierr.Newf(apierr.CodeNotFound, "no config for key %q", key))
			return
		}
		if err != nil {
			WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "load config", err))
			return
		}
		WriteData(w, map[string]any{
			"items":    []domain.ConfigSummary{{Key: cfg.Key, Type: cfg.Type}},
			"has_more": false,
		})
		return
	}

	size, err := queryInt64(q.Get("size"), DefaultListSize)
	if err != nil || size < 1 || size > MaxListSize {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams, "size must be 1..%d", MaxListSize))
		return
	}

	items, cursor, hasMore, err := h.backend.ListConfigs(r.Context(), q.Get("from"), int(size))
	if err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeInternal, "list configs", err))
		return
	}
	if items == nil {
		items = []domain.ConfigSummary{}
	}

	WriteData(w, map[string]any{
		"items":       items,
		"next_cursor": cursor,
		"has_more":    hasMore,
	})
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.Wrap(apierr.CodeBadParams, "invalid request body", err)
	}
	return nil
}
