package handlers

import (
	"net"
	"net/http"
	"strconv"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/idgen"
)

// IDHandler handles the ID-generation endpoints. All three take the key
// from the `key` query parameter and authenticate with that key's token.
type IDHandler struct {
	increment *idgen.IncrementService
	snowflake *idgen.SnowflakeService
	formatted *idgen.FormattedService
}

// NewIDHandler creates a new ID-generation handler.
func NewIDHandler(inc *idgen.IncrementService, sf *idgen.SnowflakeService, fm *idgen.FormattedService) *IDHandler {
	return &IDHandler{increment: inc, snowflake: sf, formatted: fm}
}

// Increment handles GET /v1/id/increment.
//
// Query: key, size (default 1), delta (default: the key's configured
// delta), rand_delta (bool).
func (h *IDHandler) Increment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	size, err := queryInt64(q.Get("size"), 1)
	if err != nil {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams, "invalid size %q", q.Get("size")))
		return
	}
	// delta 0 means "use the config's delta"
	delta, err := queryInt64(q.Get("delta"), 0)
	if err != nil {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams, "invalid delta %q", q.Get("delta")))
		return
	}
	randDelta, err := queryBool(q.Get("rand_delta"))
	if err != nil {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams, "invalid rand_delta %q", q.Get("rand_delta")))
		return
	}

	ids, err := h.increment.Generate(r.Context(), q.Get("key"), size, delta, randDelta)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteData(w, map[string]any{"id": ids})
}

// Snowflake handles GET /v1/id/snowflake.
//
// The client fingerprint identifies the lease holder. It comes from the
// `fingerprint` query parameter when present, otherwise from the client
// IP, so simple deployments work without explicit fingerprints.
func (h *IDHandler) Snowflake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fingerprint := q.Get("fingerprint")
	if fingerprint == "" {
		fingerprint = clientIP(r)
	}

	desc, err := h.snowflake.Describe(r.Context(), q.Get("key"), fingerprint)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteData(w, desc)
}

// Formatted handles GET /v1/id/formatted.
//
// Query: key, size (default 1).
func (h *IDHandler) Formatted(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	size, err := queryInt64(q.Get("size"), 1)
	if err != nil {
		WriteError(w, r, apierr.Newf(apierr.CodeBadParams, "invalid size %q", q.Get("size")))
		return
	}

	ids, err := h.formatted.Generate(r.Context(), q.Get("key"), size)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteData(w, map[string]any{"id": ids})
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// queryBool parses an optional boolean query parameter.
func queryBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// clientIP returns the request's client IP without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
