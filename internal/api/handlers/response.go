// Package handlers implements the HTTP handlers of the ID service API.
//
// Every response is wrapped in the same envelope:
//
//	{"code": 0, "message": "ok", "data": ...}
//
// code 0 means success; non-zero codes follow the apierr taxonomy and
// determine the HTTP status.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/apierr"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteData writes a successful response with the given payload.
func WriteData(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Code:    int(apierr.CodeOK),
		Message: "ok",
		Data:    data,
	})
}

// WriteError classifies err and writes the matching envelope and status.
//
// Unclassified errors become 4001 with a generic message; their cause is
// logged here and never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apierr.From(err)
	if ae == nil {
		WriteData(w, nil)
		return
	}

	if ae.Code == apierr.CodeInternal {
		logger.ErrorCtx(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err)
	}

	writeEnvelope(w, ae.Code.HTTPStatus(), Envelope{
		Code:    int(ae.Code),
		Message: ae.Message,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
