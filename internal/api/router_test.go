package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/idbuilder/internal/api/handlers"
	"github.com/marmos91/idbuilder/pkg/config"
	"github.com/marmos91/idbuilder/pkg/idgen"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/storage/file"
	"github.com/marmos91/idbuilder/pkg/token"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T, auth config.AuthConfig) (http.Handler, storage.Backend) {
	t.Helper()

	backend, err := file.New(storage.FileConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, backend.InitSchema(context.Background()))
	t.Cleanup(func() { backend.Close() })

	seq := sequence.NewManager(backend, sequence.Config{BatchSize: 10})
	deps := Deps{
		Backend:   backend,
		Sequence:  seq,
		Increment: idgen.NewIncrementService(backend, seq),
		Snowflake: idgen.NewSnowflakeService(backend, 0, nil),
		Formatted: idgen.NewFormattedService(backend, seq),
		Tokens:    token.NewStore(backend),
		Auth:      auth,
	}
	return NewRouter(deps), backend
}

func doRequest(t *testing.T, router http.Handler, method, target, bearer, body string) (*httptest.ResponseRecorder, handlers.Envelope) {
	t.Helper()

	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env handlers.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func decodeData(t *testing.T, env handlers.Envelope, dst any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, env := doRequest(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	rec, env = doRequest(t, router, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)
}

func TestConfigUpsertAndGenerate(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, env := doRequest(t, router, http.MethodPost, "/v1/config/increment", "",
		`{"key":"orders","base":1000,"delta":1,"max_request_delta":100}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %v", env)
	require.Equal(t, 0, env.Code)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders&size=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		ID []int64 `json:"id"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, []int64{1000, 1001, 1002, 1003, 1004}, data.ID)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders&size=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &data)
	assert.Equal(t, []int64{1005, 1006, 1007}, data.ID)
}

func TestConfigTypeChangeRejected(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, _ := doRequest(t, router, http.MethodPost, "/v1/config/increment", "",
		`{"key":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doRequest(t, router, http.MethodPost, "/v1/config/snowflake", "",
		`{"key":"orders"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1001, env.Code)
	assert.Contains(t, env.Message, "id_type")
}

func TestConfigList(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	for _, key := range []string{"alpha", "beta", "gamma"} {
		rec, _ := doRequest(t, router, http.MethodPost, "/v1/config/increment", "",
			`{"key":"`+key+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := doRequest(t, router, http.MethodGet, "/v1/config/list?size=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []struct {
			Key  string `json:"key"`
			Type string `json:"id_type"`
		} `json:"items"`
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	}
	decodeData(t, env, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alpha", page.Items[0].Key)
	assert.Equal(t, "beta", page.Items[1].Key)
	assert.True(t, page.HasMore)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/config/list?from="+page.NextCursor, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "gamma", page.Items[0].Key)
	assert.False(t, page.HasMore)
}

func TestSizeTooLarge(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, _ := doRequest(t, router, http.MethodPost, "/v1/config/increment", "",
		`{"key":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders&size=1001", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1003, env.Code)
}

func TestUnknownKeyNotFound(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, env := doRequest(t, router, http.MethodGet, "/v1/id/increment?key=nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 3001, env.Code)
}

func TestSnowflakeDescriptor(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, _ := doRequest(t, router, http.MethodPost, "/v1/config/snowflake", "",
		`{"key":"events"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/v1/id/snowflake?key=events&fingerprint=client-a", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var desc struct {
		WorkerID     int   `json:"worker_id"`
		WorkerIDSize uint8 `json:"worker_id_size"`
		TSSize       uint8 `json:"ts_size"`
		SeqSize      uint8 `json:"seq_size"`
	}
	decodeData(t, env, &desc)
	assert.Equal(t, 0, desc.WorkerID)
	assert.Equal(t, uint8(10), desc.WorkerIDSize)
	assert.Equal(t, uint8(41), desc.TSSize)
	assert.Equal(t, uint8(12), desc.SeqSize)

	// Distinct fingerprint gets the next id.
	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/snowflake?key=events&fingerprint=client-b", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &desc)
	assert.Equal(t, 1, desc.WorkerID)
}

func TestFormattedGenerate(t *testing.T) {
	router, _ := newTestRouter(t, config.AuthConfig{})

	rec, env := doRequest(t, router, http.MethodPost, "/v1/config/formatted", "",
		`{"key":"inv","parts":[
			{"type":"fixed_chars","value":"INV-"},
			{"type":"auto_increment","length":4,"length_fixed":true,"padding_char":"0"}
		]}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %v", env)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/formatted?key=inv&size=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		ID []string `json:"id"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, []string{"INV-0001", "INV-0002"}, data.ID)
}

func TestAuthRequired(t *testing.T) {
	auth := config.AuthConfig{Enabled: true, AdminToken: testAdminToken}
	router, _ := newTestRouter(t, auth)

	// Admin endpoint without token
	rec, env := doRequest(t, router, http.MethodGet, "/v1/auth/verify", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2001, env.Code)

	// Admin endpoint with wrong token
	rec, env = doRequest(t, router, http.MethodGet, "/v1/auth/verify", "not-admin", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 2002, env.Code)

	// Admin endpoint with the admin token
	rec, env = doRequest(t, router, http.MethodGet, "/v1/auth/verify", testAdminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	// Probes stay open
	rec, _ = doRequest(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKeyTokenFlow(t *testing.T) {
	auth := config.AuthConfig{Enabled: true, AdminToken: testAdminToken}
	router, _ := newTestRouter(t, auth)

	rec, _ := doRequest(t, router, http.MethodPost, "/v1/config/increment", testAdminToken,
		`{"key":"orders"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Issue a token for the key
	rec, env := doRequest(t, router, http.MethodGet, "/v1/auth/token?key=orders", testAdminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var issued struct {
		Key     string `json:"key"`
		Token   string `json:"token"`
		Created bool   `json:"created"`
	}
	decodeData(t, env, &issued)
	require.True(t, issued.Created)
	require.NotEmpty(t, issued.Token)

	// Generate with the key token
	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders", issued.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	// No token at all
	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2001, env.Code)

	// Key token on an admin endpoint
	rec, env = doRequest(t, router, http.MethodGet, "/v1/config/list", issued.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 2002, env.Code)

	// Reset cuts off the old token
	rec, env = doRequest(t, router, http.MethodGet, "/v1/auth/tokenreset?key=orders", testAdminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reset struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &reset)
	require.NotEmpty(t, reset.Token)
	require.NotEqual(t, issued.Token, reset.Token)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders", issued.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2001, env.Code)

	rec, env = doRequest(t, router, http.MethodGet, "/v1/id/increment?key=orders", reset.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)
}

func TestIssueTokenIdempotent(t *testing.T) {
	auth := config.AuthConfig{Enabled: true, AdminToken: testAdminToken}
	router, _ := newTestRouter(t, auth)

	rec, env := doRequest(t, router, http.MethodGet, "/v1/auth/token?key=orders", testAdminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		Token   string `json:"token"`
		Created bool   `json:"created"`
	}
	decodeData(t, env, &first)
	require.True(t, first.Created)

	// The hash is stored, not the plaintext, so a repeat issue cannot
	// return the token again.
	rec, env = doRequest(t, router, http.MethodGet, "/v1/auth/token?key=orders", testAdminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Token   string `json:"token"`
		Created bool   `json:"created"`
	}
	decodeData(t, env, &second)
	assert.False(t, second.Created)
	assert.Empty(t, second.Token)
}
