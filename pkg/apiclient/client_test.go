package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/idbuilder/pkg/domain"
)

// newTestServer returns a server that checks the request against want
// and replies with the given envelope.
func newTestServer(t *testing.T, wantPath string, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{}}`))
	}))
	defer srv.Close()

	client := New(srv.URL).WithToken("secret")
	if err := client.VerifyAdmin(); err != nil {
		t.Fatalf("VerifyAdmin() error = %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
}

func TestClientUnwrapsEnvelope(t *testing.T) {
	srv := newTestServer(t, "/v1/id/increment", http.StatusOK,
		`{"code":0,"message":"ok","data":{"id":[1000,1001,1002]}}`)
	defer srv.Close()

	ids, err := New(srv.URL).GenerateIncrement("orders", 3, 0, false)
	if err != nil {
		t.Fatalf("GenerateIncrement() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != 1000 || ids[2] != 1002 {
		t.Errorf("ids = %v, want [1000 1001 1002]", ids)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := newTestServer(t, "/v1/config/list", http.StatusNotFound,
		`{"code":3001,"message":"no config for key \"ghost\""}`)
	defer srv.Close()

	_, err := New(srv.URL).GetConfig("ghost")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	ae, ok := apiError(err)
	if !ok {
		t.Fatalf("error %T is not an *APIError", err)
	}
	if ae.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", ae.HTTPStatus)
	}
}

func TestClientNonEnvelopeError(t *testing.T) {
	srv := newTestServer(t, "/health", http.StatusBadGateway, "upstream gone")
	defer srv.Close()

	_, err := New(srv.URL).Health()
	ae, ok := apiError(err)
	if !ok {
		t.Fatalf("error %T is not an *APIError", err)
	}
	if ae.Code != 0 || ae.HTTPStatus != http.StatusBadGateway {
		t.Errorf("got code %d status %d, want 0 and 502", ae.Code, ae.HTTPStatus)
	}
}

func TestSetIncrementConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["key"] != "orders" {
			t.Errorf("key = %v, want orders", req["key"])
		}
		if req["base"] != float64(1000) {
			t.Errorf("base = %v, want 1000", req["base"])
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"key":"orders","id_type":"increment"}}`))
	}))
	defer srv.Close()

	stored, err := New(srv.URL).SetIncrementConfig("orders", domain.IncrementConfig{Base: 1000})
	if err != nil {
		t.Fatalf("SetIncrementConfig() error = %v", err)
	}
	if stored.Key != "orders" || stored.Type != domain.IDTypeIncrement {
		t.Errorf("stored = %+v, want orders/increment", stored)
	}
}

func TestListConfigsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "orders" || q.Get("size") != "50" {
			t.Errorf("query = %v, want from=orders size=50", q)
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"items":[{"key":"users","id_type":"increment"}],"next_cursor":"users","has_more":true}}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListConfigs("orders", 50)
	if err != nil {
		t.Fatalf("ListConfigs() error = %v", err)
	}
	if len(page.Items) != 1 || !page.HasMore || page.NextCursor != "users" {
		t.Errorf("page = %+v, want one item with cursor", page)
	}
}
