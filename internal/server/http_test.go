package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hostgrid/rackq/internal/inventory"
	"github.com/hostgrid/rackq/internal/pkg/rackql"
)

func testServer(t *testing.T, tokenHash []byte) *QueryServer {
	t.Helper()
	store := inventory.NewStore()
	store.Put(&inventory.Entity{Type: "pool", Name: "frontend", Children: []rackql.EntityKey{
		{Type: "host", Name: "web01"},
	}})
	store.Put(&inventory.Entity{Type: "host", Name: "web01", Attrs: []inventory.Attribute{
		{Key: "env", Value: "prod"},
	}})
	store.Put(&inventory.Entity{Type: "host", Name: "web02"})
	return NewQueryServer(store, rackql.NewRegistry(), tokenHash, nil)
}

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	srv := testServer(t, nil)
	handler := srv.Handler()

	rec := postQuery(t, handler, `{"query": "(& (pool 'frontend') (= clusto_type 'host'))"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Matches) != 1 || resp.Matches[0].Name != "web01" {
		t.Errorf("unexpected matches: %+v", resp)
	}
	if resp.RequestID == "" {
		t.Error("expected a request id")
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning: %q", resp.Warning)
	}
}

func TestHandleQueryTrailingTokensWarn(t *testing.T) {
	srv := testServer(t, nil)

	rec := postQuery(t, srv.Handler(), `{"query": "(= name 'web01') leftover"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Warning == "" {
		t.Error("expected a trailing-token warning")
	}
	if resp.Count != 1 {
		t.Errorf("expected the query to still answer, got %+v", resp)
	}
}

func TestHandleQueryErrors(t *testing.T) {
	srv := testServer(t, nil)
	handler := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing query", `{"other": 1}`},
		{"lex failure", `{"query": "(= name !)"}`},
		{"parse failure", `{"query": "(= name"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuery(t, handler, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekrit"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv := testServer(t, hash)
	handler := srv.Handler()

	// No token.
	rec := postQuery(t, handler, `{"query": "(= name 'web01')"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", rec.Code)
	}

	// Wrong token.
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "(= name 'web01')"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "(= name 'web01')"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Health stays open regardless of auth.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestHandleEntities(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Entities []rackql.EntityKey `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entities) != 3 {
		t.Errorf("expected 3 entities, got %v", resp.Entities)
	}
}
