package breach

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLookup_ParsesSuccessResponse(t *testing.T) {
	t.Parallel()

	var (
		gotAuth    string
		gotRequest string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequest = r.URL.Query().Get("request")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"found": 2,
			"sources": [{"name": "BreachX", "date": "2024-11-02"}],
			"sources_data": {
				"BreachX": [
					{"line": "jane@example.com:hunter2"},
					{"email": "jane@example.com", "hash": "abc"}
				]
			},
			"quota": 98
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key-123")
	res, err := c.Lookup(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if gotAuth != "Bearer key-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer key-123")
	}
	if gotRequest != "jane@example.com" {
		t.Errorf("request param = %q, want %q", gotRequest, "jane@example.com")
	}

	if !res.Success {
		t.Error("Success = false, want true")
	}
	if res.Found != 2 {
		t.Errorf("Found = %d, want 2", res.Found)
	}
	if len(res.SourcesData["BreachX"]) != 2 {
		t.Errorf("records for BreachX = %d, want 2", len(res.SourcesData["BreachX"]))
	}
	if got := res.SourceDate("BreachX"); got != "2024-11-02" {
		t.Errorf("SourceDate = %q, want %q", got, "2024-11-02")
	}
	if got := res.SourceDate("Unknown"); got != "" {
		t.Errorf("SourceDate for unknown source = %q, want empty", got)
	}
}

func TestLookup_NoAPIKeyOmitsAuthorization(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"success": true, "found": 0}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Lookup(context.Background(), "x"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want unset", gotAuth)
	}
}

func TestLookup_QuotaPayloadIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success": false, "error": "quota exceeded", "quota": 0}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	res, err := c.Lookup(context.Background(), "x")
	if err != nil {
		t.Fatalf("Lookup: %v (provider payloads should not surface as call errors)", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.Error != "quota exceeded" {
		t.Errorf("Error = %q, want %q", res.Error, "quota exceeded")
	}
}

func TestLookup_Non2xxWithoutErrorFieldGetsSynthesizedError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success": true, "found": 1}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	res, err := c.Lookup(context.Background(), "x")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Success {
		t.Error("Success must be forced false on a non-2xx status")
	}
	if !strings.Contains(res.Error, "503") {
		t.Errorf("Error = %q, want the status code mentioned", res.Error)
	}
}

func TestLookup_UnparseableBodyIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	if _, err := c.Lookup(context.Background(), "x"); err == nil {
		t.Fatal("expected error for a body that is not JSON")
	}
}

func TestLookup_TransportErrorIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, "key")
	if _, err := c.Lookup(context.Background(), "x"); err == nil {
		t.Fatal("expected error when the provider is unreachable")
	}
}
