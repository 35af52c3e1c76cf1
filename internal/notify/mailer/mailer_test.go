package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linnemanlabs/breachwatch/internal/scanner"
	"github.com/linnemanlabs/breachwatch/internal/workorder"
)

func TestBreachDetected_PostsWebhook(t *testing.T) {
	t.Parallel()

	var (
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL)
	err := m.BreachDetected(context.Background(), &scanner.Notice{
		UserID:       "u-1",
		SubjectValue: "jane@example.com",
		SubjectType:  scanner.SubjectEmail,
		Source:       "BreachX",
		SourceDate:   "2024-11-02",
		Payload:      `{"email": "jane@example.com", "password_hash": "abc"}`,
	})
	if err != nil {
		t.Fatalf("BreachDetected: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var msg struct {
		UserID  string `json:"user_id"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(gotBody, &msg); err != nil {
		t.Fatalf("unmarshal webhook body: %v", err)
	}
	if msg.UserID != "u-1" {
		t.Errorf("user_id = %q, want %q", msg.UserID, "u-1")
	}
	if want := "New breach alert: your email appeared in BreachX"; msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}
	for _, frag := range []string{"jane@example.com", "BreachX", "2024-11-02", "password_hash"} {
		if !strings.Contains(msg.Body, frag) {
			t.Errorf("body missing %q:\n%s", frag, msg.Body)
		}
	}
}

func TestBreachDetected_TruncatesLongPayload(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL)
	err := m.BreachDetected(context.Background(), &scanner.Notice{
		UserID:       "u-1",
		SubjectValue: "jane@example.com",
		SubjectType:  scanner.SubjectEmail,
		Source:       "BreachX",
		Payload:      strings.Repeat("x", 2000),
	})
	if err != nil {
		t.Fatalf("BreachDetected: %v", err)
	}

	var msg struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(gotBody, &msg); err != nil {
		t.Fatalf("unmarshal webhook body: %v", err)
	}
	if !strings.Contains(msg.Body, "...") {
		t.Error("long payload should be truncated with an ellipsis")
	}
	if strings.Contains(msg.Body, strings.Repeat("x", maxPayloadLen+1)) {
		t.Errorf("payload not truncated to %d bytes", maxPayloadLen)
	}
}

func TestWorkOrderCompleted_PostsWebhook(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL)
	err := m.WorkOrderCompleted(context.Background(), "inv-1", &workorder.Report{
		Persons: []workorder.Person{{Name: "Jane Doe"}},
		Summary: workorder.Summary{Emails: 3, Phones: 1, Addresses: 2, Profiles: 4},
	})
	if err != nil {
		t.Fatalf("WorkOrderCompleted: %v", err)
	}

	var msg struct {
		InvestigationID string `json:"investigation_id"`
		Subject         string `json:"subject"`
		Body            string `json:"body"`
	}
	if err := json.Unmarshal(gotBody, &msg); err != nil {
		t.Fatalf("unmarshal webhook body: %v", err)
	}
	if msg.InvestigationID != "inv-1" {
		t.Errorf("investigation_id = %q, want %q", msg.InvestigationID, "inv-1")
	}
	if want := "Deep search complete: 1 person(s) found"; msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}
	for _, frag := range []string{"inv-1", "Emails:          3", "Social profiles: 4"} {
		if !strings.Contains(msg.Body, frag) {
			t.Errorf("body missing %q:\n%s", frag, msg.Body)
		}
	}
}

func TestSend_NoWebhookConfigured(t *testing.T) {
	t.Parallel()

	m := New("")
	if err := m.BreachDetected(context.Background(), &scanner.Notice{UserID: "u-1"}); err != nil {
		t.Errorf("BreachDetected without webhook = %v, want nil", err)
	}
	if err := m.WorkOrderCompleted(context.Background(), "inv-1", &workorder.Report{}); err != nil {
		t.Errorf("WorkOrderCompleted without webhook = %v, want nil", err)
	}
}

func TestSend_Non2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	m := New(srv.URL)
	err := m.BreachDetected(context.Background(), &scanner.Notice{UserID: "u-1", SubjectType: scanner.SubjectEmail, Source: "BreachX"})
	if err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func FuzzTruncate(f *testing.F) {
	f.Add("", 10)
	f.Add("short", 500)
	f.Add(strings.Repeat("a", 1000), 500)
	f.Add("exactly", 7)

	f.Fuzz(func(t *testing.T, s string, limit int) {
		if limit < 4 {
			t.Skip()
		}
		got := truncate(s, limit)
		if len(got) > limit {
			t.Errorf("truncate(%d bytes, %d) = %d bytes", len(s), limit, len(got))
		}
		if len(s) <= limit && got != s {
			t.Errorf("short input must pass through unchanged")
		}
	})
}
