// Package mailer sends user notifications through an email relay webhook.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/breachwatch/internal/scanner"
	"github.com/linnemanlabs/breachwatch/internal/workorder"
)

const (
	maxPayloadLen = 500
	httpTimeout   = 10 * time.Second
)

// Mailer posts notification messages to an email relay webhook.
type Mailer struct {
	webhookURL string
	client     *http.Client
}

// New creates a new mailer. If webhookURL is empty, every send is a no-op.
func New(webhookURL string) *Mailer {
	return &Mailer{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// BreachDetected emails the owning user about one new exposure.
// If no webhook URL is configured, it returns nil immediately.
func (m *Mailer) BreachDetected(ctx context.Context, n *scanner.Notice) error {
	if m.webhookURL == "" {
		return nil
	}
	return m.send(ctx, breachMessage(n))
}

// WorkOrderCompleted emails the completion notice for a finished work order.
// If no webhook URL is configured, it returns nil immediately.
func (m *Mailer) WorkOrderCompleted(ctx context.Context, investigationID string, report *workorder.Report) error {
	if m.webhookURL == "" {
		return nil
	}
	return m.send(ctx, reportMessage(investigationID, report))
}

func (m *Mailer) send(ctx context.Context, msg map[string]any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailer: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("mailer: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func breachMessage(n *scanner.Notice) map[string]any {
	subject := fmt.Sprintf("New breach alert: your %s appeared in %s", n.SubjectType, n.Source)

	var b strings.Builder
	fmt.Fprintf(&b, "The monitored %s %q was found in the source %q.\n", n.SubjectType, n.SubjectValue, n.Source)
	if n.SourceDate != "" {
		fmt.Fprintf(&b, "Breach date: %s\n", n.SourceDate)
	}
	fmt.Fprintf(&b, "\nExposed record:\n%s\n", truncate(n.Payload, maxPayloadLen))

	return map[string]any{
		"user_id": n.UserID,
		"subject": subject,
		"body":    b.String(),
	}
}

func reportMessage(investigationID string, r *workorder.Report) map[string]any {
	subject := fmt.Sprintf("Deep search complete: %d person(s) found", len(r.Persons))

	var b strings.Builder
	fmt.Fprintf(&b, "The deep search for investigation %s has finished.\n\n", investigationID)
	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "  Emails:          %d\n", r.Summary.Emails)
	fmt.Fprintf(&b, "  Phones:          %d\n", r.Summary.Phones)
	fmt.Fprintf(&b, "  Addresses:       %d\n", r.Summary.Addresses)
	fmt.Fprintf(&b, "  Social profiles: %d\n", r.Summary.Profiles)

	return map[string]any{
		"investigation_id": investigationID,
		"subject":          subject,
		"body":             b.String(),
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
