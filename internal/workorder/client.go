// Package workorder provides the HTTP client for the external long-running
// workflow provider's status endpoint.
package workorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

const httpTimeout = 20 * time.Second

const maxBodyBytes = 5 << 20 // 5 MB

// Summary counts the categories of data the workflow recovered.
type Summary struct {
	Emails    int `json:"emails"`
	Phones    int `json:"phones"`
	Addresses int `json:"addresses"`
	Profiles  int `json:"profiles"`
}

// Person is one per-person breakdown entry in a terminal payload.
type Person struct {
	Name      string   `json:"name,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	Phones    []string `json:"phones,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Profiles  []string `json:"profiles,omitempty"`
}

// Report is the terminal payload of a completed work order.
type Report struct {
	Persons []Person `json:"persons"`
	Summary Summary  `json:"summary"`
}

// Status is one status-endpoint answer for a work order. Exactly one of
// Pending, Success, or an error condition holds.
type Status struct {
	Pending bool            `json:"pending"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client queries the workflow status endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a status client for the given endpoint and API key.
func New(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Check fetches the current status of the work order with the given id.
// The result is idempotent to re-fetch: a completed work order keeps
// answering with the same terminal payload.
func (c *Client) Check(ctx context.Context, workOrderID string) (*Status, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = path.Join(u.Path, "orders", workOrderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config, the id is path-joined
	if err != nil {
		return nil, fmt.Errorf("work order status failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("work order endpoint returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var out Status
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unparseable status: %w", err)
	}
	if out.Success && len(out.Data) == 0 {
		return nil, fmt.Errorf("success status without data")
	}

	return &out, nil
}

// ParseReport decodes a terminal payload. Missing fields are tolerated;
// only a structurally invalid document fails.
func ParseReport(data json.RawMessage) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unparseable report: %w", err)
	}
	return &r, nil
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}
