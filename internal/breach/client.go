// Package breach provides the HTTP client for the external breach-intelligence
// lookup provider. Responses are treated as untrusted: missing or malformed
// fields never crash the caller.
package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const httpTimeout = 30 * time.Second

// maxBodyBytes caps how much of a provider response we are willing to read.
const maxBodyBytes = 5 << 20 // 5 MB

// SourceMeta describes one breached source named in a lookup response.
type SourceMeta struct {
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
}

// LookupResult is the provider's answer for one subject value.
//
// Success reports whether the provider gave a definitive answer. Found is the
// total match count. SourcesData maps source name to the raw records exposed
// for that source.
type LookupResult struct {
	Success     bool                         `json:"success"`
	Found       int                          `json:"found"`
	Sources     []SourceMeta                 `json:"sources"`
	SourcesData map[string][]json.RawMessage `json:"sources_data"`
	Quota       int                          `json:"quota,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// SourceDate returns the recorded date for a source name, or "" when the
// provider supplied no metadata for it.
func (r *LookupResult) SourceDate(name string) string {
	for _, s := range r.Sources {
		if s.Name == name {
			return s.Date
		}
	}
	return ""
}

// Client queries the breach-intelligence provider.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a provider client for the given endpoint and API key.
func New(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Lookup queries the provider for all recorded exposures of value.
//
// A non-nil error means the call itself failed (transport error, unusable
// endpoint, unreadable body) and the caller learned nothing. A response the
// provider could produce - including quota and error payloads - comes back as
// a LookupResult with Success=false rather than an error.
func (c *Client) Lookup(ctx context.Context, value string) (*LookupResult, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("request", value)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config; the subject value is query-string encoded
	if err != nil {
		return nil, fmt.Errorf("breach lookup failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out LookupResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unparseable response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Success = false
		if out.Error == "" {
			out.Error = fmt.Sprintf("provider returned %d", resp.StatusCode)
		}
	}

	return &out, nil
}
