// Package history implements the client for the upstream DNS resolver's
// history service: cursor-paged query log retrieval plus the per-row
// allowlist/denylist actions.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dns-log-viewer/backend/internal/models"
	"github.com/dns-log-viewer/backend/internal/query"
)

// PageResult is one page of the query log. An empty NextCursor is the
// authoritative end-of-data signal; a non-empty cursor must be passed
// back verbatim on the next fetch for the same filter set.
type PageResult struct {
	Records    []models.LogRecord
	NextCursor string
}

// AtEnd reports whether the service signaled end-of-data.
func (p *PageResult) AtEnd() bool {
	return p.NextCursor == ""
}

// Client talks to the history service over HTTP.
type Client struct {
	baseURL    string
	token      string
	pageLength int
	httpClient *http.Client
}

// NewClient creates a history client. pageLength is the per-request page
// size hint passed to the service; token may be empty when the upstream
// does not require authentication.
func NewClient(baseURL, token string, pageLength int, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		pageLength: pageLength,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// wire format of GET /api/history
type historyResponse struct {
	History []models.LogRecord `json:"history"`
	Cursor  *string            `json:"cursor"` // null means end of data
}

// FetchPage requests one page of history. cursor is empty for the first
// page of a filter set. A context cancellation is returned as-is so
// callers can tell it apart from a transport failure (IsCancellation).
func (c *Client) FetchPage(ctx context.Context, cursor string, params query.Params) (*PageResult, error) {
	values := url.Values{}
	for key, val := range params {
		values.Set(key, formatParam(val))
	}
	if cursor != "" {
		values.Set("cursor", cursor)
	}
	if c.pageLength > 0 {
		values.Set("length", strconv.Itoa(c.pageLength))
	}

	endpoint := c.baseURL + "/api/history?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsCancellation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var wire historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	result := &PageResult{Records: wire.History}
	if wire.Cursor != nil {
		result.NextCursor = *wire.Cursor
	}
	return result, nil
}

// AddToAllowlist asks the resolver to whitelist a domain. Fire-and-forget
// at the view level: the result never feeds back into controller state.
func (c *Client) AddToAllowlist(ctx context.Context, domain string) error {
	return c.postDomain(ctx, "/api/allowlist", domain)
}

// AddToDenylist asks the resolver to blacklist a domain.
func (c *Client) AddToDenylist(ctx context.Context, domain string) error {
	return c.postDomain(ctx, "/api/denylist", domain)
}

func (c *Client) postDomain(ctx context.Context, path, domain string) error {
	if domain == "" {
		return errors.New("domain required")
	}
	payload, _ := json.Marshal(map[string]string{"domain": domain})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build domain request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("domain request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("domain request returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// IsCancellation reports whether err stems from a canceled context.
// Cancellation is not an error condition for the view: a superseded
// fetch's result is discarded, not surfaced.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

func formatParam(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
