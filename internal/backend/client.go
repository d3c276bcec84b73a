package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Store is the remote message store contract. Implemented by *Client and by
// test doubles elsewhere in the tree.
type Store interface {
	ListPending(ctx context.Context) ([]PendingMessage, error)
	MarkSent(ctx context.Context, id int64) error
	GeneratePDF(ctx context.Context, jobcardRefID int64) ([]byte, error)
}

// Ensure Client implements Store at compile time.
var _ Store = (*Client)(nil)

// Client talks to the remote message store's HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultUserAgent = "sendq/0.1"
	// Fixed read+connect budget; anything slower surfaces as a generic
	// network failure.
	requestTimeout = 60 * time.Second
)

// NewClient builds a Client for the given base address. The address is
// normalized to carry exactly one trailing slash so relative endpoint
// paths resolve under it.
func NewClient(baseAddr string) (*Client, error) {
	base, err := parseBaseURL(baseAddr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the normalized base address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListPending retrieves the full pending message list.
func (c *Client) ListPending(ctx context.Context) ([]PendingMessage, error) {
	var payload []PendingMessage
	if err := c.get(ctx, "_/api/pending-sms", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// MarkSent flips one message's server-side state from pending to sent.
func (c *Client) MarkSent(ctx context.Context, id int64) error {
	rel := &url.URL{Path: "_/api/mark-sent/" + strconv.FormatInt(id, 10)}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mark-sent %d returned status %d", id, resp.StatusCode)
	}

	var payload MarkSentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "success" {
		return fmt.Errorf("mark-sent %d rejected: %q", id, payload.Status)
	}
	return nil
}

// GeneratePDF retrieves the PDF bytes for the given business record. An
// empty slice with nil error means the backend has no document for it.
func (c *Client) GeneratePDF(ctx context.Context, jobcardRefID int64) ([]byte, error) {
	rel := &url.URL{Path: "_/api/generate-pdf/" + strconv.FormatInt(jobcardRefID, 10)}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("generate-pdf %d returned status %d", jobcardRefID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	rel := &url.URL{Path: path}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(baseAddr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(baseAddr)
	if trimmed == "" {
		return nil, fmt.Errorf("backend address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse backend address %q: %w", baseAddr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend address %q has no host", baseAddr)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
