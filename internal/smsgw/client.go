// Package smsgw sends text messages through an operator-run HTTP SMS
// gateway (a GSM modem box or hosted relay accepting JSON).
package smsgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, body string) error
}

var _ Sender = (*Client)(nil)

// Client posts send requests to the configured gateway URL.
type Client struct {
	endpoint string
	http     *http.Client
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const requestTimeout = 60 * time.Second

// NewClient creates a gateway client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Send submits one message to the gateway. Non-2xx responses and gateway
// error statuses are returned as errors; the caller decides what to do with
// the local queue.
func (c *Client) Send(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(sendRequest{Phone: phone, Message: body})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Status != "" && result.Status != "success" && result.Status != "sent" {
		if result.Error != "" {
			return fmt.Errorf("gateway rejected send: %s", result.Error)
		}
		return fmt.Errorf("gateway rejected send: status %q", result.Status)
	}
	return nil
}
