// Package messaging integrates the cloud messaging channel: webhook intake on
// one side, text sends on the other.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/waveleads/lead-agent-platform/internal/observability/metrics"
)

const defaultHTTPTimeout = 10 * time.Second

// Client sends text messages through the Graph-style messaging API.
type Client struct {
	baseURL     string
	phoneID     string
	accessToken string
	httpClient  *http.Client
	metrics     *metrics.MessagingMetrics
}

// NewClient creates a messaging client for one sending phone identity.
func NewClient(baseURL, phoneID, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		phoneID:     phoneID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetMetrics attaches send metrics. A nil receiver on the metrics side is a
// no-op, so callers may skip this entirely.
func (c *Client) SetMetrics(m *metrics.MessagingMetrics) {
	c.metrics = m
}

// SendText delivers a plain text message to the contact.
func (c *Client) SendText(ctx context.Context, contactKey, text string) error {
	if err := c.sendText(ctx, contactKey, text); err != nil {
		c.metrics.ObserveOutbound("error")
		return err
	}
	c.metrics.ObserveOutbound("ok")
	return nil
}

func (c *Client) sendText(ctx context.Context, contactKey, text string) error {
	if contactKey == "" {
		return errors.New("messaging: contact key required")
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               contactKey,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("messaging: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: send text: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("messaging: read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("messaging: send failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
		return fmt.Errorf("messaging: send rejected: %s (code %d)", parsed.Error.Message, parsed.Error.Code)
	}
	return nil
}
