// Package backend talks to the schedule assistant HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

// Config holds the backend client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a thin JSON client for the assistant backend. It implements the chat,
// auth and schedule ports.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// do sends a JSON request and returns the parsed body of a 2xx response
func (c *Client) do(ctx context.Context, method, path, token string, payload interface{}) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Backend request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("statusCode", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, NewAPIError(resp.StatusCode, path, errorMessage(data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: %s returned malformed JSON", ErrInvalidResponse, path)
	}
	return gjson.ParseBytes(data), nil
}

// errorMessage pulls a human message out of an error body
func errorMessage(data []byte) string {
	if gjson.ValidBytes(data) {
		parsed := gjson.ParseBytes(data)
		for _, key := range []string{"message", "detail", "error"} {
			if v := parsed.Get(key); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
