package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

var _ repositories.ChatBackend = (*Client)(nil)

type chatRequest struct {
	Content string `json:"content"`
}

// SendMessage posts the user's text to /api/chat and returns the reply text
func (c *Client) SendMessage(ctx context.Context, creds entities.Credentials, content string) (string, error) {
	result, err := c.do(ctx, http.MethodPost, "/api/chat", creds.Token, chatRequest{Content: content})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	reply := result.Get("message")
	if reply.Type != gjson.String {
		return "", fmt.Errorf("send message: %w: missing message field", ErrInvalidResponse)
	}
	return reply.String(), nil
}

// History fetches the stored exchanges of userID
func (c *Client) History(ctx context.Context, creds entities.Credentials, userID string) ([]entities.Exchange, error) {
	path := "/api/chat/history/" + url.PathEscape(userID)
	result, err := c.do(ctx, http.MethodGet, path, creds.Token, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("fetch history: %w: expected an array", ErrInvalidResponse)
	}

	var exchanges []entities.Exchange
	result.ForEach(func(_, item gjson.Result) bool {
		ts, err := parseTimestamp(item.Get("timestamp").String())
		if err != nil {
			c.logger.Warn("Unparseable history timestamp", zap.String("timestamp", item.Get("timestamp").String()))
		}
		exchanges = append(exchanges, entities.Exchange{
			Message:   item.Get("message").String(),
			Response:  item.Get("response").String(),
			Timestamp: ts,
		})
		return true
	})
	return exchanges, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts ISO 8601 with or without a zone; zoneless values are local time
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
