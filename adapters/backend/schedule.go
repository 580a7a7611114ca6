package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

const (
	defaultEventTitle    = "Untitled Event"
	defaultEventTime     = "No time specified"
	defaultEventLocation = "No location specified"
	defaultEventPriority = "medium"
	defaultEventType     = "personal"
	eventDateLayout      = "Jan 2, 2006"
)

var _ repositories.ScheduleBackend = (*Client)(nil)

type scheduleRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// QueryEvents posts a natural-language query to /api/schedule. Missing event
// fields are filled with display defaults.
func (c *Client) QueryEvents(ctx context.Context, creds entities.Credentials, query string) ([]entities.ScheduleEvent, error) {
	result, err := c.do(ctx, http.MethodPost, "/api/schedule", creds.Token, scheduleRequest{Query: query, UserID: creds.UserID()})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := result.Get("events")
	if !events.IsArray() {
		return nil, fmt.Errorf("query events: %w: missing events array", ErrInvalidResponse)
	}

	out := make([]entities.ScheduleEvent, 0, len(events.Array()))
	events.ForEach(func(_, item gjson.Result) bool {
		out = append(out, eventFrom(len(out)+1, item))
		return true
	})
	return out, nil
}

func eventFrom(index int, item gjson.Result) entities.ScheduleEvent {
	event := entities.ScheduleEvent{
		ID:        strconv.Itoa(index),
		Title:     stringOr(item.Get("title"), defaultEventTitle),
		Date:      formatEventDate(item.Get("date").String()),
		Time:      stringOr(item.Get("time"), defaultEventTime),
		Location:  stringOr(item.Get("venue"), defaultEventLocation),
		Attendees: int(item.Get("attendees").Int()),
		Priority:  stringOr(item.Get("priority"), defaultEventPriority),
		Type:      strings.ToLower(stringOr(item.Get("tag"), defaultEventType)),
	}
	return event
}

func stringOr(v gjson.Result, fallback string) string {
	if s := v.String(); s != "" {
		return s
	}
	return fallback
}

func formatEventDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return raw
	}
	return t.Format(eventDateLayout)
}
