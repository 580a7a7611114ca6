package api

import (
	"time"

	"github.com/satriahrh/schedula/domain/entities"
)

// SubmitMessageRequest represents the request payload for sending a chat message
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// SpeechRequest represents the request payload for toggling speech
type SpeechRequest struct {
	Text string `json:"text"`
}

// ToggleResponse reports whether a toggled feature is now active
type ToggleResponse struct {
	Active bool `json:"active"`
}

// ScheduleResponse represents the events of a time range
type ScheduleResponse struct {
	Range  entities.TimeRange       `json:"range"`
	Start  time.Time                `json:"start"`
	End    time.Time                `json:"end"`
	Events []entities.ScheduleEvent `json:"events"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
