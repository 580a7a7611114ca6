package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Commands sent by UI clients
const (
	MessageTypeSubmitMessage    MessageType = "submit_message"
	MessageTypeToggleMicrophone MessageType = "toggle_microphone"
	MessageTypeToggleSpeech     MessageType = "toggle_speech"
	MessageTypeLoadHistory      MessageType = "load_history"
	MessageTypePing             MessageType = "ping"
)

// Messages pushed to UI clients
const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeEvent    MessageType = "session_event"
	MessageTypeAck      MessageType = "ack"
	MessageTypePong     MessageType = "pong"
	MessageTypeError    MessageType = "error"
)

const maxTextLength = 4000

// Error codes carried by ErrorMessage
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeEmptyMessage     = "empty_message"
	ErrorCodeUnsupported      = "unsupported"
	ErrorCodePermissionDenied = "permission_denied"
	ErrorCodeSessionClosed    = "session_closed"
	ErrorCodeCommandFailed    = "command_failed"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// CommandMessage is a request from a UI client. Text is used by submit_message
// and, optionally, by toggle_speech.
type CommandMessage struct {
	BaseMessage
	Text string `json:"text,omitempty"`
}

// EventMessage wraps a session event
type EventMessage struct {
	BaseMessage
	Event domain.SessionEvent `json:"event"`
}

// SnapshotMessage carries the full session view, sent on connect
type SnapshotMessage struct {
	BaseMessage
	Snapshot usecase.SessionSnapshot `json:"snapshot"`
}

// AckMessage reports a completed command
type AckMessage struct {
	BaseMessage
	ReplyTo string            `json:"reply_to,omitempty"`
	Command MessageType       `json:"command"`
	Active  *bool             `json:"active,omitempty"`
	Message *entities.Message `json:"message,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	ReplyTo string `json:"reply_to,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	ReplyTo string `json:"reply_to,omitempty"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming command
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if msg.Timestamp == "" {
		msg.Timestamp = now()
	}

	switch msg.Type {
	case MessageTypeSubmitMessage:
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		if len(msg.Text) > maxTextLength {
			return nil, fmt.Errorf("text must be at most %d bytes", maxTextLength)
		}
	case MessageTypeToggleSpeech:
		if len(msg.Text) > maxTextLength {
			return nil, fmt.Errorf("text must be at most %d bytes", maxTextLength)
		}
	case MessageTypeToggleMicrophone, MessageTypeLoadHistory, MessageTypePing:
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	return &msg, nil
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// CreateEventMessage wraps a session event
func CreateEventMessage(ev domain.SessionEvent) *EventMessage {
	return &EventMessage{
		BaseMessage: BaseMessage{Type: MessageTypeEvent, Timestamp: now()},
		Event:       ev,
	}
}

// CreateSnapshotMessage wraps a session snapshot
func CreateSnapshotMessage(snapshot usecase.SessionSnapshot) *SnapshotMessage {
	return &SnapshotMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSnapshot, Timestamp: now()},
		Snapshot:    snapshot,
	}
}

// CreateAckMessage acknowledges cmd
func CreateAckMessage(cmd *CommandMessage) *AckMessage {
	return &AckMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAck, Timestamp: now()},
		ReplyTo:     cmd.MessageID,
		Command:     cmd.Type,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(replyTo, code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: now()},
		ReplyTo:     replyTo,
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(replyTo string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: now()},
		ReplyTo:     replyTo,
	}
}
