package domain

import (
	"time"

	"github.com/satriahrh/schedula/domain/entities"
)

// EventType identifies a session event pushed to UI surfaces
type EventType string

const (
	EventMessageAppended  EventType = "message_appended"
	EventStateChanged     EventType = "state_changed"
	EventTranscript       EventType = "transcript"
	EventNotice           EventType = "notice"
	EventHistoryLoaded    EventType = "history_loaded"
	EventReplyDiscarded   EventType = "reply_discarded"
	EventPlaybackCanceled EventType = "playback_canceled"
)

// NoticeLevel is the severity of a user-visible notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// NoticeKind classifies why a notice was raised
type NoticeKind string

const (
	NoticePermissionDenied   NoticeKind = "permission_denied"
	NoticeRecognitionError   NoticeKind = "recognition_error"
	NoticeRecognitionMissing NoticeKind = "recognition_unsupported"
	NoticeSynthesisMissing   NoticeKind = "synthesis_unsupported"
	NoticeSynthesisError     NoticeKind = "synthesis_error"
	NoticeHistoryFailed      NoticeKind = "history_failed"
	NoticeSendFailed         NoticeKind = "send_failed"
	NoticeListening          NoticeKind = "listening"
)

// Notice is a non-blocking, user-visible toast
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Kind    NoticeKind  `json:"kind"`
	Message string      `json:"message"`
}

// SessionEvent is emitted by a conversation session whenever observable state changes
type SessionEvent struct {
	Type       EventType             `json:"type"`
	SessionID  string                `json:"session_id"`
	Timestamp  time.Time             `json:"timestamp"`
	State      entities.SessionState `json:"state,omitempty"`
	Message    *entities.Message     `json:"message,omitempty"`
	Messages   []entities.Message    `json:"messages,omitempty"`
	Transcript string                `json:"transcript,omitempty"`
	Notice     *Notice               `json:"notice,omitempty"`
}
