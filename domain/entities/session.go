package entities

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SessionState represents which activity currently drives the session's audio
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateListening SessionState = "listening"
	SessionStateSending   SessionState = "sending"
	SessionStateSpeaking  SessionState = "speaking"
)

// AudioState describes which audio subsystem owns the microphone/speaker
type AudioState struct {
	Listening         bool   `json:"listening"`
	Speaking          bool   `json:"speaking"`
	PendingTranscript string `json:"pending_transcript"`
}

// Conversation is the message log of one mounted session
type Conversation struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
	Messages      []Message  `json:"messages"`

	lastIDBase string
	lastIDSeq  int
}

// NewConversation creates an empty conversation log
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Messages:  make([]Message, 0),
	}
}

// NextMessageID mints an ID from the Unix millisecond of now. IDs minted within the
// same millisecond get a "-N" suffix so they are never reused within the conversation.
func (c *Conversation) NextMessageID(now time.Time) string {
	base := strconv.FormatInt(now.UnixMilli(), 10)
	if base != c.lastIDBase {
		c.lastIDBase = base
		c.lastIDSeq = 0
		return base
	}
	c.lastIDSeq++
	return base + "-" + strconv.Itoa(c.lastIDSeq)
}

// AddMessage appends a message to the log
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	ts := msg.Timestamp
	c.LastMessageAt = &ts
}

// Reset replaces the whole log, used when a fresh history is loaded
func (c *Conversation) Reset(msgs []Message) {
	c.Messages = append(make([]Message, 0, len(msgs)), msgs...)
	c.LastMessageAt = nil
	if n := len(c.Messages); n > 0 {
		ts := c.Messages[n-1].Timestamp
		c.LastMessageAt = &ts
	}
}

// Snapshot returns a copy of the log that callers may keep
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Validate validates the conversation data
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	seen := make(map[string]struct{}, len(c.Messages))
	for i := range c.Messages {
		if err := c.Messages[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Messages[i].ID]; dup {
			return errors.New("duplicate message id " + c.Messages[i].ID)
		}
		seen[c.Messages[i].ID] = struct{}{}
	}
	return nil
}
