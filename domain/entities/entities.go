package entities

import (
	"errors"
	"strings"
	"time"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message represents a single turn in the conversation log
type Message struct {
	ID        string    `json:"id" bson:"message_id"`
	Content   string    `json:"content" bson:"content"`
	Sender    Sender    `json:"sender" bson:"sender"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	// Fallback is set on assistant replies generated locally after the backend failed.
	Fallback bool `json:"fallback,omitempty" bson:"fallback"`
}

// Exchange is one stored user message / assistant response pair from the history endpoint
type Exchange struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// User represents the signed-in account
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Credentials is what the backend needs to authorize a request
type Credentials struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Authenticated reports whether a user is attached to the credentials
func (c Credentials) Authenticated() bool {
	return c.User != nil && c.User.ID != ""
}

// UserID returns the attached user's ID or an empty string
func (c Credentials) UserID() string {
	if c.User == nil {
		return ""
	}
	return c.User.ID
}

// Validate validates the message data
func (m *Message) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("content is required")
	}
	if m.Sender != SenderUser && m.Sender != SenderAssistant {
		return errors.New("invalid sender")
	}
	return nil
}

func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}
