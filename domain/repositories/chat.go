package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/schedula/domain/entities"
)

var (
	// ErrInvalidCredentials is returned by Login when the backend rejects email or password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when the backend rejects the bearer token
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected matches any non-2xx answer from the backend
	ErrRejected = errors.New("rejected by backend")
)

// ChatBackend is the remote conversational service
type ChatBackend interface {
	// SendMessage posts the user's text and returns the assistant reply
	SendMessage(ctx context.Context, creds entities.Credentials, content string) (string, error)
	// History returns the stored exchanges of a user in chronological order
	History(ctx context.Context, creds entities.Credentials, userID string) ([]entities.Exchange, error)
}

// AuthBackend is the remote authentication service
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (entities.Credentials, error)
	Signup(ctx context.Context, name, email, password string) (entities.Credentials, error)
	Logout(ctx context.Context, token string) error
	Validate(ctx context.Context, token string) (*entities.User, error)
}

// ScheduleBackend answers natural-language event queries
type ScheduleBackend interface {
	QueryEvents(ctx context.Context, creds entities.Credentials, query string) ([]entities.ScheduleEvent, error)
}

// CredentialSource supplies the current credentials at the moment a request is made
type CredentialSource interface {
	Credentials() entities.Credentials
}

// CredentialStore persists credentials between runs
type CredentialStore interface {
	CredentialSource
	Save(creds entities.Credentials) error
	Clear() error
}

// ArchivedMessage is a message recorded by the archive together with its session
type ArchivedMessage struct {
	ID         string           `json:"id" bson:"_id"`
	SessionID  string           `json:"session_id" bson:"session_id"`
	Message    entities.Message `json:"message" bson:"message"`
	ArchivedAt time.Time        `json:"archived_at" bson:"archived_at"`
}

// MessageArchive records every message appended to a session log
type MessageArchive interface {
	Append(ctx context.Context, sessionID string, msg entities.Message) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ArchivedMessage, error)
}
