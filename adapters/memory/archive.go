// Package memory holds in-process implementations of the repository ports.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// ArchiveRepository keeps archived messages in memory for the lifetime of the process
type ArchiveRepository struct {
	mu       sync.RWMutex
	sessions map[string][]repositories.ArchivedMessage // session_id -> messages in append order
	now      func() time.Time
}

var _ repositories.MessageArchive = (*ArchiveRepository)(nil)

// NewArchiveRepository creates an empty in-memory archive
func NewArchiveRepository() *ArchiveRepository {
	return &ArchiveRepository{
		sessions: make(map[string][]repositories.ArchivedMessage),
		now:      time.Now,
	}
}

// Append implements repositories.MessageArchive
func (m *ArchiveRepository) Append(ctx context.Context, sessionID string, msg entities.Message) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = append(m.sessions[sessionID], repositories.ArchivedMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Message:    msg,
		ArchivedAt: m.now(),
	})
	return nil
}

// ListBySession implements repositories.MessageArchive
func (m *ArchiveRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]repositories.ArchivedMessage, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.sessions[sessionID]
	if limit > 0 && limit < len(stored) {
		stored = stored[:limit]
	}

	// Return a copy to prevent external modifications
	result := make([]repositories.ArchivedMessage, len(stored))
	copy(result, stored)
	return result, nil
}

// Sessions returns the IDs of every session with archived messages
func (m *ArchiveRepository) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
