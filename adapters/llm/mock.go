package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// MockChatBackend answers offline with canned replies
type MockChatBackend struct {
	mu        sync.Mutex
	exchanges map[string][]entities.Exchange
}

var _ repositories.ChatBackend = (*MockChatBackend)(nil)

// NewMockChatBackend creates a new mock chat backend
func NewMockChatBackend() *MockChatBackend {
	return &MockChatBackend{exchanges: make(map[string][]entities.Exchange)}
}

// SendMessage implements repositories.ChatBackend
func (m *MockChatBackend) SendMessage(ctx context.Context, creds entities.Credentials, content string) (string, error) {
	var response string
	switch lower := strings.ToLower(content); {
	case strings.Contains(lower, "meeting"), strings.Contains(lower, "event"), strings.Contains(lower, "schedule"):
		response = "You have no events scheduled yet. Would you like me to add one?"
	case len(strings.TrimSpace(content)) > 0:
		response = fmt.Sprintf("Thanks! I noted '%s'. What else can I help you plan?", content)
	default:
		response = "Hello! I'm your schedule assistant. What would you like to plan today?"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := conversationKey(creds.UserID())
	m.exchanges[key] = append(m.exchanges[key], entities.Exchange{
		Message:   content,
		Response:  response,
		Timestamp: time.Now(),
	})
	return response, nil
}

// History implements repositories.ChatBackend
func (m *MockChatBackend) History(ctx context.Context, creds entities.Credentials, userID string) ([]entities.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Exchange(nil), m.exchanges[conversationKey(userID)]...), nil
}
