package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain/entities"
)

// TestArchiveRepository_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestArchiveRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	client, err := NewClient(ctx, mongoURI, "schedula_test", logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	repo := NewArchiveRepository(client.Database, "", logger)
	base := time.Now()
	repo.now = func() time.Time {
		base = base.Add(time.Millisecond)
		return base
	}

	t.Run("AppendAndList", func(t *testing.T) {
		msgs := []entities.Message{
			{ID: "1", Content: "Hello", Sender: entities.SenderUser, Timestamp: base},
			{ID: "2", Content: "Hi there", Sender: entities.SenderAssistant, Timestamp: base},
			{ID: "3", Content: "Any meetings?", Sender: entities.SenderUser, Timestamp: base},
		}
		for _, m := range msgs {
			if err := repo.Append(ctx, "session-a", m); err != nil {
				t.Fatalf("Failed to append: %v", err)
			}
		}
		if err := repo.Append(ctx, "session-b", msgs[0]); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}

		got, err := repo.ListBySession(ctx, "session-a", 0)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(got))
		}
		for i, m := range got {
			if m.Message.ID != msgs[i].ID {
				t.Errorf("Message %d: expected ID %s, got %s", i, msgs[i].ID, m.Message.ID)
			}
		}

		limited, err := repo.ListBySession(ctx, "session-a", 2)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(limited))
		}
	})

	t.Run("RejectsInvalidMessage", func(t *testing.T) {
		if err := repo.Append(ctx, "session-a", entities.Message{ID: "x"}); err == nil {
			t.Error("Expected error for message without content")
		}
	})
}
