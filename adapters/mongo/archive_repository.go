package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

const defaultCollection = "session_messages"

// ArchiveRepository stores session messages, one document per message
type ArchiveRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

var _ repositories.MessageArchive = (*ArchiveRepository)(nil)

// NewArchiveRepository creates the repository and builds its indexes in the background
func NewArchiveRepository(db *mongo.Database, collection string, logger *zap.Logger) *ArchiveRepository {
	if collection == "" {
		collection = defaultCollection
	}
	r := &ArchiveRepository{
		collection: db.Collection(collection),
		logger:     logger,
		now:        time.Now,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "archived_at", Value: 1},
			},
		})
		if err != nil {
			logger.Error("Failed to create archive indexes", zap.Error(err))
			return
		}
		logger.Info("Archive indexes created successfully")
	}()

	return r
}

// Append implements repositories.MessageArchive
func (r *ArchiveRepository) Append(ctx context.Context, sessionID string, msg entities.Message) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	doc := repositories.ArchivedMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Message:    msg,
		ArchivedAt: r.now(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to archive message",
			zap.Error(err),
			zap.String("sessionID", sessionID),
			zap.String("messageID", msg.ID))
		return fmt.Errorf("failed to archive message: %w", err)
	}

	r.logger.Debug("Message archived",
		zap.String("sessionID", sessionID),
		zap.String("sender", string(msg.Sender)))
	return nil
}

// ListBySession returns the oldest messages of a session first; limit <= 0 returns all
func (r *ArchiveRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]repositories.ArchivedMessage, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "archived_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		r.logger.Error("Failed to list archived messages", zap.Error(err), zap.String("sessionID", sessionID))
		return nil, fmt.Errorf("failed to list archived messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]repositories.ArchivedMessage, 0)
	for cursor.Next(ctx) {
		var m repositories.ArchivedMessage
		if err := cursor.Decode(&m); err != nil {
			r.logger.Error("Failed to decode archived message", zap.Error(err))
			continue
		}
		messages = append(messages, m)
	}
	if err := cursor.Err(); err != nil {
		r.logger.Error("Cursor error", zap.Error(err))
		return nil, err
	}

	return messages, nil
}
