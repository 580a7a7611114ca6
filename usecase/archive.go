package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

const (
	archiveQueueSize = 128
	archiveTimeout   = 5 * time.Second
)

// messageArchiver writes appended messages to a MessageArchive off the session loop
type messageArchiver struct {
	archive   repositories.MessageArchive
	sessionID string
	queue     chan entities.Message
	done      chan struct{}
	logger    *zap.Logger
}

func newMessageArchiver(archive repositories.MessageArchive, sessionID string, logger *zap.Logger) *messageArchiver {
	return &messageArchiver{
		archive:   archive,
		sessionID: sessionID,
		queue:     make(chan entities.Message, archiveQueueSize),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// enqueue never blocks; a full queue drops the message
func (a *messageArchiver) enqueue(msg entities.Message) {
	select {
	case a.queue <- msg:
	default:
		a.logger.Warn("Archive queue full, dropping message", zap.String("messageID", msg.ID))
	}
}

func (a *messageArchiver) run() {
	defer close(a.done)
	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := a.archive.Append(ctx, a.sessionID, msg); err != nil {
			a.logger.Error("Failed to archive message",
				zap.String("messageID", msg.ID),
				zap.Error(err))
		}
		cancel()
	}
}

// close drains the queue and waits for the writer to finish
func (a *messageArchiver) close() {
	close(a.queue)
	<-a.done
}
