package stt

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/repositories"
)

const defaultWordInterval = 150 * time.Millisecond

// ScriptedRecognizer plays back canned phrases as if they were spoken, one phrase
// per capture, word by word as interim results followed by a final result
type ScriptedRecognizer struct {
	logger       *zap.Logger
	events       chan repositories.RecognitionEvent
	wordInterval time.Duration

	mu      sync.Mutex
	phrases []string
	next    int
	cancel  context.CancelFunc
	stop    chan struct{}
}

var _ repositories.Recognizer = (*ScriptedRecognizer)(nil)

// NewScriptedRecognizer creates a recognizer cycling through phrases
func NewScriptedRecognizer(phrases []string, wordInterval time.Duration, logger *zap.Logger) *ScriptedRecognizer {
	if wordInterval <= 0 {
		wordInterval = defaultWordInterval
	}
	return &ScriptedRecognizer{
		logger:       logger,
		events:       make(chan repositories.RecognitionEvent, eventBuffer),
		wordInterval: wordInterval,
		phrases:      phrases,
	}
}

// Events returns the channel all captures report on
func (s *ScriptedRecognizer) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

// Start begins speaking the next phrase
func (s *ScriptedRecognizer) Start(ctx context.Context, captureID uint64, config repositories.AudioConfig) error {
	if _, err := getAudioEncoding(config.Encoding); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if len(s.phrases) == 0 {
		s.mu.Unlock()
		return repositories.ErrUnsupported
	}
	phrase := s.phrases[s.next%len(s.phrases)]
	s.next++
	cctx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	s.cancel = cancel
	s.stop = stop
	s.mu.Unlock()

	s.logger.Info("Scripted recognition started",
		zap.Uint64("captureID", captureID),
		zap.String("phrase", phrase))
	select {
	case s.events <- repositories.RecognitionEvent{Type: repositories.RecognitionStarted, CaptureID: captureID}:
	default:
		s.logger.Warn("Recognition event channel full, dropping started event")
	}

	go s.speak(cctx, stop, captureID, phrase)
	return nil
}

func (s *ScriptedRecognizer) speak(ctx context.Context, stop <-chan struct{}, captureID uint64, phrase string) {
	words := strings.Fields(phrase)
	ticker := time.NewTicker(s.wordInterval)
	defer ticker.Stop()

	for i := range words {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			s.send(ctx, repositories.RecognitionEvent{Type: repositories.RecognitionEnded, CaptureID: captureID})
			return
		case <-ticker.C:
		}

		ev := repositories.RecognitionEvent{
			Type:       repositories.RecognitionResult,
			CaptureID:  captureID,
			Transcript: strings.Join(words[:i+1], " "),
			Final:      i == len(words)-1,
		}
		s.send(ctx, ev)
	}
	s.send(ctx, repositories.RecognitionEvent{Type: repositories.RecognitionEnded, CaptureID: captureID})
}

func (s *ScriptedRecognizer) send(ctx context.Context, ev repositories.RecognitionEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// Stop ends the phrase early; the partial phrase is never finalized
func (s *ScriptedRecognizer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

// Abort cancels the capture without further events
func (s *ScriptedRecognizer) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stop = nil
	return nil
}
