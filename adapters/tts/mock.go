package tts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/repositories"
)

const defaultWordDuration = 80 * time.Millisecond

// MockSynthesizer simulates playback: it paces through the words of an
// utterance and writes a generated pattern to the sink for each of them
type MockSynthesizer struct {
	wordDuration time.Duration
	sink         io.Writer
	logger       *zap.Logger
	events       chan repositories.SpeechEvent

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ repositories.Synthesizer = (*MockSynthesizer)(nil)

// NewMockSynthesizer creates a mock synthesizer. sink may be nil.
func NewMockSynthesizer(wordDuration time.Duration, sink io.Writer, logger *zap.Logger) *MockSynthesizer {
	if wordDuration <= 0 {
		wordDuration = defaultWordDuration
	}
	return &MockSynthesizer{
		wordDuration: wordDuration,
		sink:         sink,
		logger:       logger,
		events:       make(chan repositories.SpeechEvent, eventBuffer),
	}
}

func (m *MockSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{ID: "mock-en", Name: "Mock English", Language: "en-US"},
		{ID: "mock-id", Name: "Mock Indonesian", Language: "id-ID"},
	}, nil
}

func (m *MockSynthesizer) Speak(ctx context.Context, u repositories.Utterance) error {
	words := strings.Fields(u.Text)
	if len(words) == 0 {
		return fmt.Errorf("text cannot be empty")
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Processing text-to-speech",
		zap.Uint64("utteranceID", u.ID),
		zap.Int("words", len(words)))

	go m.play(cctx, u.ID, words)
	return nil
}

func (m *MockSynthesizer) play(ctx context.Context, utteranceID uint64, words []string) {
	m.emit(repositories.SpeechEvent{Type: repositories.SpeechStarted, UtteranceID: utteranceID})

	ticker := time.NewTicker(m.wordDuration)
	defer ticker.Stop()
	for _, word := range words {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if m.sink == nil {
			continue
		}
		// Mock audio data sized after the word
		chunk := make([]byte, len(word)*100)
		for i := range chunk {
			chunk[i] = byte(i % 256)
		}
		if _, err := m.sink.Write(chunk); err != nil {
			m.emit(repositories.SpeechEvent{Type: repositories.SpeechError, UtteranceID: utteranceID, Err: err})
			return
		}
	}
	if ctx.Err() == nil {
		m.emit(repositories.SpeechEvent{Type: repositories.SpeechEnded, UtteranceID: utteranceID})
	}
}

func (m *MockSynthesizer) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return nil
}

func (m *MockSynthesizer) Events() <-chan repositories.SpeechEvent {
	return m.events
}

func (m *MockSynthesizer) emit(ev repositories.SpeechEvent) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("Speech event channel full, dropping event", zap.String("type", string(ev.Type)))
	}
}
