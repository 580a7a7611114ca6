package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain/repositories"
)

// syncBuffer is a goroutine-safe sink
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func nextEvent(t *testing.T, events <-chan repositories.SpeechEvent) repositories.SpeechEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for speech event")
		return repositories.SpeechEvent{}
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"missing key", ElevenLabsConfig{}, true},
		{"defaults", ElevenLabsConfig{APIKey: "k"}, false},
		{"stability out of range", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "k", Clarity: -0.2}, true},
		{"negative chunk", ElevenLabsConfig{APIKey: "k", ChunkSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewElevenLabsSynthesizer_Defaults(t *testing.T) {
	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "test-api-key"}, &syncBuffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, defaultVoiceID, s.voiceID)
	assert.Equal(t, defaultModelID, s.modelID)
	assert.Equal(t, defaultOutputFormat, s.outputFormat)
	assert.Equal(t, defaultChunkSize, s.chunkSize)
	assert.Equal(t, defaultStability, s.stability)
	assert.Equal(t, defaultClarity, s.clarity)

	_, err = NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k"}, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestElevenLabsSynthesizer_Speak(t *testing.T) {
	var got ElevenLabsRequest
	audio := bytes.Repeat([]byte{1, 2, 3, 4}, 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1/stream", r.URL.Path)
		assert.Equal(t, "pcm_24000", r.URL.Query().Get("output_format"))
		assert.Equal(t, "test-api-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/pcm", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(audio)
	}))
	defer server.Close()

	sink := &syncBuffer{}
	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "test-api-key", APIBaseURL: server.URL}, sink, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = s.Speak(context.Background(), repositories.Utterance{
		ID:    7,
		Text:  "Your meeting starts at ten",
		Voice: &repositories.Voice{ID: "voice-1"},
		Rate:  2,
	})
	require.NoError(t, err)

	started := nextEvent(t, s.Events())
	assert.Equal(t, repositories.SpeechStarted, started.Type)
	assert.Equal(t, uint64(7), started.UtteranceID)

	ended := nextEvent(t, s.Events())
	assert.Equal(t, repositories.SpeechEnded, ended.Type)
	assert.Equal(t, uint64(7), ended.UtteranceID)

	assert.Equal(t, len(audio), sink.Len())
	assert.Equal(t, "Your meeting starts at ten", got.Text)
	assert.Equal(t, defaultModelID, got.ModelID)
	assert.Equal(t, maxSpeed, got.VoiceSettings.Speed)
	assert.Equal(t, defaultStability, got.VoiceSettings.Stability)
}

func TestElevenLabsSynthesizer_SpeakError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k", APIBaseURL: server.URL}, &syncBuffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Speak(context.Background(), repositories.Utterance{ID: 3, Text: "hello"}))

	ev := nextEvent(t, s.Events())
	assert.Equal(t, repositories.SpeechError, ev.Type)
	assert.Equal(t, uint64(3), ev.UtteranceID)
	assert.ErrorContains(t, ev.Err, "401")
}

func TestElevenLabsSynthesizer_SpeakRejectsEmptyText(t *testing.T) {
	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k"}, &syncBuffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Error(t, s.Speak(context.Background(), repositories.Utterance{Text: "   "}))
}

func TestElevenLabsSynthesizer_CancelSuppressesEvents(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k", APIBaseURL: server.URL}, &syncBuffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Speak(context.Background(), repositories.Utterance{ID: 1, Text: "hello"}))
	require.NoError(t, s.Cancel())

	select {
	case ev := <-s.Events():
		t.Fatalf("Unexpected event after cancel: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestElevenLabsSynthesizer_Voices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices", r.URL.Path)
		w.Write([]byte(`{"voices":[
			{"voice_id":"a","name":"Rachel","verified_languages":[{"language":"en","locale":"en-US"}]},
			{"voice_id":"b","name":"Budi","labels":{"language":"id"}},
			{"voice_id":"c","name":"Plain"}
		]}`))
	}))
	defer server.Close()

	s, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "k", APIBaseURL: server.URL}, &syncBuffer{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	voices, err := s.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []repositories.Voice{
		{ID: "a", Name: "Rachel", Language: "en-US"},
		{ID: "b", Name: "Budi", Language: "id"},
		{ID: "c", Name: "Plain"},
	}, voices)
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 0.0, clampSpeed(0))
	assert.Equal(t, minSpeed, clampSpeed(0.1))
	assert.Equal(t, 1.0, clampSpeed(1))
	assert.Equal(t, maxSpeed, clampSpeed(5))
}
