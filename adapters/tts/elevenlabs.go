package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize    = 1024                     // Size of audio chunks to stream
	defaultOutputFormat = "pcm_24000"              // PCM format for real-time applications
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	defaultStability    = 0.5                      // Default voice stability
	defaultClarity      = 0.75                     // Default voice clarity/similarity_boost

	eventBuffer = 32
	minSpeed    = 0.7
	maxSpeed    = 1.2
)

// ElevenLabsConfig holds configuration for the ElevenLabs synthesizer.
// APIKey is required; every other field falls back to a default.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64 // between 0 and 1
	Clarity      float64 // between 0 and 1
}

// ElevenLabsSynthesizer speaks utterances through the ElevenLabs streaming API,
// writing PCM to a sink as it arrives
type ElevenLabsSynthesizer struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	httpClient   *http.Client
	sink         io.Writer
	logger       *zap.Logger
	events       chan repositories.SpeechEvent

	mu     sync.Mutex
	cancel context.CancelFunc
	active uint64
}

var _ repositories.Synthesizer = (*ElevenLabsSynthesizer)(nil)

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          ElevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}

	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	return nil
}

// NewElevenLabsSynthesizer creates a synthesizer playing into sink
func NewElevenLabsSynthesizer(config ElevenLabsConfig, sink io.Writer, logger *zap.Logger) (*ElevenLabsSynthesizer, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("audio sink is required")
	}

	s := &ElevenLabsSynthesizer{
		apiKey:       config.APIKey,
		apiBaseURL:   strings.TrimRight(orDefault(config.APIBaseURL, defaultAPIBaseURL), "/"),
		voiceID:      orDefault(config.VoiceID, defaultVoiceID),
		modelID:      orDefault(config.ModelID, defaultModelID),
		outputFormat: orDefault(config.OutputFormat, defaultOutputFormat),
		chunkSize:    config.ChunkSize,
		stability:    config.Stability,
		clarity:      config.Clarity,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		sink:         sink,
		logger:       logger,
		events:       make(chan repositories.SpeechEvent, eventBuffer),
	}
	if s.chunkSize == 0 {
		s.chunkSize = defaultChunkSize
	}
	if s.stability == 0 {
		s.stability = defaultStability
	}
	if s.clarity == 0 {
		s.clarity = defaultClarity
	}

	logger.Info("ElevenLabs synthesizer configured",
		zap.String("voiceID", s.voiceID),
		zap.String("modelID", s.modelID),
		zap.String("outputFormat", s.outputFormat))
	return s, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Events returns the channel all utterances report on
func (s *ElevenLabsSynthesizer) Events() <-chan repositories.SpeechEvent {
	return s.events
}

// Voices retrieves available voices from Eleven Labs API
func (s *ElevenLabsSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(body))
	}

	var voices []repositories.Voice
	gjson.GetBytes(body, "voices").ForEach(func(_, v gjson.Result) bool {
		voices = append(voices, repositories.Voice{
			ID:       v.Get("voice_id").String(),
			Name:     v.Get("name").String(),
			Language: voiceLanguage(v),
		})
		return true
	})

	s.logger.Info("Retrieved available voices", zap.Int("count", len(voices)))
	return voices, nil
}

// voiceLanguage prefers the first verified locale, then the language label
func voiceLanguage(v gjson.Result) string {
	if locale := v.Get("verified_languages.0.locale").String(); locale != "" {
		return locale
	}
	if lang := v.Get("verified_languages.0.language").String(); lang != "" {
		return lang
	}
	return v.Get("labels.language").String()
}

// Speak starts streaming u into the sink, replacing any utterance in progress
func (s *ElevenLabsSynthesizer) Speak(ctx context.Context, u repositories.Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	voiceID := s.voiceID
	if u.Voice != nil && u.Voice.ID != "" {
		voiceID = u.Voice.ID
	}

	request := ElevenLabsRequest{
		Text:                   u.Text,
		ModelID:                s.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.clarity,
			UseSpeakerBoost: true,
			Speed:           clampSpeed(u.Rate),
		},
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		s.apiBaseURL, voiceID, s.outputFormat)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.active = u.ID
	s.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(s.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.apiKey)

	s.logger.Info("Speaking utterance",
		zap.Uint64("utteranceID", u.ID),
		zap.String("voiceID", voiceID),
		zap.Int("textLength", len(u.Text)))

	go s.stream(cctx, u.ID, httpReq)
	return nil
}

func (s *ElevenLabsSynthesizer) stream(ctx context.Context, utteranceID uint64, httpReq *http.Request) {
	defer s.finish(utteranceID)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.fail(ctx, utteranceID, fmt.Errorf("failed to execute HTTP request: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		s.fail(ctx, utteranceID, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody)))
		return
	}

	buffer := make([]byte, s.chunkSize)
	totalBytes := 0
	started := false

	for {
		n, err := resp.Body.Read(buffer)
		if ctx.Err() != nil {
			s.logger.Debug("Playback cancelled", zap.Uint64("utteranceID", utteranceID))
			return
		}
		if n > 0 {
			if !started {
				started = true
				s.emit(repositories.SpeechEvent{Type: repositories.SpeechStarted, UtteranceID: utteranceID})
			}
			if _, werr := s.sink.Write(buffer[:n]); werr != nil {
				s.fail(ctx, utteranceID, fmt.Errorf("failed to write audio: %w", werr))
				return
			}
			totalBytes += n
		}

		if errors.Is(err, io.EOF) {
			s.logger.Info("Finished streaming audio data",
				zap.Uint64("utteranceID", utteranceID),
				zap.Int("totalBytes", totalBytes))
			s.emit(repositories.SpeechEvent{Type: repositories.SpeechEnded, UtteranceID: utteranceID})
			return
		}
		if err != nil {
			s.fail(ctx, utteranceID, fmt.Errorf("error reading response body: %w", err))
			return
		}
	}
}

// fail reports an error unless the utterance was cancelled
func (s *ElevenLabsSynthesizer) fail(ctx context.Context, utteranceID uint64, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Error("Playback failed", zap.Uint64("utteranceID", utteranceID), zap.Error(err))
	s.emit(repositories.SpeechEvent{Type: repositories.SpeechError, UtteranceID: utteranceID, Err: err})
}

func (s *ElevenLabsSynthesizer) finish(utteranceID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == utteranceID && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Cancel stops the utterance in progress without an ended event
func (s *ElevenLabsSynthesizer) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *ElevenLabsSynthesizer) emit(ev repositories.SpeechEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("Speech event channel full, dropping event", zap.String("type", string(ev.Type)))
	}
}

// clampSpeed maps a rate onto the range the API accepts; zero keeps the voice default
func clampSpeed(rate float64) float64 {
	switch {
	case rate == 0:
		return 0
	case rate < minSpeed:
		return minSpeed
	case rate > maxSpeed:
		return maxSpeed
	}
	return rate
}
