package repositories

import "context"

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Encoding   string `json:"encoding" yaml:"encoding"`
	Language   string `json:"language" yaml:"language"`
}

// RecognitionEventType enumerates recognizer callbacks
type RecognitionEventType string

const (
	RecognitionStarted RecognitionEventType = "started"
	RecognitionResult  RecognitionEventType = "result"
	RecognitionError   RecognitionEventType = "error"
	RecognitionEnded   RecognitionEventType = "ended"
)

// RecognitionErrorNotAllowed is the error code a recognizer reports when capture was refused
const RecognitionErrorNotAllowed = "not-allowed"

// RecognitionEvent is delivered on the recognizer's event channel
type RecognitionEvent struct {
	Type RecognitionEventType
	// CaptureID echoes the ID passed to Start so stale events can be told apart
	CaptureID  uint64
	Transcript string
	Final      bool
	ErrorCode  string
	Err        error
}

// Recognizer performs continuous speech-to-text with interim results
type Recognizer interface {
	// Start begins capture; results arrive on Events tagged with captureID
	Start(ctx context.Context, captureID uint64, config AudioConfig) error
	// Stop ends capture gracefully, flushing a final result if one is pending
	Stop() error
	// Abort ends capture immediately and drops pending results
	Abort() error
	Events() <-chan RecognitionEvent
}
