package repositories

import "context"

// Voice is a synthesis voice registered with the platform
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Utterance is a single synthesis request
type Utterance struct {
	ID     uint64
	Text   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// SpeechEventType enumerates synthesizer callbacks
type SpeechEventType string

const (
	SpeechStarted SpeechEventType = "started"
	SpeechEnded   SpeechEventType = "ended"
	SpeechError   SpeechEventType = "error"
)

// SpeechEvent is delivered on the synthesizer's event channel
type SpeechEvent struct {
	Type        SpeechEventType
	UtteranceID uint64
	Err         error
}

// Synthesizer plays text as speech
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	// Speak starts playback and returns without waiting for it to finish
	Speak(ctx context.Context, utterance Utterance) error
	// Cancel stops the current utterance, if any
	Cancel() error
	Events() <-chan SpeechEvent
}
