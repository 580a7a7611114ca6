package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/repositories"
)

const (
	eventBuffer = 32
	// 100ms of 16kHz LINEAR16 audio
	audioChunkSize = 3200
)

// RecognitionErrorNetwork is reported when the recognition stream fails
const RecognitionErrorNetwork = "network"

// GoogleRecognizer streams microphone audio to Google Cloud Speech and reports
// interim and final transcripts as recognition events
type GoogleRecognizer struct {
	mic    repositories.Microphone
	logger *zap.Logger
	events chan repositories.RecognitionEvent

	mu     sync.Mutex
	active *capture
}

var _ repositories.Recognizer = (*GoogleRecognizer)(nil)

type capture struct {
	id      uint64
	cancel  context.CancelFunc
	stop    chan struct{}
	stopped sync.Once
}

// NewGoogleRecognizer creates a recognizer reading audio from mic
func NewGoogleRecognizer(mic repositories.Microphone, logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{
		mic:    mic,
		logger: logger,
		events: make(chan repositories.RecognitionEvent, eventBuffer),
	}
}

// Events returns the channel all captures report on
func (g *GoogleRecognizer) Events() <-chan repositories.RecognitionEvent {
	return g.events
}

// Start opens the microphone and begins a streaming recognition tagged with captureID
func (g *GoogleRecognizer) Start(ctx context.Context, captureID uint64, config repositories.AudioConfig) error {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return err
	}

	g.abortActive()

	source, err := g.mic.Open(ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	client, err := speech.NewClient(cctx)
	if err != nil {
		cancel()
		source.Close()
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(cctx)
	if err != nil {
		cancel()
		source.Close()
		client.Close()
		return fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		cancel()
		source.Close()
		client.Close()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	c := &capture{id: captureID, cancel: cancel, stop: make(chan struct{})}
	g.mu.Lock()
	g.active = c
	g.mu.Unlock()

	g.logger.Info("Streaming recognition started",
		zap.Uint64("captureID", captureID),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))
	g.emit(repositories.RecognitionEvent{Type: repositories.RecognitionStarted, CaptureID: captureID})

	go g.sendAudio(cctx, c, source, stream)
	go g.receiveResults(cctx, c, client, stream)
	return nil
}

// Stop ends the audio stream; results already spoken still arrive before the ended event
func (g *GoogleRecognizer) Stop() error {
	g.mu.Lock()
	c := g.active
	g.mu.Unlock()
	if c == nil {
		return nil
	}
	c.stopped.Do(func() { close(c.stop) })
	return nil
}

// Abort cancels the active capture immediately without further events
func (g *GoogleRecognizer) Abort() error {
	g.abortActive()
	return nil
}

func (g *GoogleRecognizer) abortActive() {
	g.mu.Lock()
	c := g.active
	g.active = nil
	g.mu.Unlock()
	if c != nil {
		c.cancel()
	}
}

func (g *GoogleRecognizer) sendAudio(ctx context.Context, c *capture, source io.ReadCloser, stream speechpb.Speech_StreamingRecognizeClient) {
	defer source.Close()
	defer stream.CloseSend()

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		buffer := make([]byte, audioChunkSize)
		for {
			n, err := source.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					g.logger.Warn("Microphone read failed", zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: chunk,
				},
			}); err != nil {
				g.logger.Warn("Failed to send audio data", zap.Error(err))
				return
			}
		}
	}
}

func (g *GoogleRecognizer) receiveResults(ctx context.Context, c *capture, client *speech.Client, stream speechpb.Speech_StreamingRecognizeClient) {
	defer client.Close()
	defer g.release(c)

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			g.emit(repositories.RecognitionEvent{Type: repositories.RecognitionEnded, CaptureID: c.id})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// aborted
				return
			}
			g.logger.Error("Recognition stream failed", zap.Uint64("captureID", c.id), zap.Error(err))
			g.emit(repositories.RecognitionEvent{
				Type:      repositories.RecognitionError,
				CaptureID: c.id,
				ErrorCode: RecognitionErrorNetwork,
				Err:       err,
			})
			return
		}

		for _, ev := range eventsFromResponse(c.id, resp) {
			g.emit(ev)
		}
	}
}

func (g *GoogleRecognizer) release(c *capture) {
	c.cancel()
	g.mu.Lock()
	if g.active == c {
		g.active = nil
	}
	g.mu.Unlock()
}

// emit never blocks the stream goroutines; the session drops stale captures anyway
func (g *GoogleRecognizer) emit(ev repositories.RecognitionEvent) {
	select {
	case g.events <- ev:
	default:
		g.logger.Warn("Recognition event channel full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.Uint64("captureID", ev.CaptureID))
	}
}

// eventsFromResponse emits one event per final result, then one interim event
// joining the remaining unstable results
func eventsFromResponse(captureID uint64, resp *speechpb.StreamingRecognizeResponse) []repositories.RecognitionEvent {
	var (
		events  []repositories.RecognitionEvent
		interim []string
	)
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		transcript := result.GetAlternatives()[0].GetTranscript()
		if result.GetIsFinal() {
			events = append(events, repositories.RecognitionEvent{
				Type:       repositories.RecognitionResult,
				CaptureID:  captureID,
				Transcript: transcript,
				Final:      true,
			})
			continue
		}
		interim = append(interim, strings.TrimSpace(transcript))
	}
	if len(interim) > 0 {
		events = append(events, repositories.RecognitionEvent{
			Type:       repositories.RecognitionResult,
			CaptureID:  captureID,
			Transcript: strings.Join(interim, " "),
		})
	}
	return events
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
