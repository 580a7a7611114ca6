package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain/repositories"
)

var linear16 = repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"}

func collect(t *testing.T, events <-chan repositories.RecognitionEvent, until repositories.RecognitionEventType) []repositories.RecognitionEvent {
	t.Helper()
	var got []repositories.RecognitionEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
			if ev.Type == until {
				return got
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %s, got %+v", until, got)
		}
	}
}

func TestScriptedRecognizerSpeaksPhrase(t *testing.T) {
	r := NewScriptedRecognizer([]string{"lunch at noon"}, time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, r.Start(context.Background(), 7, linear16))
	events := collect(t, r.Events(), repositories.RecognitionEnded)

	require.Len(t, events, 5)
	assert.Equal(t, repositories.RecognitionStarted, events[0].Type)
	assert.Equal(t, "lunch", events[1].Transcript)
	assert.Equal(t, "lunch at", events[2].Transcript)
	assert.False(t, events[2].Final)
	assert.Equal(t, "lunch at noon", events[3].Transcript)
	assert.True(t, events[3].Final)
	for _, ev := range events {
		assert.Equal(t, uint64(7), ev.CaptureID)
	}
}

func TestScriptedRecognizerStopSkipsFinal(t *testing.T) {
	r := NewScriptedRecognizer([]string{"one two three four five six"}, 50*time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, r.Start(context.Background(), 1, linear16))
	require.NoError(t, r.Stop())

	events := collect(t, r.Events(), repositories.RecognitionEnded)
	for _, ev := range events {
		assert.False(t, ev.Final, "stopped capture must not finalize")
	}
}

func TestScriptedRecognizerCyclesPhrases(t *testing.T) {
	r := NewScriptedRecognizer([]string{"first", "second"}, time.Millisecond, zaptest.NewLogger(t))

	for i, want := range []string{"first", "second", "first"} {
		require.NoError(t, r.Start(context.Background(), uint64(i), linear16))
		events := collect(t, r.Events(), repositories.RecognitionEnded)
		assert.Equal(t, want, events[len(events)-2].Transcript)
	}
}

func TestScriptedRecognizerWithoutPhrases(t *testing.T) {
	r := NewScriptedRecognizer(nil, 0, zaptest.NewLogger(t))
	err := r.Start(context.Background(), 1, linear16)
	assert.True(t, errors.Is(err, repositories.ErrUnsupported))
}
