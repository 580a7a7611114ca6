package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/schedula/domain/repositories"
)

func result(transcript string, final bool) *speechpb.StreamingRecognitionResult {
	return &speechpb.StreamingRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: transcript}},
		IsFinal:      final,
	}
}

func TestEventsFromResponseInterim(t *testing.T) {
	resp := &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			result("schedule a call ", false),
			result(" with Omar", false),
		},
	}

	events := eventsFromResponse(4, resp)
	require.Len(t, events, 1)
	assert.Equal(t, repositories.RecognitionResult, events[0].Type)
	assert.Equal(t, uint64(4), events[0].CaptureID)
	assert.Equal(t, "schedule a call with Omar", events[0].Transcript)
	assert.False(t, events[0].Final)
}

func TestEventsFromResponseFinal(t *testing.T) {
	resp := &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			result("Schedule a call with Omar tomorrow.", true),
			{IsFinal: false},
		},
	}

	events := eventsFromResponse(9, resp)
	require.Len(t, events, 1)
	assert.True(t, events[0].Final)
	assert.Equal(t, "Schedule a call with Omar tomorrow.", events[0].Transcript)
}

func TestEventsFromEmptyResponse(t *testing.T) {
	assert.Empty(t, eventsFromResponse(1, &speechpb.StreamingRecognizeResponse{}))
}

func TestGetAudioEncoding(t *testing.T) {
	enc, err := getAudioEncoding("LINEAR16")
	require.NoError(t, err)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, enc)

	enc, err = getAudioEncoding("WAV")
	require.NoError(t, err)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, enc)

	_, err = getAudioEncoding("MP3")
	assert.Error(t, err)
}
