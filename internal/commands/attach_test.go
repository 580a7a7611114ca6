package commands

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	ws "github.com/satriahrh/schedula/internal/websocket"
	"github.com/satriahrh/schedula/usecase"
)

func TestCommandFor(t *testing.T) {
	msg, quit, err := commandFor("am I free friday")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, ws.MessageTypeSubmitMessage, msg.Type)
	assert.Equal(t, "am I free friday", msg.Text)
	assert.NotEmpty(t, msg.MessageID)

	msg, _, err = commandFor("/say read this")
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeToggleSpeech, msg.Type)
	assert.Equal(t, "read this", msg.Text)

	for input, typ := range map[string]ws.MessageType{
		"/mic":     ws.MessageTypeToggleMicrophone,
		"/history": ws.MessageTypeLoadHistory,
		"/ping":    ws.MessageTypePing,
	} {
		msg, _, err := commandFor(input)
		require.NoError(t, err, input)
		assert.Equal(t, typ, msg.Type, input)
	}

	_, quit, err = commandFor("/quit")
	require.NoError(t, err)
	assert.True(t, quit)

	_, _, err = commandFor("/dance")
	assert.Error(t, err)
}

func TestCommandForPassesValidation(t *testing.T) {
	v := ws.NewMessageValidator()
	for _, input := range []string{"hello", "/mic", "/say", "/history", "/ping"} {
		msg, _, err := commandFor(input)
		require.NoError(t, err)
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		_, err = v.ValidateMessage(data)
		assert.NoError(t, err, input)
	}
}

func TestRenderFrame(t *testing.T) {
	var out bytes.Buffer
	p := &eventPrinter{out: &out}

	frame := func(v interface{}) []byte {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	renderFrame(p, frame(ws.CreateSnapshotMessage(usecase.SessionSnapshot{
		ID:    "s-1",
		State: entities.SessionStateIdle,
		Messages: []entities.Message{
			{Content: "Hello!", Sender: entities.SenderAssistant},
		},
	})))
	renderFrame(p, frame(ws.CreateEventMessage(domain.SessionEvent{
		Type:       domain.EventTranscript,
		Timestamp:  time.Now(),
		Transcript: "next week",
	})))
	renderFrame(p, frame(ws.CreateErrorMessage("m-1", ws.ErrorCodeUnsupported, "Voice input is not available", "")))
	renderFrame(p, frame(ws.CreatePongMessage("m-2")))

	off := false
	ack := ws.CreateAckMessage(&ws.CommandMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeToggleMicrophone}})
	ack.Active = &off
	renderFrame(p, frame(ack))
	renderFrame(p, []byte(`{"type":"something_else"}`))

	expected := "Attached to session s-1 (idle)\n" +
		"assistant [1]> Hello!\n" +
		"  ... next week\n" +
		"[error] Voice input is not available\n" +
		"pong\n" +
		"[mic off]\n"
	assert.Equal(t, expected, out.String())
}
