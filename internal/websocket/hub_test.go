package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/usecase"
)

type fakeController struct {
	mu        sync.Mutex
	submitted []string
	micErr    error
	listening bool
}

func (f *fakeController) SubmitMessage(ctx context.Context, text string) (entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return entities.Message{ID: "1", Content: text, Sender: entities.SenderUser}, nil
}

func (f *fakeController) ToggleMicrophone(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.micErr != nil {
		return false, f.micErr
	}
	f.listening = !f.listening
	return f.listening, nil
}

func (f *fakeController) ToggleSpeech(ctx context.Context, text string) (bool, error) {
	return text != "", nil
}

func (f *fakeController) LoadHistory(ctx context.Context) error { return nil }

func (f *fakeController) Snapshot() usecase.SessionSnapshot {
	return usecase.SessionSnapshot{ID: "session-1", State: entities.SessionStateIdle}
}

func setupTestServer(t *testing.T, controller Controller) (*Hub, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hub := NewHub(controller, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	_, url := setupTestServer(t, &fakeController{})
	ws := dial(t, url)

	msg := readMessage(t, ws)
	assert.Equal(t, string(MessageTypeSnapshot), msg["type"])
	snapshot := msg["snapshot"].(map[string]interface{})
	assert.Equal(t, "session-1", snapshot["id"])
}

func TestHub_Commands(t *testing.T) {
	controller := &fakeController{}
	_, url := setupTestServer(t, controller)
	ws := dial(t, url)
	readMessage(t, ws) // snapshot

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "submit_message", "text": "Lunch at noon", "message_id": "m1"}))
	ack := readMessage(t, ws)
	assert.Equal(t, string(MessageTypeAck), ack["type"])
	assert.Equal(t, "m1", ack["reply_to"])
	assert.Equal(t, "Lunch at noon", ack["message"].(map[string]interface{})["content"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "toggle_microphone", "message_id": "m2"}))
	ack = readMessage(t, ws)
	assert.Equal(t, "m2", ack["reply_to"])
	assert.Equal(t, true, ack["active"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping", "message_id": "p"}))
	pong := readMessage(t, ws)
	assert.Equal(t, string(MessageTypePong), pong["type"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "submit_message", "text": " "}))
	invalid := readMessage(t, ws)
	assert.Equal(t, string(MessageTypeError), invalid["type"])
	assert.Equal(t, ErrorCodeInvalidMessage, invalid["error_code"])

	controller.mu.Lock()
	assert.Equal(t, []string{"Lunch at noon"}, controller.submitted)
	controller.mu.Unlock()
}

func TestHub_CommandErrorCodes(t *testing.T) {
	_, url := setupTestServer(t, &fakeController{micErr: repositories.ErrPermissionDenied})
	ws := dial(t, url)
	readMessage(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "toggle_microphone", "message_id": "m1"}))
	msg := readMessage(t, ws)
	assert.Equal(t, string(MessageTypeError), msg["type"])
	assert.Equal(t, ErrorCodePermissionDenied, msg["error_code"])
	assert.Equal(t, "m1", msg["reply_to"])
}

func TestHub_ForwardBroadcastsEvents(t *testing.T) {
	hub, url := setupTestServer(t, &fakeController{})
	first := dial(t, url)
	second := dial(t, url)
	readMessage(t, first)
	readMessage(t, second)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	events := make(chan domain.SessionEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Forward(ctx, events)

	events <- domain.SessionEvent{Type: domain.EventTranscript, Transcript: "hello"}

	for _, ws := range []*websocket.Conn{first, second} {
		msg := readMessage(t, ws)
		assert.Equal(t, string(MessageTypeEvent), msg["type"])
		assert.Equal(t, "hello", msg["event"].(map[string]interface{})["transcript"])
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, url := setupTestServer(t, &fakeController{})
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readMessage(t, ws)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	ws.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeEmptyMessage, errorCode(usecase.ErrEmptyMessage))
	assert.Equal(t, ErrorCodeUnsupported, errorCode(repositories.ErrUnsupported))
	assert.Equal(t, ErrorCodeSessionClosed, errorCode(usecase.ErrSessionClosed))
	assert.Equal(t, ErrorCodeCommandFailed, errorCode(assert.AnError))
}
