// Package websocket pushes conversation session events to UI clients and
// accepts their commands over gorilla/websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024

	// Time allowed for a single command to complete.
	commandTimeout = 30 * time.Second

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The control API binds to localhost and is guarded by a bearer token.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrHubClosed is returned when a connection arrives after the hub stopped
var ErrHubClosed = errors.New("websocket hub closed")

// Controller is the session surface exposed to UI clients
type Controller interface {
	SubmitMessage(ctx context.Context, text string) (entities.Message, error)
	ToggleMicrophone(ctx context.Context) (bool, error)
	ToggleSpeech(ctx context.Context, text string) (bool, error)
	LoadHistory(ctx context.Context) error
	Snapshot() usecase.SessionSnapshot
}

// Hub maintains the set of active clients and broadcasts messages to the clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound messages for every client.
	broadcast chan []byte

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	controller Controller
	validator  *MessageValidator
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(controller Controller, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		controller: controller,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop; it returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, client := range h.clients {
			delete(h.clients, id)
			client.close()
		}
		h.mu.Unlock()
		close(h.done)
		h.logger.Info("WebSocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case payload := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				if !client.queue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
					h.logger.Warn("Client too slow, disconnecting", zap.String("clientID", id))
					delete(h.clients, id)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Forward broadcasts every event from events until the channel closes or ctx is done
func (h *Hub) Forward(ctx context.Context, events <-chan domain.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(CreateEventMessage(ev))
		}
	}
}

// Broadcast sends msg to every connected client
func (h *Hub) Broadcast(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.logger.Warn("Broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id  string
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// HandleWebSocket upgrades the request and attaches the client to the hub
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, sendBuffer),
		logger: logger,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return ErrHubClosed
	}

	client.queueJSON(CreateSnapshotMessage(hub.controller.Snapshot()))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// queue enqueues data without blocking; false means the buffer is full
func (c *Client) queue(data WriteData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) queueJSON(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	if !c.queue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		c.logger.Warn("Client send buffer full, dropping message", zap.String("clientID", c.id))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.queueJSON(CreateErrorMessage("", ErrorCodeInvalidMessage, "only text messages are accepted", ""))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage validates a command and runs it off the read loop
func (c *Client) processMessage(message []byte) {
	cmd, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid client message", zap.Error(err))
		c.queueJSON(CreateErrorMessage("", ErrorCodeInvalidMessage, err.Error(), ""))
		return
	}

	if cmd.Type == MessageTypePing {
		c.queueJSON(CreatePongMessage(cmd.MessageID))
		return
	}

	go c.execute(cmd)
}

func (c *Client) execute(cmd *CommandMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	ack := CreateAckMessage(cmd)
	var err error
	switch cmd.Type {
	case MessageTypeSubmitMessage:
		var msg entities.Message
		msg, err = c.hub.controller.SubmitMessage(ctx, cmd.Text)
		ack.Message = &msg
	case MessageTypeToggleMicrophone:
		var active bool
		active, err = c.hub.controller.ToggleMicrophone(ctx)
		ack.Active = &active
	case MessageTypeToggleSpeech:
		var active bool
		active, err = c.hub.controller.ToggleSpeech(ctx, cmd.Text)
		ack.Active = &active
	case MessageTypeLoadHistory:
		err = c.hub.controller.LoadHistory(ctx)
	}

	if err != nil {
		c.logger.Warn("Command failed",
			zap.String("clientID", c.id),
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		c.queueJSON(CreateErrorMessage(cmd.MessageID, errorCode(err), err.Error(), ""))
		return
	}
	c.queueJSON(ack)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrEmptyMessage):
		return ErrorCodeEmptyMessage
	case errors.Is(err, repositories.ErrUnsupported):
		return ErrorCodeUnsupported
	case errors.Is(err, repositories.ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, usecase.ErrSessionClosed):
		return ErrorCodeSessionClosed
	}
	return ErrorCodeCommandFailed
}
