package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roulette/internal/app"
	"roulette/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	conn     *websocket.Conn
	table    *app.Table
	clientID string
	send     chan []byte
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, table *app.Table, clientID string, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		table:    table,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("client_id", clientID).Logger(),
	}
}

// GetClientID implements app.ClientConnection interface
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn().Msg("send buffer full, message dropped")
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.table.UnregisterClient(c.clientID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgSetName:
		c.handleSetName(msg.Payload)
	case MsgSpin:
		c.handleSpin(msg.Payload)
	case MsgSubmit:
		c.handleSubmit()
	case MsgReset:
		c.handleReset(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleSetName handles a set_name message
func (c *Client) handleSetName(raw json.RawMessage) {
	var payload SetNamePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	c.table.SetName(payload.Name)
}

// handleSpin handles a spin message. Spinning a reel that is already
// spinning is ignored.
func (c *Client) handleSpin(raw json.RawMessage) {
	var payload SpinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	category, err := domain.ParseCategory(payload.Category)
	if err != nil {
		c.sendError(ErrCodeInvalidMessage, "Unknown category")
		return
	}

	c.table.Spin(category)
}

// handleSubmit handles a submit message
func (c *Client) handleSubmit() {
	if _, err := c.table.Submit(c.ctx); err != nil {
		if errors.Is(err, domain.ErrEmptyName) {
			return
		}
		c.sendError(ErrCodeInternalError, "Could not save the record")
	}
}

// handleReset handles a reset message
func (c *Client) handleReset(raw json.RawMessage) {
	var payload ResetPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	// Each delete is bounded by the view's store timeout
	if _, err := c.table.Reset(c.ctx, payload.Password); err != nil {
		// A wrong password already produced an alert event
		if errors.Is(err, domain.ErrWrongPassword) {
			return
		}
		c.sendError(ErrCodeInternalError, "Reset stopped before every record was deleted")
	}
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		ViewID:   c.table.ID(),
		ClientID: c.clientID,
		State:    c.table.State(),
	}

	msg := NewServerMessage(MsgConnected, payload)
	c.Send(msg)
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}
