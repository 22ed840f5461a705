package ws

import (
	"encoding/json"
	"time"

	"roulette/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgSetName MessageType = "set_name"
	MsgSpin    MessageType = "spin"
	MsgSubmit  MessageType = "submit"
	MsgReset   MessageType = "reset"
	MsgPing    MessageType = "ping"
)

// Server → Client message types. View events are sent as they are, with
// their own type field.
const (
	MsgConnected MessageType = "connected"
	MsgError     MessageType = "error"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// SetNamePayload is the payload for set_name message
type SetNamePayload struct {
	Name string `json:"name"`
}

// SpinPayload is the payload for spin message
type SpinPayload struct {
	Category string `json:"category"`
}

// ResetPayload is the payload for reset message
type ResetPayload struct {
	Password string `json:"password"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ViewID   string            `json:"viewId"`
	ClientID string            `json:"clientId"`
	State    domain.BoardState `json:"state"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeViewNotFound   = "VIEW_NOT_FOUND"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
