package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all mirror WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → viewer message types.
const (
	TypeSessionStart = "session.start"
	TypeLogData      = "log.data"
	TypeSessionEnd   = "session.end"
	TypeError        = "error"
)

// Viewer → server message types.
const (
	TypeSessionReplay = "session.replay"
)

// Error codes.
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeNoSession      = "NO_SESSION"
)

// Server → viewer payloads.

type SessionStartPayload struct {
	Command string `json:"command"`
	LogPath string `json:"logPath"`
}

type LogDataPayload struct {
	Data string `json:"data"`
}

type SessionEndPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
