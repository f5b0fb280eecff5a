package protocol

import (
	"encoding/json"
	"fmt"
)

// validViewerTypes is the set of allowed viewer→server message types.
var validViewerTypes = map[string]bool{
	TypeSessionReplay: true,
}

// ValidateViewerMessage validates a raw JSON message from a mirror viewer.
// Returns the parsed Message and any validation error.
func ValidateViewerMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validViewerTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	return &msg, nil
}

// NewErrorMessage creates an error message ready to send to a viewer.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
