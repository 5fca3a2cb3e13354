// Package stream defines the live-vision wire protocol and the client side
// channel: the agent sends quality-gated frames, the server streams back
// incremental and terminal detection results.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rtr-labs/repaircam/internal/capture"
)

type MessageType string

const (
	// client -> server
	TypeFrame MessageType = "frame"
	TypePing  MessageType = "ping"

	// server -> client
	TypePong              MessageType = "pong"
	TypeProcessingStarted MessageType = "processing_started"
	TypeToken             MessageType = "token"
	TypePartial           MessageType = "partial"
	TypeComplete          MessageType = "complete"
	TypeError             MessageType = "error"
	TypeDropped           MessageType = "dropped"
	TypeLowConfidence     MessageType = "low_confidence"
	TypeQualityWarning    MessageType = "quality_warning"
)

// DetectionData is the terminal structured payload of a successful detection
// cycle, persisted as session metadata by the chat backend.
type DetectionData struct {
	Object       string   `json:"object"`
	Brand        string   `json:"brand,omitempty"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	Condition    string   `json:"condition"`
	Issues       []string `json:"issues"`
	Description  string   `json:"description"`
}

// FrameMessage is the outbound frame envelope. Data is base64 JPEG with no
// data-URI prefix.
type FrameMessage struct {
	Type      MessageType `json:"type"`
	Data      string      `json:"data"`
	SessionID string      `json:"session_id,omitempty"`
}

// ServerMessage is the inbound result variant, discriminated by Type.
// Confidence is always a 0-1 fraction on the wire; use PercentConfidence for
// display.
type ServerMessage struct {
	Type       MessageType      `json:"type"`
	Token      string           `json:"token,omitempty"`
	Partial    string           `json:"partial,omitempty"`
	Result     *DetectionData   `json:"result,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Message    string           `json:"message,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Metrics    *capture.Metrics `json:"metrics,omitempty"`
	Timestamp  int64            `json:"timestamp,omitempty"`
}

// Terminal reports whether the message ends the current detection cycle.
func (m *ServerMessage) Terminal() bool {
	switch m.Type {
	case TypeComplete, TypeError, TypeDropped:
		return true
	default:
		return false
	}
}

// ParseServerMessage decodes an inbound message, rejecting unknown types so
// malformed traffic never leaks untyped data into the state machine.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}

	switch msg.Type {
	case TypePong, TypeProcessingStarted, TypeToken, TypePartial,
		TypeComplete, TypeError, TypeDropped, TypeLowConfidence, TypeQualityWarning:
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// PercentConfidence converts the canonical 0-1 wire confidence to a display
// percentage.
func PercentConfidence(c float64) int {
	if c < 0 {
		return 0
	}
	if c > 1 {
		c = 1
	}
	return int(c*100 + 0.5)
}

// StripDataURI removes a leading data:image/...;base64, prefix if the caller
// passed a full data URI instead of raw base64.
func StripDataURI(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if i := strings.Index(data, "base64,"); i >= 0 {
		return data[i+len("base64,"):]
	}
	return data
}
