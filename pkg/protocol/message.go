// Package protocol defines the WebSocket message types for rover-fleet
// communication. This package is shared between the rover uplink and the
// fleet hub.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Rover → Fleet messages
	TypeState MessageType = "state" // Pilot status snapshot

	// Fleet → Rover messages
	TypeDrive MessageType = "drive" // Manual drive command relay
	TypeTrack MessageType = "track" // Enable/disable autonomous tracking

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Rover → Fleet payloads
// =============================================================================

// StateData is a pilot status snapshot pushed upstream at a fixed rate.
type StateData struct {
	RoverID         string `json:"rover_id"`
	SessionID       string `json:"session_id,omitempty"`
	Tracking        bool   `json:"tracking"`
	CommandsSent    uint64 `json:"commands_sent"`
	TransportErrors uint64 `json:"transport_errors"`
	LastCommand     string `json:"last_command"`
	SearchPhase     string `json:"search_phase"`
	SearchCycle     int    `json:"search_cycle"`
	MicroTurnsDone  int    `json:"micro_turns_done"`
	MicroTurnTarget int    `json:"micro_turn_target"`
	FramesSeen      uint64 `json:"frames_seen"`
}

// GetStateData parses a state message payload.
func (m *Message) GetStateData() (*StateData, error) {
	if m.Type != TypeState {
		return nil, fmt.Errorf("message type is %s, not state", m.Type)
	}
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// =============================================================================
// Fleet → Rover payloads
// =============================================================================

// DriveCommand relays an operator drive command down to a rover.
type DriveCommand struct {
	Command string `json:"command"` // One of F, B, L, R, S
}

// GetDriveCommand parses a drive message payload.
func (m *Message) GetDriveCommand() (*DriveCommand, error) {
	if m.Type != TypeDrive {
		return nil, fmt.Errorf("message type is %s, not drive", m.Type)
	}
	var data DriveCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// TrackCommand toggles autonomous tracking on a rover.
type TrackCommand struct {
	Enabled bool `json:"enabled"`
}

// GetTrackCommand parses a track message payload.
func (m *Message) GetTrackCommand() (*TrackCommand, error) {
	if m.Type != TypeTrack {
		return nil, fmt.Errorf("message type is %s, not track", m.Type)
	}
	var data TrackCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// =============================================================================
// Health check payloads
// =============================================================================

// PingData carries the sender's timestamp for latency measurement.
type PingData struct {
	SentAt int64 `json:"sent_at"`
}

// PongData echoes the ping timestamp back.
type PongData struct {
	PingSentAt int64 `json:"ping_sent_at"`
	RepliedAt  int64 `json:"replied_at"`
}
