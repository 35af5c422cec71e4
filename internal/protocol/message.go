// Package protocol defines the JSON wire envelope and message payloads
// exchanged with clients. It is an encoding boundary only: no game
// logic lives here.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types.
const (
	TypeConnect     = "CONNECT"
	TypeMove        = "MOVE"
	TypeFire        = "FIRE"
	TypePing        = "PING"
	TypePong        = "PONG"
	TypeStateUpdate = "STATE_UPDATE"
	TypeError       = "ERROR"
)

// Wire error codes sent in ERROR payloads.
const (
	CodeNotConnected     = "NOT_CONNECTED"
	CodeInvalidMove      = "INVALID_MOVE"
	CodeMoveFailed       = "MOVE_FAILED"
	CodeInvalidDirection = "INVALID_DIRECTION"
	CodeBulletInFlight   = "BULLET_IN_FLIGHT"
	CodeUnknownType      = "UNKNOWN_TYPE"
)

// ErrMalformed is returned by Parse for envelopes that cannot be
// dispatched: bad JSON or missing required fields.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is the wire frame. Type, Payload and Timestamp are
// mandatory; ClientID is optional and server-assigned.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // wall-clock ms
	ClientID  string          `json:"clientId,omitempty"`
}

// Parse decodes and validates a wire envelope.
func Parse(data []byte) (Envelope, error) {
	// Decode into a shadow struct with pointers so that absent fields
	// are distinguishable from zero values.
	var raw struct {
		Type      *string         `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp *int64          `json:"timestamp"`
		ClientID  string          `json:"clientId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Type == nil || *raw.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if len(raw.Payload) == 0 || string(raw.Payload) == "null" {
		return Envelope{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if raw.Timestamp == nil {
		return Envelope{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	return Envelope{
		Type:      *raw.Type,
		Payload:   raw.Payload,
		Timestamp: *raw.Timestamp,
		ClientID:  raw.ClientID,
	}, nil
}

// New builds an outbound envelope, stamping the current wall-clock in
// milliseconds. payload must marshal to a JSON object.
func New(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", msgType, err)
	}
	return Envelope{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Encode renders the envelope as a JSON frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", e.Type, err)
	}
	return data, nil
}

// ConnectRequest is the C→S CONNECT payload. PlayerID is set only on
// the reconnect path.
type ConnectRequest struct {
	PlayerName string `json:"playerName,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`
}

// ConnectResponse is the unicast CONNECT acknowledgement.
type ConnectResponse struct {
	ClientID   string     `json:"clientId"`
	PlayerID   string     `json:"playerId"`
	PlayerName string     `json:"playerName"`
	GameState  *GameState `json:"gameState"`
}

// MoveRequest is the C→S MOVE payload.
type MoveRequest struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// FireRequest is the C→S FIRE payload.
type FireRequest struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// ErrorPayload is the unicast ERROR payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
