// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package websocket

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pixelboard/internal/broadcast"
	"github.com/tomtom215/pixelboard/internal/resync"
)

// Inbound message types
const (
	MessageTypeJoin   = "JOIN"
	MessageTypeLeave  = "LEAVE"
	MessageTypePaint  = "PAINT"
	MessageTypeResync = "RESYNC"
	MessageTypePing   = "PING"
)

// Outbound message types
const (
	MessageTypeSnapshot    = resync.KindSnapshot
	MessageTypeDelta       = resync.KindDelta
	MessageTypeUpdate      = broadcast.TypeUpdate
	MessageTypeBatchUpdate = broadcast.TypeBatchUpdate
	MessageTypeMemberCount = "MEMBER_COUNT"
	MessageTypeError       = "ERROR"
	MessageTypePong        = "PONG"
)

// Error codes carried in ERROR payloads
const (
	ErrorCodeBoardUnavailable = "BOARD_UNAVAILABLE"
	ErrorCodeRateLimited      = "RATE_LIMITED"
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"
	ErrorCodeInternal         = "INTERNAL_ERROR"
)

// Message is an outbound frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope is an inbound frame; Payload is decoded per Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the payload of JOIN.
type JoinPayload struct {
	BoardID            string     `json:"boardId" validate:"required,boardid"`
	ActorID            string     `json:"actorId,omitempty" validate:"omitempty,actorid"`
	LastKnownTimestamp *time.Time `json:"lastKnownTimestamp,omitempty"`
}

// PaintPayload is the payload of PAINT. The board is the joined room.
type PaintPayload struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// MemberCountPayload is the payload of MEMBER_COUNT.
type MemberCountPayload struct {
	BoardID string `json:"boardId"`
	Count   int    `json:"count"`
}

// ErrorPayload is the payload of ERROR.
type ErrorPayload struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// PongPayload is the payload of PONG.
type PongPayload struct {
	ServerTime time.Time `json:"serverTime"`
}

// NewErrorMessage builds an ERROR frame.
func NewErrorMessage(code, message string) Message {
	return Message{Type: MessageTypeError, Payload: ErrorPayload{Code: code, Message: message}}
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
