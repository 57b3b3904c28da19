// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/canvas"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/ratelimit"
	"github.com/tomtom215/pixelboard/internal/resync"
	"github.com/tomtom215/pixelboard/internal/validation"
)

// handleTimeout bounds the store and cache work done for one inbound frame.
const handleTimeout = 10 * time.Second

// Session is a Connection that also carries the actor it acts for.
type Session interface {
	Connection
	ActorID() string
	SetActorID(actorID string)
}

// Painter persists paints.
type Painter interface {
	Paint(ctx context.Context, req canvas.PaintRequest) (*canvas.PaintResult, error)
}

// Limiter is the per-actor rate limit check.
type Limiter interface {
	CheckLimit(ctx context.Context, actorID, action string, countFailuresOnly bool) ratelimit.Result
}

// Dispatcher routes inbound frames. Client errors are answered on the
// originating connection only.
type Dispatcher struct {
	hub     *Hub
	painter Painter
	limiter Limiter
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(hub *Hub, painter Painter, limiter Limiter) *Dispatcher {
	return &Dispatcher{hub: hub, painter: painter, limiter: limiter, now: time.Now}
}

// Handle processes one inbound frame.
func (d *Dispatcher) Handle(ctx context.Context, s Session, env Envelope) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch env.Type {
	case MessageTypeJoin:
		d.handleJoin(ctx, s, env.Payload)
	case MessageTypeLeave:
		d.hub.Leave(s)
	case MessageTypePaint:
		d.handlePaint(ctx, s, env.Payload)
	case MessageTypeResync:
		d.handleResync(ctx, s)
	case MessageTypePing:
		s.Send(Message{Type: MessageTypePong, Payload: PongPayload{ServerTime: d.now().UTC()}})
	default:
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, fmt.Sprintf("unknown message type %q", env.Type)))
	}
}

// actorFor returns the actor id limits are charged to.
func actorFor(s Session) string {
	if a := s.ActorID(); a != "" {
		return a
	}
	return fmt.Sprintf("conn-%d", s.ID())
}

func (d *Dispatcher) handleJoin(ctx context.Context, s Session, raw json.RawMessage) {
	var p JoinPayload
	if err := decodePayload(raw, &p); err != nil {
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, err.Error()))
		return
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, verr.Error()))
		return
	}
	if p.ActorID != "" && s.ActorID() == "" {
		s.SetActorID(p.ActorID)
	}

	if !d.allow(ctx, s, ratelimit.ActionJoin) {
		return
	}

	payload, err := d.hub.Join(ctx, s, JoinRequest{
		BoardID:            p.BoardID,
		ActorID:            s.ActorID(),
		LastKnownTimestamp: p.LastKnownTimestamp,
	})
	if err != nil {
		d.sendJoinError(ctx, s, p.BoardID, err)
		return
	}
	sendPayload(s, payload)
}

func (d *Dispatcher) sendJoinError(ctx context.Context, s Session, boardID string, err error) {
	var je *JoinError
	if errors.As(err, &je) {
		s.Send(NewErrorMessage(je.Code, fmt.Sprintf("board %q is not available", boardID)))
		return
	}
	if errors.Is(err, board.ErrBoardNotFound) {
		s.Send(NewErrorMessage(ErrorCodeBoardUnavailable, fmt.Sprintf("board %q is not available", boardID)))
		return
	}
	logging.Ctx(ctx).Error().Err(err).Str("board_id", boardID).Msg("Join failed")
	s.Send(NewErrorMessage(ErrorCodeInternal, "failed to load board state"))
}

func (d *Dispatcher) handlePaint(ctx context.Context, s Session, raw json.RawMessage) {
	boardID, ok := d.hub.RoomOf(s.ID())
	if !ok {
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, ErrNotInRoom.Error()))
		return
	}

	var p PaintPayload
	if err := decodePayload(raw, &p); err != nil {
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, err.Error()))
		return
	}

	_, err := d.painter.Paint(ctx, canvas.PaintRequest{
		BoardID: boardID,
		X:       p.X,
		Y:       p.Y,
		Color:   p.Color,
		ActorID: actorFor(s),
	})
	if err != nil {
		s.Send(paintErrorMessage(err))
	}
}

// paintErrorMessage maps a paint failure to the ERROR frame for the painter.
func paintErrorMessage(err error) Message {
	var rle *canvas.RateLimitError
	switch {
	case errors.As(err, &rle):
		return Message{Type: MessageTypeError, Payload: ErrorPayload{
			Code:              ErrorCodeRateLimited,
			Message:           "too many paints",
			RetryAfterSeconds: rle.RetryAfterSeconds(),
		}}
	case errors.Is(err, board.ErrBoardNotFound), errors.Is(err, board.ErrBoardInactive):
		return NewErrorMessage(ErrorCodeBoardUnavailable, "board is not available")
	case errors.Is(err, canvas.ErrInvalidRequest), errors.Is(err, board.ErrOutOfBounds):
		return NewErrorMessage(ErrorCodeInvalidRequest, err.Error())
	default:
		return NewErrorMessage(ErrorCodeInternal, "paint could not be saved")
	}
}

func (d *Dispatcher) handleResync(ctx context.Context, s Session) {
	if _, ok := d.hub.RoomOf(s.ID()); !ok {
		s.Send(NewErrorMessage(ErrorCodeInvalidRequest, ErrNotInRoom.Error()))
		return
	}
	if !d.allow(ctx, s, ratelimit.ActionSnapshotRequest) {
		return
	}

	payload, err := d.hub.Resync(ctx, s)
	if err != nil {
		if errors.Is(err, board.ErrBoardNotFound) {
			s.Send(NewErrorMessage(ErrorCodeBoardUnavailable, "board is not available"))
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Resync failed")
		s.Send(NewErrorMessage(ErrorCodeInternal, "failed to load board state"))
		return
	}
	sendPayload(s, payload)
}

// allow charges action to the session's actor and answers RATE_LIMITED on denial.
func (d *Dispatcher) allow(ctx context.Context, s Session, action string) bool {
	res := d.limiter.CheckLimit(ctx, actorFor(s), action, false)
	if res.Allowed {
		return true
	}
	s.Send(Message{Type: MessageTypeError, Payload: ErrorPayload{
		Code:              ErrorCodeRateLimited,
		Message:           fmt.Sprintf("too many %s requests", action),
		RetryAfterSeconds: res.RetryAfterSeconds(),
	}})
	return false
}

func sendPayload(s Session, payload *resync.Payload) {
	s.Send(Message{Type: payload.Kind, Payload: payload})
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
