// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/ratelimit"
	"github.com/tomtom215/pixelboard/internal/validation"
)

var (
	// ErrRateLimited is matched by every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidRequest is returned for payloads that fail validation.
	ErrInvalidRequest = errors.New("invalid paint request")
)

// RateLimitError carries the retry hint of a denied paint.
type RateLimitError struct {
	RetryAfter time.Duration
	seconds    int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.seconds)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds is the whole-second retry hint sent to clients.
func (e *RateLimitError) RetryAfterSeconds() int { return e.seconds }

// InvalidRequestError wraps the validation failure of a paint request.
type InvalidRequestError struct {
	Cause *validation.RequestValidationError
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, e.Cause.Error())
}

// Unwrap lets errors.Is match ErrInvalidRequest.
func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// PaintRequest is one cell paint on behalf of an actor.
type PaintRequest struct {
	BoardID string `json:"boardId" validate:"required,boardid"`
	X       int    `json:"x" validate:"min=0,max=4096"`
	Y       int    `json:"y" validate:"min=0,max=4096"`
	Color   string `json:"color" validate:"required,color"`
	ActorID string `json:"actorId" validate:"required,actorid"`
}

// PaintResult is the persisted outcome of a paint.
type PaintResult struct {
	Update      board.CellUpdate `json:"update"`
	ChangeCount int64            `json:"changeCount"`
}

// BatchCell is one cell of a batch paint.
type BatchCell struct {
	X     int    `json:"x" validate:"min=0,max=4096"`
	Y     int    `json:"y" validate:"min=0,max=4096"`
	Color string `json:"color" validate:"required,color"`
}

// Notifier receives persisted changes.
type Notifier interface {
	NotifyCellChanged(update board.CellUpdate)
	NotifyCellsChangedBatch(updates []board.CellUpdate)
}

// Limiter is the per-actor rate limit check.
type Limiter interface {
	CheckLimit(ctx context.Context, actorID, action string, countFailuresOnly bool) ratelimit.Result
}

// Service paints cells.
type Service struct {
	store    board.Store
	limiter  Limiter
	notifier Notifier
}

// NewService creates a paint service.
func NewService(store board.Store, limiter Limiter, notifier Notifier) *Service {
	return &Service{store: store, limiter: limiter, notifier: notifier}
}

// Paint validates, rate-limits, persists and broadcasts one cell change.
func (s *Service) Paint(ctx context.Context, req PaintRequest) (*PaintResult, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, &InvalidRequestError{Cause: verr}
	}
	if err := s.checkLimit(ctx, req.ActorID); err != nil {
		return nil, err
	}

	res, err := s.write(ctx, req)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyCellChanged(res.Update)
	return res, nil
}

// PaintBatch paints cells one by one and broadcasts the persisted ones as a
// batch. Each cell is charged against the paint limit; the first denial or
// store failure stops the batch and is returned alongside what was painted.
func (s *Service) PaintBatch(ctx context.Context, boardID, actorID string, cells []BatchCell) ([]PaintResult, error) {
	reqs := make([]PaintRequest, len(cells))
	for i, c := range cells {
		reqs[i] = PaintRequest{BoardID: boardID, X: c.X, Y: c.Y, Color: c.Color, ActorID: actorID}
		if verr := validation.ValidateStruct(&reqs[i]); verr != nil {
			return nil, &InvalidRequestError{Cause: verr}
		}
	}

	results := make([]PaintResult, 0, len(reqs))
	var batchErr error
	for _, req := range reqs {
		if err := s.checkLimit(ctx, actorID); err != nil {
			batchErr = err
			break
		}
		res, err := s.write(ctx, req)
		if err != nil {
			batchErr = err
			break
		}
		results = append(results, *res)
	}

	if len(results) > 0 {
		updates := make([]board.CellUpdate, len(results))
		for i, r := range results {
			updates[i] = r.Update
		}
		s.notifier.NotifyCellsChangedBatch(updates)
	}
	return results, batchErr
}

func (s *Service) checkLimit(ctx context.Context, actorID string) error {
	res := s.limiter.CheckLimit(ctx, actorID, ratelimit.ActionPaint, false)
	if res.Allowed {
		return nil
	}
	return &RateLimitError{RetryAfter: res.RetryAfter, seconds: res.RetryAfterSeconds()}
}

func (s *Service) write(ctx context.Context, req PaintRequest) (*PaintResult, error) {
	wr, err := s.store.WriteCell(ctx, req.BoardID, req.X, req.Y, req.Color, req.ActorID)
	if err != nil {
		if !isClientError(err) {
			logging.Error().Err(err).
				Str("board_id", req.BoardID).
				Int("x", req.X).
				Int("y", req.Y).
				Msg("Cell write failed")
		}
		return nil, fmt.Errorf("paint %s (%d,%d): %w", req.BoardID, req.X, req.Y, err)
	}

	return &PaintResult{
		Update: board.CellUpdate{
			BoardID:   req.BoardID,
			X:         req.X,
			Y:         req.Y,
			Color:     req.Color,
			NewPrice:  wr.NewPrice,
			ActorID:   req.ActorID,
			Timestamp: wr.UpdatedAt,
		},
		ChangeCount: wr.ChangeCount,
	}, nil
}

// isClientError reports errors caused by the request rather than the store.
func isClientError(err error) bool {
	return errors.Is(err, board.ErrBoardNotFound) ||
		errors.Is(err, board.ErrBoardInactive) ||
		errors.Is(err, board.ErrOutOfBounds)
}

// IsClientError reports whether err was caused by the paint request itself.
func IsClientError(err error) bool {
	return isClientError(err) || errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrRateLimited)
}
