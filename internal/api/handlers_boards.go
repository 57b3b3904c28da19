// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/canvas"
	"github.com/tomtom215/pixelboard/internal/database"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/validation"
)

// maxBatchCells bounds one POST /pixels body.
const maxBatchCells = 256

// BoardStatsResponse is returned by GET /api/v1/boards/{id}/stats.
type BoardStatsResponse struct {
	BoardID     string `json:"boardId"`
	MemberCount int    `json:"memberCount"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Active      bool   `json:"active"`
}

// ChangesResponse is returned by GET /api/v1/boards/{id}/changes.
type ChangesResponse struct {
	BoardID    string            `json:"boardId"`
	Since      time.Time         `json:"since"`
	Changes    []board.CellDelta `json:"changes"`
	ServerTime time.Time         `json:"serverTime"`
}

// PaintPixelsRequest is the body of POST /api/v1/boards/{id}/pixels: either
// one cell (x, y, color) or a list of cells.
type PaintPixelsRequest struct {
	X     *int               `json:"x,omitempty"`
	Y     *int               `json:"y,omitempty"`
	Color string             `json:"color,omitempty"`
	Cells []canvas.BatchCell `json:"cells,omitempty"`
}

// PaintPixelsResponse lists the cells that were persisted.
type PaintPixelsResponse struct {
	Painted []canvas.PaintResult `json:"painted"`
}

// boardIDParam reads and validates the {id} URL parameter.
func boardIDParam(rw *ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validation.ValidBoardID(id) {
		rw.BadRequest("invalid board id")
		return "", false
	}
	return id, true
}

// BoardStats returns the live member count and dimensions of a board.
func (h *Handler) BoardStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	boardID, ok := boardIDParam(rw, r)
	if !ok {
		return
	}

	info, err := h.boards.BoardInfo(r.Context(), boardID)
	if err != nil {
		h.writeBoardError(rw, r, boardID, err)
		return
	}

	rw.Success(BoardStatsResponse{
		BoardID:     boardID,
		MemberCount: h.hub.RoomStats(boardID).MemberCount,
		Width:       info.Width,
		Height:      info.Height,
		Active:      info.Active,
	})
}

// BoardSnapshot returns the full board state through the Board State Cache.
func (h *Handler) BoardSnapshot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	boardID, ok := boardIDParam(rw, r)
	if !ok {
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), boardID)
	if err != nil {
		h.writeBoardError(rw, r, boardID, err)
		return
	}
	if snap == nil {
		rw.NotFound("board not found")
		return
	}
	rw.Success(snap)
}

// BoardChanges returns cells changed after the ?since= RFC3339 timestamp.
func (h *Handler) BoardChanges(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	boardID, ok := boardIDParam(rw, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("since")
	if raw == "" {
		rw.BadRequest("since is required")
		return
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		rw.BadRequest("since must be an RFC3339 timestamp")
		return
	}

	changes, err := h.snapshots.GetRecentChanges(r.Context(), boardID, since)
	if err != nil {
		h.writeBoardError(rw, r, boardID, err)
		return
	}
	if changes == nil {
		changes = []board.CellDelta{}
	}

	rw.Success(ChangesResponse{
		BoardID:    boardID,
		Since:      since.UTC(),
		Changes:    changes,
		ServerTime: time.Now().UTC(),
	})
}

// PaintPixels paints one cell or a batch of cells for the X-Actor-ID actor.
func (h *Handler) PaintPixels(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	boardID, ok := boardIDParam(rw, r)
	if !ok {
		return
	}

	actorID := r.Header.Get(ActorIDHeader)
	if !validation.ValidActorID(actorID) {
		rw.BadRequest(ActorIDHeader + " header is required")
		return
	}

	var req PaintPixelsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	switch {
	case len(req.Cells) > 0:
		h.paintBatch(rw, r, boardID, actorID, req.Cells)
	case req.X != nil && req.Y != nil:
		res, err := h.painter.Paint(r.Context(), canvas.PaintRequest{
			BoardID: boardID,
			X:       *req.X,
			Y:       *req.Y,
			Color:   req.Color,
			ActorID: actorID,
		})
		if err != nil {
			h.writePaintError(rw, r, boardID, err, nil)
			return
		}
		rw.Success(PaintPixelsResponse{Painted: []canvas.PaintResult{*res}})
	default:
		rw.BadRequest("body must contain x, y and color or a cells list")
	}
}

func (h *Handler) paintBatch(rw *ResponseWriter, r *http.Request, boardID, actorID string, cells []canvas.BatchCell) {
	if len(cells) > maxBatchCells {
		rw.BadRequest("too many cells in one request")
		return
	}

	results, err := h.painter.PaintBatch(r.Context(), boardID, actorID, cells)
	if err != nil {
		h.writePaintError(rw, r, boardID, err, results)
		return
	}
	rw.Success(PaintPixelsResponse{Painted: results})
}

// writePaintError maps paint failures to HTTP errors. Cells persisted before
// the failure are reported in the error details.
func (h *Handler) writePaintError(rw *ResponseWriter, r *http.Request, boardID string, err error, painted []canvas.PaintResult) {
	var (
		rle *canvas.RateLimitError
		ire *canvas.InvalidRequestError
	)
	switch {
	case errors.As(err, &rle):
		rw.TooManyRequests("too many paints", rle.RetryAfterSeconds(), paintedDetails(painted))
	case errors.As(err, &ire):
		apiErr := ire.Cause.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
	case errors.Is(err, board.ErrOutOfBounds):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, "cell is outside the board", paintedDetails(painted))
	default:
		h.writeBoardErrorWithDetails(rw, r, boardID, err, paintedDetails(painted))
	}
}

func paintedDetails(painted []canvas.PaintResult) interface{} {
	if len(painted) == 0 {
		return nil
	}
	return PaintPixelsResponse{Painted: painted}
}

func (h *Handler) writeBoardError(rw *ResponseWriter, r *http.Request, boardID string, err error) {
	h.writeBoardErrorWithDetails(rw, r, boardID, err, nil)
}

// writeBoardErrorWithDetails maps store and domain errors shared by every board route.
func (h *Handler) writeBoardErrorWithDetails(rw *ResponseWriter, r *http.Request, boardID string, err error, details interface{}) {
	switch {
	case errors.Is(err, board.ErrBoardNotFound):
		rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound, "board not found", details)
	case errors.Is(err, board.ErrBoardInactive):
		rw.ErrorWithDetails(http.StatusConflict, ErrCodeBoardUnavailable, "board is not accepting paints", details)
	case errors.Is(err, database.ErrStoreUnavailable):
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "board store unavailable", details)
	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("board_id", boardID).
			Str("path", r.URL.Path).
			Msg("Board request failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeInternalError, "internal error", details)
	}
}
