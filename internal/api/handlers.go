// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"context"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/canvas"
	"github.com/tomtom215/pixelboard/internal/config"
	ws "github.com/tomtom215/pixelboard/internal/websocket"
)

// BoardDirectory looks up board metadata.
type BoardDirectory interface {
	BoardInfo(ctx context.Context, boardID string) (*board.Info, error)
}

// SnapshotReader serves board state through the Board State Cache.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, boardID string) (*board.Snapshot, error)
	GetRecentChanges(ctx context.Context, boardID string, since time.Time) ([]board.CellDelta, error)
}

// Painter persists paints and hands them to the broadcaster.
type Painter interface {
	Paint(ctx context.Context, req canvas.PaintRequest) (*canvas.PaintResult, error)
	PaintBatch(ctx context.Context, boardID, actorID string, cells []canvas.BatchCell) ([]canvas.PaintResult, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerDeps lists everything the handlers need. Database is optional.
type HandlerDeps struct {
	Config     *config.Config
	Boards     BoardDirectory
	Snapshots  SnapshotReader
	Painter    Painter
	Hub        *ws.Hub
	Dispatcher *ws.Dispatcher
	Cache      Pinger
	Database   Pinger
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_boards.go: board stats, snapshot, changes and pixel writes
//   - handlers_rooms.go: live room listing
//   - handlers_health.go: liveness and readiness probes
//   - handlers_websocket.go: WebSocket upgrade
type Handler struct {
	config     *config.Config
	boards     BoardDirectory
	snapshots  SnapshotReader
	painter    Painter
	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	cache      Pinger
	database   Pinger
	startTime  time.Time
}

// NewHandler creates a new API handler.
//
// Example:
//
//	handler := api.NewHandler(api.HandlerDeps{...})
//	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(cfg.Security))
//	http.ListenAndServe(":8080", router.SetupChi())
func NewHandler(deps HandlerDeps) *Handler {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	return &Handler{
		config:     deps.Config,
		boards:     deps.Boards,
		snapshots:  deps.Snapshots,
		painter:    deps.Painter,
		hub:        deps.Hub,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		database:   deps.Database,
		startTime:  time.Now(),
	}
}
