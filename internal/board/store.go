// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package board

import (
	"context"
	"time"
)

// Store is the persistence layer consumed by the real-time core.
type Store interface {
	// ReadBoard returns dimensions and all painted cells, or ErrBoardNotFound.
	ReadBoard(ctx context.Context, boardID string) (*Snapshot, error)

	// ReadCellsChangedSince returns cells updated strictly after since,
	// oldest first.
	ReadCellsChangedSince(ctx context.Context, boardID string, since time.Time) ([]CellDelta, error)

	// WriteCell paints one cell in a single transaction.
	WriteCell(ctx context.Context, boardID string, x, y int, color, actorID string) (*WriteResult, error)

	// BoardInfo returns board metadata, or ErrBoardNotFound.
	BoardInfo(ctx context.Context, boardID string) (*Info, error)
}

// Seeder creates boards at startup.
type Seeder interface {
	// CreateBoard inserts a board if it does not already exist and reports
	// whether it was created.
	CreateBoard(ctx context.Context, info Info) (bool, error)
}
