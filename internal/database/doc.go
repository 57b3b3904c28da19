// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package database is the DuckDB persistence layer for Pixelboard boards.

DB implements board.Store and board.Seeder over two tables:

	boards(id, width, height, active, base_price, price_step, created_at)
	cells(board_id, x, y, color, price, change_count, updated_at, updated_by)

Only painted cells have rows. A first paint inserts the cell at the board's
base price; every later paint adds the price step and bumps change_count.
Each WriteCell runs in its own transaction and is retried with a short
backoff when DuckDB reports an optimistic transaction conflict, which
happens when two writers hit the same cell at once.

# Resilience

ResilientStore wraps any board.Store in a sony/gobreaker circuit breaker.
Domain errors (board.ErrBoardNotFound, board.ErrOutOfBounds,
board.ErrBoardInactive) count as successes so a client hammering a missing
board cannot open the circuit for everyone else. When the circuit is open
calls fail fast with ErrStoreUnavailable.

# Usage

	db, err := database.New(&cfg.Database)
	if err != nil {
	    return err
	}
	defer db.Close()

	if err := database.SeedBoards(ctx, db, cfg.Database); err != nil {
	    return err
	}
	store := database.NewResilientStore(db, cfg.Database)

Tests use Path ":memory:" which gives each DB its own private database.
*/
package database
