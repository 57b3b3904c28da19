// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the board tables and indexes
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the schema SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			base_price BIGINT NOT NULL DEFAULT 1,
			price_step BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		)`,

		// Only painted cells have rows
		`CREATE TABLE IF NOT EXISTS cells (
			board_id TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			color TEXT NOT NULL,
			price BIGINT NOT NULL,
			change_count BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			updated_by TEXT,
			PRIMARY KEY (board_id, x, y)
		)`,

		// Incremental resync reads cells changed after a timestamp
		`CREATE INDEX IF NOT EXISTS idx_cells_board_updated ON cells(board_id, updated_at)`,
	}
}
