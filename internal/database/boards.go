// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

var (
	_ board.Store  = (*DB)(nil)
	_ board.Seeder = (*DB)(nil)
)

// observe records operation latency and errors. Domain errors are not store failures.
func observe(operation string, start time.Time, err *error) {
	var recorded error
	if err != nil && *err != nil && !isDomainError(*err) {
		recorded = *err
	}
	metrics.RecordStoreOperation(operation, time.Since(start), recorded)
}

// isDomainError reports errors caused by the request rather than the store
func isDomainError(err error) bool {
	return errors.Is(err, board.ErrBoardNotFound) ||
		errors.Is(err, board.ErrBoardInactive) ||
		errors.Is(err, board.ErrOutOfBounds)
}

// CreateBoard implements board.Seeder. Zero prices fall back to the configured defaults.
func (db *DB) CreateBoard(ctx context.Context, info board.Info) (created bool, err error) {
	defer observe("create_board", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if info.BasePrice == 0 {
		info.BasePrice = db.cfg.BasePrice
	}
	if info.PriceStep == 0 {
		info.PriceStep = db.cfg.PriceStep
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = db.timestamp()
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO boards (id, width, height, active, base_price, price_step, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		info.ID, info.Width, info.Height, info.Active, info.BasePrice, info.PriceStep, info.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create board %s: %w", info.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// SetActive opens or closes a board for painting and joining.
func (db *DB) SetActive(ctx context.Context, boardID string, active bool) (err error) {
	defer observe("set_active", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE boards SET active = ? WHERE id = ?`, active, boardID)
	if err != nil {
		return fmt.Errorf("failed to update board %s: %w", boardID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return board.ErrBoardNotFound
	}
	return nil
}

// BoardInfo implements board.Store.
func (db *DB) BoardInfo(ctx context.Context, boardID string) (info *board.Info, err error) {
	defer observe("board_info", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.queryBoardInfo(db.conn.QueryRowContext(ctx, boardInfoQuery, boardID))
}

const boardInfoQuery = `
	SELECT id, width, height, active, base_price, price_step, created_at
	FROM boards WHERE id = ?`

func (db *DB) queryBoardInfo(row *sql.Row) (*board.Info, error) {
	var info board.Info
	err := row.Scan(&info.ID, &info.Width, &info.Height, &info.Active, &info.BasePrice, &info.PriceStep, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	return &info, nil
}

// ReadBoard implements board.Store.
func (db *DB) ReadBoard(ctx context.Context, boardID string) (snap *board.Snapshot, err error) {
	defer observe("read_board", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	info, err := db.queryBoardInfo(db.conn.QueryRowContext(ctx, boardInfoQuery, boardID))
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT x, y, color, price, change_count, updated_at
		FROM cells
		WHERE board_id = ?
		ORDER BY y, x`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer closeWithLog(rows, "rows")

	snap = &board.Snapshot{
		BoardID:     boardID,
		Width:       info.Width,
		Height:      info.Height,
		Cells:       []board.Cell{},
		LastUpdated: info.CreatedAt,
	}
	for rows.Next() {
		var c board.Cell
		var updatedAt time.Time
		if err := rows.Scan(&c.X, &c.Y, &c.Color, &c.Price, &c.ChangeCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		if updatedAt.After(snap.LastUpdated) {
			snap.LastUpdated = updatedAt
		}
		snap.Cells = append(snap.Cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cells: %w", err)
	}
	return snap, nil
}

// ReadCellsChangedSince implements board.Store.
func (db *DB) ReadCellsChangedSince(ctx context.Context, boardID string, since time.Time) (deltas []board.CellDelta, err error) {
	defer observe("read_changes", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.queryBoardInfo(db.conn.QueryRowContext(ctx, boardInfoQuery, boardID)); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT x, y, color, price, change_count, updated_at, COALESCE(updated_by, '')
		FROM cells
		WHERE board_id = ? AND updated_at > ?
		ORDER BY updated_at, y, x`, boardID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query changed cells: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var d board.CellDelta
		if err := rows.Scan(&d.X, &d.Y, &d.Color, &d.Price, &d.ChangeCount, &d.UpdatedAt, &d.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan changed cell: %w", err)
		}
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changed cells: %w", err)
	}
	return deltas, nil
}

// WriteCell implements board.Store. Conflicting concurrent writers are
// retried with a short exponential backoff.
func (db *DB) WriteCell(ctx context.Context, boardID string, x, y int, color, actorID string) (res *board.WriteResult, err error) {
	defer observe("write_cell", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < db.maxWriteRetries; attempt++ {
		res, err := db.doWriteCell(ctx, boardID, x, y, color, actorID)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isWriteConflict(err) {
			return nil, err
		}
		if attempt < db.maxWriteRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
			logging.Debug().Err(err).Int("attempt", attempt+1).Str("board_id", boardID).Msg("Cell write conflict, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isWriteConflict covers MVCC conflicts and two first paints racing on one cell
func isWriteConflict(err error) bool {
	return isTransactionConflict(err) || strings.Contains(err.Error(), "Duplicate key")
}

// doWriteCell performs one paint transaction
func (db *DB) doWriteCell(ctx context.Context, boardID string, x, y int, color, actorID string) (res *board.WriteResult, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Transaction rollback failed")
			}
		}
	}()

	var (
		width, height        int
		active               bool
		basePrice, priceStep int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT width, height, active, base_price, price_step FROM boards WHERE id = ?`, boardID,
	).Scan(&width, &height, &active, &basePrice, &priceStep)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	if !active {
		return nil, board.ErrBoardInactive
	}
	if x < 0 || y < 0 || x >= width || y >= height {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d board", board.ErrOutOfBounds, x, y, width, height)
	}

	now := db.timestamp()
	var price, changeCount int64
	err = tx.QueryRowContext(ctx, `
		SELECT price, change_count FROM cells WHERE board_id = ? AND x = ? AND y = ?`, boardID, x, y,
	).Scan(&price, &changeCount)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		price, changeCount = basePrice, 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cells (board_id, x, y, color, price, change_count, updated_at, updated_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			boardID, x, y, color, price, changeCount, now, actorID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert cell: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read cell: %w", err)
	default:
		price += priceStep
		changeCount++
		_, err = tx.ExecContext(ctx, `
			UPDATE cells
			SET color = ?, price = ?, change_count = ?, updated_at = ?, updated_by = ?
			WHERE board_id = ? AND x = ? AND y = ?`,
			color, price, changeCount, now, actorID, boardID, x, y)
		if err != nil {
			return nil, fmt.Errorf("failed to update cell: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cell write: %w", err)
	}
	return &board.WriteResult{NewPrice: price, ChangeCount: changeCount, UpdatedAt: now}, nil
}
