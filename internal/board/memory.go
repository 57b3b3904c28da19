// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memCell struct {
	Cell
	updatedAt time.Time
	updatedBy string
}

type memBoard struct {
	info  Info
	cells map[Coord]*memCell
}

// MemoryStore is an in-process Store and Seeder.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]*memBoard
	now    func() time.Time
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{boards: make(map[string]*memBoard), now: now}
}

// CreateBoard implements Seeder.
func (m *MemoryStore) CreateBoard(_ context.Context, info Info) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boards[info.ID]; exists {
		return false, nil
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = m.now()
	}
	m.boards[info.ID] = &memBoard{info: info, cells: make(map[Coord]*memCell)}
	return true, nil
}

// SetActive opens or closes a board.
func (m *MemoryStore) SetActive(boardID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[boardID]
	if !ok {
		return ErrBoardNotFound
	}
	b.info.Active = active
	return nil
}

// ReadBoard implements Store.
func (m *MemoryStore) ReadBoard(_ context.Context, boardID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[boardID]
	if !ok {
		return nil, ErrBoardNotFound
	}

	snap := &Snapshot{
		BoardID:     boardID,
		Width:       b.info.Width,
		Height:      b.info.Height,
		Cells:       make([]Cell, 0, len(b.cells)),
		LastUpdated: b.info.CreatedAt,
	}
	for _, c := range b.cells {
		snap.Cells = append(snap.Cells, c.Cell)
		if c.updatedAt.After(snap.LastUpdated) {
			snap.LastUpdated = c.updatedAt
		}
	}
	sort.Slice(snap.Cells, func(i, j int) bool {
		if snap.Cells[i].Y != snap.Cells[j].Y {
			return snap.Cells[i].Y < snap.Cells[j].Y
		}
		return snap.Cells[i].X < snap.Cells[j].X
	})
	return snap, nil
}

// ReadCellsChangedSince implements Store.
func (m *MemoryStore) ReadCellsChangedSince(_ context.Context, boardID string, since time.Time) ([]CellDelta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[boardID]
	if !ok {
		return nil, ErrBoardNotFound
	}

	var deltas []CellDelta
	for _, c := range b.cells {
		if c.updatedAt.After(since) {
			deltas = append(deltas, CellDelta{
				X:           c.X,
				Y:           c.Y,
				Color:       c.Color,
				Price:       c.Price,
				ChangeCount: c.ChangeCount,
				UpdatedAt:   c.updatedAt,
				UpdatedBy:   c.updatedBy,
			})
		}
	}
	sort.Slice(deltas, func(i, j int) bool {
		if !deltas[i].UpdatedAt.Equal(deltas[j].UpdatedAt) {
			return deltas[i].UpdatedAt.Before(deltas[j].UpdatedAt)
		}
		if deltas[i].Y != deltas[j].Y {
			return deltas[i].Y < deltas[j].Y
		}
		return deltas[i].X < deltas[j].X
	})
	return deltas, nil
}

// WriteCell implements Store.
func (m *MemoryStore) WriteCell(_ context.Context, boardID string, x, y int, color, actorID string) (*WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.boards[boardID]
	if !ok {
		return nil, ErrBoardNotFound
	}
	if !b.info.Active {
		return nil, ErrBoardInactive
	}
	if !b.info.Contains(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, x, y, b.info.Width, b.info.Height)
	}

	coord := Coord{X: x, Y: y}
	c, exists := b.cells[coord]
	if !exists {
		c = &memCell{Cell: Cell{X: x, Y: y, Price: b.info.BasePrice}}
		b.cells[coord] = c
	} else {
		c.Price += b.info.PriceStep
	}
	c.Color = color
	c.ChangeCount++
	c.updatedAt = m.now()
	c.updatedBy = actorID

	return &WriteResult{NewPrice: c.Price, ChangeCount: c.ChangeCount, UpdatedAt: c.updatedAt}, nil
}

// BoardInfo implements Store.
func (m *MemoryStore) BoardInfo(_ context.Context, boardID string) (*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[boardID]
	if !ok {
		return nil, ErrBoardNotFound
	}
	info := b.info
	return &info, nil
}
