// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBoardNotFound is returned when a board id does not exist.
	ErrBoardNotFound = errors.New("board not found")

	// ErrBoardInactive is returned when writing to a board that is closed.
	ErrBoardInactive = errors.New("board is not active")

	// ErrOutOfBounds is returned when a coordinate falls outside the board.
	ErrOutOfBounds = errors.New("cell coordinates out of bounds")
)

// Coord is a cell position on a board.
type Coord struct {
	X int
	Y int
}

// CellUpdate is one persisted cell change on its way to viewers.
type CellUpdate struct {
	BoardID   string    `json:"boardId"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Color     string    `json:"color"`
	NewPrice  int64     `json:"newPrice"`
	ActorID   string    `json:"actorId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Coord returns the update's coordinate.
func (u CellUpdate) Coord() Coord {
	return Coord{X: u.X, Y: u.Y}
}

// Cell is the current state of one painted cell.
type Cell struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Color       string `json:"color"`
	Price       int64  `json:"price"`
	ChangeCount int64  `json:"changeCount"`
}

// Snapshot is the full point-in-time state of a board.
// Cells holds painted cells only; unpainted cells are implicit.
type Snapshot struct {
	BoardID     string    `json:"boardId"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Cells       []Cell    `json:"cells"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// CellAt finds a cell in the snapshot.
func (s *Snapshot) CellAt(x, y int) (Cell, bool) {
	for _, c := range s.Cells {
		if c.X == x && c.Y == y {
			return c, true
		}
	}
	return Cell{}, false
}

// CellDelta is a cell changed after some timestamp.
type CellDelta struct {
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Color       string    `json:"color"`
	Price       int64     `json:"price"`
	ChangeCount int64     `json:"changeCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// Info describes a board without its cells.
type Info struct {
	ID        string    `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Active    bool      `json:"active"`
	BasePrice int64     `json:"basePrice"`
	PriceStep int64     `json:"priceStep"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports whether (x, y) lies on the board.
func (i Info) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.Width && y < i.Height
}

// WriteResult is returned by a successful cell write.
type WriteResult struct {
	NewPrice    int64
	ChangeCount int64
	UpdatedAt   time.Time
}

// ParseSeed parses a "id:WIDTHxHEIGHT" seed entry.
func ParseSeed(seed string) (Info, error) {
	id, dims, ok := strings.Cut(seed, ":")
	if !ok || id == "" {
		return Info{}, fmt.Errorf("invalid board seed %q: want id:WIDTHxHEIGHT", seed)
	}
	ws, hs, ok := strings.Cut(dims, "x")
	if !ok {
		return Info{}, fmt.Errorf("invalid board seed %q: want id:WIDTHxHEIGHT", seed)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return Info{}, fmt.Errorf("invalid board seed %q: bad width", seed)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return Info{}, fmt.Errorf("invalid board seed %q: bad height", seed)
	}
	return Info{ID: id, Width: w, Height: h, Active: true}, nil
}
