// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package resync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// Payload kinds, matching the outbound message types.
const (
	KindSnapshot = "SNAPSHOT"
	KindDelta    = "DELTA"
)

// Snapshot reasons.
const (
	ReasonInitial         = "initial"
	ReasonStale           = "stale connection"
	ReasonBoardState      = "board state"
	ReasonClientRequested = "client requested"
)

// BoardState is what the protocol needs from the Board State Cache.
type BoardState interface {
	GetSnapshot(ctx context.Context, boardID string) (*board.Snapshot, error)
	GetRecentChanges(ctx context.Context, boardID string, since time.Time) ([]board.CellDelta, error)
}

// Payload is the initial state sent to a client after JOIN or RESYNC.
// Exactly one of Snapshot and Changes is set.
type Payload struct {
	Kind       string            `json:"kind"`
	Reason     string            `json:"reason,omitempty"`
	BoardID    string            `json:"boardId"`
	Snapshot   *board.Snapshot   `json:"snapshot,omitempty"`
	Changes    []board.CellDelta `json:"changes,omitempty"`
	Since      *time.Time        `json:"since,omitempty"`
	ServerTime time.Time         `json:"serverTime"`
}

// Protocol implements the reconnection sync decision.
type Protocol struct {
	state          BoardState
	staleThreshold time.Duration
	now            func() time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// New creates a Protocol.
func New(state BoardState, cfg config.SyncConfig, opts ...Option) *Protocol {
	p := &Protocol{
		state:          state,
		staleThreshold: cfg.StaleThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InitialPayload chooses between a snapshot and a delta for a joining client.
// lastKnown is the client's own report of when it last received state.
func (p *Protocol) InitialPayload(ctx context.Context, boardID string, lastKnown *time.Time) (*Payload, error) {
	if lastKnown == nil {
		return p.snapshot(ctx, boardID, ReasonInitial)
	}

	now := p.now()
	if now.Sub(*lastKnown) > p.staleThreshold {
		return p.snapshot(ctx, boardID, ReasonStale)
	}

	changes, err := p.state.GetRecentChanges(ctx, boardID, *lastKnown)
	if err != nil {
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Delta read failed, sending full snapshot")
		return p.snapshot(ctx, boardID, ReasonBoardState)
	}
	if len(changes) == 0 {
		return p.snapshot(ctx, boardID, ReasonBoardState)
	}

	since := *lastKnown
	metrics.RecordSyncPayload(KindDelta, "")
	return &Payload{
		Kind:       KindDelta,
		BoardID:    boardID,
		Changes:    changes,
		Since:      &since,
		ServerTime: now,
	}, nil
}

// RequestSnapshot answers an explicit client resync request.
func (p *Protocol) RequestSnapshot(ctx context.Context, boardID string) (*Payload, error) {
	return p.snapshot(ctx, boardID, ReasonClientRequested)
}

func (p *Protocol) snapshot(ctx context.Context, boardID, reason string) (*Payload, error) {
	snap, err := p.state.GetSnapshot(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", boardID, err)
	}
	if snap == nil {
		return nil, board.ErrBoardNotFound
	}

	metrics.RecordSyncPayload(KindSnapshot, reason)
	return &Payload{
		Kind:       KindSnapshot,
		Reason:     reason,
		BoardID:    boardID,
		Snapshot:   snap,
		ServerTime: p.now(),
	}, nil
}
