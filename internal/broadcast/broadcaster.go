// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// Outbound message types produced by a flush.
const (
	TypeUpdate      = "UPDATE"
	TypeBatchUpdate = "BATCH_UPDATE"
)

// Flush triggers, used as metric labels.
const (
	TriggerTimer  = "timer"
	TriggerSize   = "size"
	TriggerClose  = "close"
	TriggerManual = "manual"
)

// invalidateTimeout bounds the snapshot invalidation after each flush.
const invalidateTimeout = 2 * time.Second

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("broadcaster closed")

// Emitter delivers one message to every member of a room.
type Emitter interface {
	EmitToRoom(boardID, msgType string, payload any) error
}

// Invalidator drops the cached snapshot of a board.
type Invalidator interface {
	Invalidate(ctx context.Context, boardID string) error
}

// FlushObserver is told about every batch after it was emitted locally.
// It runs under the room's flush mutex so batches leave in the same order
// on every instance; a slow observer delays the next flush of that room and
// must return quickly.
type FlushObserver interface {
	BatchFlushed(boardID string, updates []board.CellUpdate)
}

// BatchPayload is the payload of a BATCH_UPDATE message.
type BatchPayload struct {
	BoardID string             `json:"boardId"`
	Updates []board.CellUpdate `json:"updates"`
}

// BuildMessage returns the message type and payload for a flushed batch.
func BuildMessage(boardID string, updates []board.CellUpdate) (string, any) {
	if len(updates) == 1 {
		return TypeUpdate, updates[0]
	}
	return TypeBatchUpdate, BatchPayload{BoardID: boardID, Updates: updates}
}

type room struct {
	boardID string

	// flushMu serialises flushes of this room across swap and emit.
	flushMu sync.Mutex

	mu      sync.Mutex
	pending map[board.Coord]board.CellUpdate
	order   []board.Coord
	timer   *time.Timer
	gen     uint64
}

// Broadcaster is the Pixel Batching Broadcaster.
type Broadcaster struct {
	emitter     Emitter
	invalidator Invalidator
	observer    FlushObserver

	flushDelay   time.Duration
	maxBatchSize int

	log zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithFlushObserver registers an observer called after every local emit.
func WithFlushObserver(o FlushObserver) Option {
	return func(b *Broadcaster) { b.observer = o }
}

// New creates a Broadcaster. invalidator may be nil.
func New(emitter Emitter, invalidator Invalidator, cfg config.BroadcastConfig, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		emitter:      emitter,
		invalidator:  invalidator,
		flushDelay:   cfg.FlushDelay,
		maxBatchSize: cfg.MaxBatchSize,
		log:          logging.WithComponent("broadcaster"),
		rooms:        make(map[string]*room),
	}
	if b.maxBatchSize < 1 {
		b.maxBatchSize = 1
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// room returns the buffer of boardID, creating it on first use. Boards are
// a small, seeded set so buffers are kept for the process lifetime.
func (b *Broadcaster) room(boardID string) (*room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	r, ok := b.rooms[boardID]
	if !ok {
		r = &room{boardID: boardID, pending: make(map[board.Coord]board.CellUpdate)}
		b.rooms[boardID] = r
	}
	return r, nil
}

// Enqueue adds one update to its room buffer.
func (b *Broadcaster) Enqueue(update board.CellUpdate) error {
	r, err := b.room(update.BoardID)
	if err != nil {
		return err
	}

	if b.add(r, update) {
		b.flush(r, TriggerSize, 0, false)
	}
	return nil
}

// add inserts or overwrites update and reports whether the buffer is full.
func (b *Broadcaster) add(r *room, update board.CellUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	coord := update.Coord()
	if _, exists := r.pending[coord]; exists {
		metrics.RecordBroadcastCoalesced()
	} else {
		r.order = append(r.order, coord)
	}
	r.pending[coord] = update

	if len(r.pending) >= b.maxBatchSize {
		return true
	}

	if r.timer == nil {
		r.gen++
		gen := r.gen
		r.timer = time.AfterFunc(b.flushDelay, func() {
			b.flush(r, TriggerTimer, gen, true)
		})
	}
	return false
}

// Flush emits the pending buffer of boardID now.
func (b *Broadcaster) Flush(boardID string) {
	b.mu.Lock()
	r, ok := b.rooms[boardID]
	b.mu.Unlock()
	if ok {
		b.flush(r, TriggerManual, 0, false)
	}
}

// flush swaps out and emits the buffer. A timer flush only runs if its
// generation is still current, so a stale timer never cuts a newer buffer.
func (b *Broadcaster) flush(r *room, trigger string, gen uint64, fromTimer bool) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if fromTimer && gen != r.gen {
		r.mu.Unlock()
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	updates := make([]board.CellUpdate, 0, len(r.order))
	for _, coord := range r.order {
		updates = append(updates, r.pending[coord])
	}
	r.pending = make(map[board.Coord]board.CellUpdate)
	r.order = nil
	r.mu.Unlock()

	if len(updates) == 0 {
		return
	}

	b.emit(r.boardID, trigger, updates)
}

func (b *Broadcaster) emit(boardID, trigger string, updates []board.CellUpdate) {
	msgType, payload := BuildMessage(boardID, updates)
	if err := b.emitter.EmitToRoom(boardID, msgType, payload); err != nil {
		metrics.RecordBroadcastDropped()
		b.log.Warn().Err(err).
			Str("board_id", boardID).
			Int("cells", len(updates)).
			Msg("Room emit failed, dropping broadcast")
	} else {
		metrics.RecordBroadcastFlush(trigger, len(updates))
	}

	if b.invalidator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		if err := b.invalidator.Invalidate(ctx, boardID); err != nil {
			b.log.Warn().Err(err).Str("board_id", boardID).Msg("Snapshot invalidation failed after flush")
		}
		cancel()
	}

	// Still under flushMu: relayed batches keep local order. Core NATS
	// publishes are buffered by the client, so this rarely waits on the broker.
	if b.observer != nil {
		b.observer.BatchFlushed(boardID, updates)
	}
}

// NotifyCellChanged hands one persisted change to the broadcaster.
func (b *Broadcaster) NotifyCellChanged(update board.CellUpdate) {
	if err := b.Enqueue(update); err != nil {
		b.log.Warn().Err(err).Str("board_id", update.BoardID).Msg("Cell change not broadcast")
	}
}

// NotifyCellsChangedBatch hands several persisted changes to the broadcaster.
func (b *Broadcaster) NotifyCellsChangedBatch(updates []board.CellUpdate) {
	for _, u := range updates {
		b.NotifyCellChanged(u)
	}
}

// Pending returns the number of buffered cells for boardID.
func (b *Broadcaster) Pending(boardID string) int {
	b.mu.Lock()
	r, ok := b.rooms[boardID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close flushes every pending room and rejects further updates.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	rooms := make([]*room, 0, len(b.rooms))
	for _, r := range b.rooms {
		rooms = append(rooms, r)
	}
	b.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].boardID < rooms[j].boardID })
	for _, r := range rooms {
		b.flush(r, TriggerClose, 0, false)
	}
	b.log.Info().Int("rooms", len(rooms)).Msg("Broadcaster closed")
}
