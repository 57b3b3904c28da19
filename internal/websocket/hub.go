// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
	"github.com/tomtom215/pixelboard/internal/resync"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

const defaultSweepInterval = 5 * time.Minute

var (
	// ErrHubClosed is returned by EmitToRoom and Join after shutdown.
	ErrHubClosed = errors.New("websocket hub closed")

	// ErrNotInRoom is returned for room operations on a connection without a room.
	ErrNotInRoom = errors.New("connection has not joined a board")
)

// JoinError is returned when a board cannot be joined. Room state is unchanged.
type JoinError struct {
	Code    string
	BoardID string
	Err     error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %s: %s: %v", e.BoardID, e.Code, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// Connection is one live client as the hub sees it.
type Connection interface {
	ID() uint64
	// Send queues msg without blocking and reports whether it was queued.
	Send(msg Message) bool
	Close()
}

// BoardDirectory answers whether a board can be joined.
type BoardDirectory interface {
	BoardInfo(ctx context.Context, boardID string) (*board.Info, error)
}

// SyncProtocol produces initial payloads.
type SyncProtocol interface {
	InitialPayload(ctx context.Context, boardID string, lastKnown *time.Time) (*resync.Payload, error)
	RequestSnapshot(ctx context.Context, boardID string) (*resync.Payload, error)
}

// JoinRequest is a validated JOIN.
type JoinRequest struct {
	BoardID            string
	ActorID            string
	LastKnownTimestamp *time.Time
}

// RoomStats describes one room.
type RoomStats struct {
	BoardID     string `json:"boardId"`
	MemberCount int    `json:"memberCount"`
}

type member struct {
	conn     Connection
	boardID  string
	actorID  string
	lastSeen time.Time
}

// Hub is the Connection & Room Manager. It is the only writer of room
// membership; its lock is never held across store, cache or send calls.
type Hub struct {
	boards   BoardDirectory
	protocol SyncProtocol
	cfg      config.RoomsConfig
	now      func() time.Time

	mu     sync.RWMutex
	conns  map[uint64]*member
	rooms  map[string]map[uint64]struct{}
	closed bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubClock overrides time.Now for idle tracking.
func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a new Hub
func NewHub(boards BoardDirectory, protocol SyncProtocol, cfg config.RoomsConfig, opts ...HubOption) *Hub {
	h := &Hub{
		boards:   boards,
		protocol: protocol,
		cfg:      cfg,
		now:      time.Now,
		conns:    make(map[uint64]*member),
		rooms:    make(map[string]map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds conn to the live set. Join registers implicitly.
func (h *Hub) Register(conn Connection) {
	h.mu.Lock()
	h.ensureMember(conn)
	total := len(h.conns)
	h.mu.Unlock()
	logging.Debug().Uint64("conn_id", conn.ID()).Int("total_clients", total).Msg("websocket client registered")
}

// ensureMember must be called with h.mu held.
func (h *Hub) ensureMember(conn Connection) *member {
	m, ok := h.conns[conn.ID()]
	if !ok {
		m = &member{conn: conn, lastSeen: h.now()}
		h.conns[conn.ID()] = m
	}
	return m
}

// Touch records activity on a connection.
func (h *Hub) Touch(connID uint64) {
	h.mu.Lock()
	if m, ok := h.conns[connID]; ok {
		m.lastSeen = h.now()
	}
	h.mu.Unlock()
}

// Join moves conn into the room of req.BoardID and returns its initial payload.
func (h *Hub) Join(ctx context.Context, conn Connection, req JoinRequest) (*resync.Payload, error) {
	if err := h.checkJoinable(ctx, req.BoardID); err != nil {
		metrics.RecordRoomChange("join_rejected", h.activeRooms())
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	m := h.ensureMember(conn)
	m.lastSeen = h.now()
	if req.ActorID != "" {
		m.actorID = req.ActorID
	}
	prev := m.boardID
	moved := prev != req.BoardID
	if moved {
		h.removeFromRoom(conn.ID(), prev)
		room, ok := h.rooms[req.BoardID]
		if !ok {
			room = make(map[uint64]struct{})
			h.rooms[req.BoardID] = room
		}
		room[conn.ID()] = struct{}{}
		m.boardID = req.BoardID
	}
	h.mu.Unlock()

	// Member counts go out only once the payload exists; a failed join is
	// rolled back without any MEMBER_COUNT.
	payload, err := h.protocol.InitialPayload(ctx, req.BoardID, req.LastKnownTimestamp)
	if err != nil {
		if moved {
			h.rollbackJoin(conn.ID(), prev, req.BoardID)
		}
		return nil, fmt.Errorf("initial payload for %s: %w", req.BoardID, err)
	}

	if moved {
		metrics.RecordRoomChange("join", h.activeRooms())
		if prev != "" {
			h.emitMemberCount(prev)
		}
		h.emitMemberCount(req.BoardID)
		logging.Debug().
			Uint64("conn_id", conn.ID()).
			Str("board_id", req.BoardID).
			Str("previous_board_id", prev).
			Msg("Connection joined room")
	}
	return payload, nil
}

// rollbackJoin puts connID back into prev after a join to boardID failed.
// A Leave or disconnect that raced the join wins.
func (h *Hub) rollbackJoin(connID uint64, prev, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[connID]
	if !ok || m.boardID != boardID {
		return
	}
	h.removeFromRoom(connID, boardID)
	m.boardID = prev
	if prev == "" {
		return
	}
	room, ok := h.rooms[prev]
	if !ok {
		room = make(map[uint64]struct{})
		h.rooms[prev] = room
	}
	room[connID] = struct{}{}
}

func (h *Hub) checkJoinable(ctx context.Context, boardID string) error {
	info, err := h.boards.BoardInfo(ctx, boardID)
	switch {
	case errors.Is(err, board.ErrBoardNotFound):
		return &JoinError{Code: ErrorCodeBoardUnavailable, BoardID: boardID, Err: err}
	case err != nil:
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Board lookup failed during join")
		return &JoinError{Code: ErrorCodeBoardUnavailable, BoardID: boardID, Err: err}
	case !info.Active:
		return &JoinError{Code: ErrorCodeBoardUnavailable, BoardID: boardID, Err: board.ErrBoardInactive}
	}
	return nil
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(connID uint64, boardID string) bool {
	room, ok := h.rooms[boardID]
	if !ok {
		return false
	}
	if _, in := room[connID]; !in {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, boardID)
	}
	return true
}

// Leave removes conn from its room. Safe to call repeatedly.
func (h *Hub) Leave(conn Connection) {
	h.mu.Lock()
	m, ok := h.conns[conn.ID()]
	if !ok || m.boardID == "" {
		h.mu.Unlock()
		return
	}
	boardID := m.boardID
	m.boardID = ""
	h.removeFromRoom(conn.ID(), boardID)
	active := len(h.rooms)
	h.mu.Unlock()

	metrics.RecordRoomChange("leave", active)
	h.emitMemberCount(boardID)
}

// OnDisconnect is Leave plus dropping conn from the live set.
func (h *Hub) OnDisconnect(conn Connection) {
	h.Leave(conn)

	h.mu.Lock()
	delete(h.conns, conn.ID())
	total := len(h.conns)
	h.mu.Unlock()
	logging.Debug().Uint64("conn_id", conn.ID()).Int("total_clients", total).Msg("websocket client disconnected")
}

// RoomOf returns the board conn has joined.
func (h *Hub) RoomOf(connID uint64) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.conns[connID]
	if !ok || m.boardID == "" {
		return "", false
	}
	return m.boardID, true
}

// Resync returns a fresh snapshot for the room conn is in.
func (h *Hub) Resync(ctx context.Context, conn Connection) (*resync.Payload, error) {
	boardID, ok := h.RoomOf(conn.ID())
	if !ok {
		return nil, ErrNotInRoom
	}
	return h.protocol.RequestSnapshot(ctx, boardID)
}

// Sweep reconciles room membership with the live connection set and drops
// members idle for longer than rooms.idle_timeout. Problems are logged only.
func (h *Hub) Sweep() {
	now := h.now()
	changed := make(map[string]struct{})
	var idle []Connection
	stale := 0

	h.mu.Lock()
	for boardID, room := range h.rooms {
		for id := range room {
			m, ok := h.conns[id]
			if !ok || m.boardID != boardID {
				delete(room, id)
				changed[boardID] = struct{}{}
				stale++
			}
		}
		if len(room) == 0 {
			delete(h.rooms, boardID)
		}
	}
	if h.cfg.IdleTimeout > 0 {
		for id, m := range h.conns {
			if now.Sub(m.lastSeen) <= h.cfg.IdleTimeout {
				continue
			}
			if m.boardID != "" {
				h.removeFromRoom(id, m.boardID)
				changed[m.boardID] = struct{}{}
			}
			delete(h.conns, id)
			idle = append(idle, m.conn)
		}
	}
	active := len(h.rooms)
	h.mu.Unlock()

	sort.Slice(idle, func(i, j int) bool { return idle[i].ID() < idle[j].ID() })
	for _, conn := range idle {
		conn.Close()
	}

	boards := make([]string, 0, len(changed))
	for boardID := range changed {
		boards = append(boards, boardID)
	}
	sort.Strings(boards)
	for _, boardID := range boards {
		h.emitMemberCount(boardID)
	}

	if stale > 0 || len(idle) > 0 {
		metrics.RecordRoomChange("swept", active)
		logging.Info().
			Int("stale_members", stale).
			Int("idle_connections", len(idle)).
			Int("rooms_active", active).
			Msg("Room sweep removed members")
	}
}

// BroadcastToRoom sends msg to every member of boardID except excludeConnID
// (zero excludes nobody) and returns how many sends were queued.
//
// DETERMINISM: Members are sent to in connection id order.
func (h *Hub) BroadcastToRoom(boardID string, msg Message, excludeConnID uint64) int {
	h.mu.RLock()
	room := h.rooms[boardID]
	targets := make([]Connection, 0, len(room))
	for id := range room {
		if id == excludeConnID {
			continue
		}
		if m, ok := h.conns[id]; ok {
			targets = append(targets, m.conn)
		}
	}
	h.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].ID() < targets[j].ID() })

	delivered := 0
	for _, conn := range targets {
		if conn.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// EmitToRoom implements broadcast.Emitter.
func (h *Hub) EmitToRoom(boardID, msgType string, payload any) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrHubClosed
	}
	h.BroadcastToRoom(boardID, Message{Type: msgType, Payload: payload}, 0)
	return nil
}

func (h *Hub) emitMemberCount(boardID string) {
	count := h.RoomStats(boardID).MemberCount
	h.BroadcastToRoom(boardID, Message{
		Type:    MessageTypeMemberCount,
		Payload: MemberCountPayload{BoardID: boardID, Count: count},
	}, 0)
}

// RoomStats returns the member count of boardID (zero for unknown rooms).
func (h *Hub) RoomStats(boardID string) RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return RoomStats{BoardID: boardID, MemberCount: len(h.rooms[boardID])}
}

// Rooms lists active rooms ordered by board id.
func (h *Hub) Rooms() []RoomStats {
	h.mu.RLock()
	stats := make([]RoomStats, 0, len(h.rooms))
	for boardID, room := range h.rooms {
		stats = append(stats, RoomStats{BoardID: boardID, MemberCount: len(room)})
	}
	h.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].BoardID < stats[j].BoardID })
	return stats
}

// GetClientCount returns the number of live connections
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) activeRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RunWithContext runs the periodic room sweep until ctx is canceled.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: Uses priority-based selection so that shutdown always wins
// over a sweep tick that became ready at the same time.
func (h *Hub) RunWithContext(ctx context.Context) error {
	interval := h.cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Wait for a sweep tick or shutdown
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// logGracefulShutdown closes all clients and logs the shutdown with
// structured fields.
//
// Note: ctx.Err() is NOT logged as an error because context cancellation
// is expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()
	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every live connection and forgets all rooms.
// DETERMINISM: Closes clients in ID order to ensure consistent shutdown behavior.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	h.closed = true
	conns := make([]Connection, 0, len(h.conns))
	for _, m := range h.conns {
		conns = append(conns, m.conn)
	}
	h.conns = make(map[uint64]*member)
	h.rooms = make(map[string]map[uint64]struct{})
	h.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })
	for _, conn := range conns {
		conn.Close()
	}
	metrics.RecordRoomChange("shutdown", 0)
	return len(conns)
}
