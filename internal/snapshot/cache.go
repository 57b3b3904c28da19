// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/cache"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// Outcomes reported in snapshot_requests_total.
const (
	OutcomeHit       = "hit"
	OutcomePopulated = "populated"
	OutcomeWaited    = "waited"
	OutcomeFallback  = "fallback"
	OutcomeNotFound  = "not_found"
)

// Key returns the Shared Cache key of a board snapshot.
func Key(boardID string) string {
	return "snapshot:" + boardID
}

// LockKey returns the population lock key of a board.
func LockKey(boardID string) string {
	return "snapshot:lock:" + boardID
}

// GenerationKey returns the key counting invalidations of a board. A lock
// holder only publishes what it read if the count did not move meanwhile.
func GenerationKey(boardID string) string {
	return "snapshot:gen:" + boardID
}

// Cache is the Board State Cache.
type Cache struct {
	store  board.Store
	shared cache.Store
	cfg    config.SnapshotConfig

	group singleflight.Group
}

// New creates a Board State Cache.
func New(store board.Store, shared cache.Store, cfg config.SnapshotConfig) *Cache {
	return &Cache{store: store, shared: shared, cfg: cfg}
}

type result struct {
	snap    *board.Snapshot
	outcome string
}

// GetSnapshot returns the current snapshot of boardID, or (nil, nil) when
// the board does not exist.
func (c *Cache) GetSnapshot(ctx context.Context, boardID string) (*board.Snapshot, error) {
	snap, err := c.readCached(ctx, boardID)
	switch {
	case err == nil:
		metrics.RecordSnapshotRequest(OutcomeHit)
		return snap, nil
	case !errors.Is(err, cache.ErrNotFound):
		metrics.RecordSnapshotCacheError("get")
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Snapshot cache read failed, reading store directly")
		return c.directRead(ctx, boardID)
	}

	// Collapse concurrent local misses. The shared call is detached from any
	// single caller so one cancelled request cannot fail the others.
	ch := c.group.DoChan(boardID, func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.populateTimeout())
		defer cancel()
		return c.populate(pctx, boardID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		r := res.Val.(result)
		metrics.RecordSnapshotRequest(r.outcome)
		return r.snap, nil
	}
}

// populateTimeout bounds one populate call: the lock TTL plus the full poll budget.
func (c *Cache) populateTimeout() time.Duration {
	return c.cfg.LockTTL + time.Duration(c.cfg.PollAttempts)*c.cfg.PollMaxDelay
}

// populate runs the lock protocol for one miss.
func (c *Cache) populate(ctx context.Context, boardID string) (result, error) {
	lock, acquired, err := cache.AcquireLock(ctx, c.shared, LockKey(boardID), c.cfg.LockTTL)
	if err != nil {
		metrics.RecordSnapshotCacheError("lock")
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Snapshot lock unavailable, reading store directly")
		return c.fallback(ctx, boardID)
	}

	if !acquired {
		if snap, ok := c.waitForPopulation(ctx, boardID); ok {
			return result{snap: snap, outcome: OutcomeWaited}, nil
		}
		if ctx.Err() != nil {
			return result{}, ctx.Err()
		}
		logging.Debug().Str("board_id", boardID).Msg("Snapshot population wait exhausted, reading store directly")
		return c.fallback(ctx, boardID)
	}

	defer func() {
		// Release on a fresh context so a cancelled caller still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, cache.ErrLockNotHeld) {
			logging.Warn().Err(err).Str("board_id", boardID).Msg("Failed to release snapshot lock")
		}
	}()

	// Another instance may have finished between our miss and our acquire
	if snap, err := c.readCached(ctx, boardID); err == nil {
		return result{snap: snap, outcome: OutcomeHit}, nil
	}

	gen, genErr := c.generation(ctx, boardID)
	snap, err := c.readStore(ctx, boardID)
	if err != nil {
		return result{}, err
	}
	if snap == nil {
		return result{outcome: OutcomeNotFound}, nil
	}

	if genErr != nil {
		metrics.RecordSnapshotCacheError("get")
		logging.Warn().Err(genErr).Str("board_id", boardID).Msg("Snapshot generation unreadable, not caching")
	} else {
		c.publish(ctx, snap, gen)
	}
	return result{snap: snap, outcome: OutcomePopulated}, nil
}

// publish caches snap unless boardID was invalidated after gen was read.
// The count is checked again after the write: an Invalidate that slipped in
// between bumped it before deleting, so either it removes our entry or we do.
func (c *Cache) publish(ctx context.Context, snap *board.Snapshot, gen int64) {
	if !c.generationIs(ctx, snap.BoardID, gen) {
		logging.Debug().Str("board_id", snap.BoardID).Msg("Snapshot invalidated during read, not caching")
		return
	}
	c.writeCached(ctx, snap)
	if !c.generationIs(ctx, snap.BoardID, gen) {
		if err := c.shared.Delete(ctx, Key(snap.BoardID)); err != nil {
			metrics.RecordSnapshotCacheError("delete")
			logging.Warn().Err(err).Str("board_id", snap.BoardID).Msg("Failed to drop superseded snapshot")
		}
	}
}

// generation returns the invalidation count of boardID; a missing key is zero.
func (c *Cache) generation(ctx context.Context, boardID string) (int64, error) {
	raw, err := c.shared.Get(ctx, GenerationKey(boardID))
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("generation of %s: %w", boardID, cache.ErrNotInteger)
	}
	return n, nil
}

func (c *Cache) generationIs(ctx context.Context, boardID string, want int64) bool {
	got, err := c.generation(ctx, boardID)
	return err == nil && got == want
}

// generationTTL outlives any population that could still be comparing.
func (c *Cache) generationTTL() time.Duration {
	if c.cfg.TTL <= 0 {
		return 0
	}
	return c.cfg.TTL + c.cfg.LockTTL
}

// waitForPopulation polls the cache with capped exponential backoff.
func (c *Cache) waitForPopulation(ctx context.Context, boardID string) (*board.Snapshot, bool) {
	delay := c.cfg.PollBaseDelay
	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		snap, err := c.readCached(ctx, boardID)
		if err == nil {
			return snap, true
		}
		if !errors.Is(err, cache.ErrNotFound) {
			metrics.RecordSnapshotCacheError("get")
			return nil, false
		}

		delay *= 2
		if delay > c.cfg.PollMaxDelay {
			delay = c.cfg.PollMaxDelay
		}
	}
	return nil, false
}

func (c *Cache) fallback(ctx context.Context, boardID string) (result, error) {
	snap, err := c.readStore(ctx, boardID)
	if err != nil {
		return result{}, err
	}
	if snap == nil {
		return result{outcome: OutcomeNotFound}, nil
	}
	return result{snap: snap, outcome: OutcomeFallback}, nil
}

func (c *Cache) directRead(ctx context.Context, boardID string) (*board.Snapshot, error) {
	r, err := c.fallback(ctx, boardID)
	if err != nil {
		return nil, err
	}
	metrics.RecordSnapshotRequest(r.outcome)
	return r.snap, nil
}

// readStore reads the full board; a missing board is (nil, nil).
func (c *Cache) readStore(ctx context.Context, boardID string) (*board.Snapshot, error) {
	metrics.RecordSnapshotStoreRead()
	snap, err := c.store.ReadBoard(ctx, boardID)
	if errors.Is(err, board.ErrBoardNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read board %s: %w", boardID, err)
	}
	return snap, nil
}

func (c *Cache) readCached(ctx context.Context, boardID string) (*board.Snapshot, error) {
	raw, err := c.shared.Get(ctx, Key(boardID))
	if err != nil {
		return nil, err
	}
	var snap board.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Drop the corrupt entry and treat it as a miss
		logging.Warn().Err(err).Str("board_id", boardID).Msg("Discarding undecodable cached snapshot")
		_ = c.shared.Delete(ctx, Key(boardID))
		return nil, cache.ErrNotFound
	}
	return &snap, nil
}

func (c *Cache) writeCached(ctx context.Context, snap *board.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		logging.Error().Err(err).Str("board_id", snap.BoardID).Msg("Failed to encode snapshot")
		return
	}
	if err := c.shared.Set(ctx, Key(snap.BoardID), raw, c.cfg.TTL); err != nil {
		metrics.RecordSnapshotCacheError("set")
		logging.Warn().Err(err).Str("board_id", snap.BoardID).Msg("Failed to cache snapshot")
	}
}

// Invalidate deletes the cached snapshot of boardID and bumps its
// generation so an in-flight population does not re-cache older state.
// The lock is left alone.
func (c *Cache) Invalidate(ctx context.Context, boardID string) error {
	metrics.RecordSnapshotInvalidation()

	// The bump must land before the delete
	var genErr error
	if _, err := c.shared.IncrWithTTL(ctx, GenerationKey(boardID), c.generationTTL()); err != nil {
		metrics.RecordSnapshotCacheError("incr")
		genErr = fmt.Errorf("bump snapshot generation %s: %w", boardID, err)
	}
	if err := c.shared.Delete(ctx, Key(boardID)); err != nil {
		metrics.RecordSnapshotCacheError("delete")
		return errors.Join(genErr, fmt.Errorf("invalidate snapshot %s: %w", boardID, err))
	}
	return genErr
}

// GetRecentChanges returns cells changed after since, straight from the store.
func (c *Cache) GetRecentChanges(ctx context.Context, boardID string, since time.Time) ([]board.CellDelta, error) {
	deltas, err := c.store.ReadCellsChangedSince(ctx, boardID, since)
	if err != nil {
		return nil, fmt.Errorf("read changes for %s: %w", boardID, err)
	}
	return deltas, nil
}
