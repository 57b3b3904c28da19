// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// Lock is a held distributed lock. The token is unique to this holder.
type Lock struct {
	store Store
	key   string
	token string
	ttl   time.Duration
}

// AcquireLock tries once to take key with the given TTL. It returns
// (nil, false, nil) when another holder owns the lock.
func AcquireLock(ctx context.Context, store Store, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()

	ok, err := store.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		metrics.RecordLockOperation("acquire", "error")
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		metrics.RecordLockOperation("acquire", "contended")
		return nil, false, nil
	}

	metrics.RecordLockOperation("acquire", "acquired")
	return &Lock{store: store, key: key, token: token, ttl: ttl}, true, nil
}

// Key returns the lock key.
func (l *Lock) Key() string { return l.key }

// Token returns the holder token.
func (l *Lock) Token() string { return l.token }

// Release deletes the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	ok, err := l.store.CompareAndDelete(ctx, l.key, []byte(l.token))
	if err != nil {
		metrics.RecordLockOperation("release", "error")
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if !ok {
		metrics.RecordLockOperation("release", "not_held")
		logging.Error().
			Str("key", l.key).
			Str("token", l.token).
			Dur("ttl", l.ttl).
			Msg("Released a lock this holder no longer owns (TTL expired before release)")
		return ErrLockNotHeld
	}

	metrics.RecordLockOperation("release", "released")
	return nil
}
