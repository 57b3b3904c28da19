// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrNotInteger is returned when IncrWithTTL hits a non-integer value.
	ErrNotInteger = errors.New("cache: value is not an integer")

	// ErrLockNotHeld is returned when releasing a lock whose token no longer matches.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// NoExpiry is returned by TTL for keys that exist without an expiry.
const NoExpiry time.Duration = -1

// Store is the Shared Cache capability.
//
// Implementations must make SetNX, CompareAndDelete and IncrWithTTL atomic
// with respect to every other operation on the same key.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// CompareAndDelete removes key only if its value equals expected.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// IncrWithTTL increments the integer at key, creating it at 1, and sets
	// the TTL when the key is new or has no expiry.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of key, NoExpiry, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// New returns a Redis store when cfg.Enabled is set, otherwise an in-memory store.
func New(cfg config.RedisConfig) (Store, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Shared cache: using in-memory store (redis disabled)")
		return NewMemory(), nil
	}

	store, err := NewRedis(cfg)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Shared cache: connected to Redis")
	return store, nil
}
