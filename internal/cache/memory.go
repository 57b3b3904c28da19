// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

// entry is a stored value with an optional expiry (zero means none)
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is a thread-safe in-memory Store with TTL support.
//
// Expired entries are removed lazily on access and by a background cleanup
// loop. Every operation holds the mutex for its whole duration, which makes
// SetNX, CompareAndDelete and IncrWithTTL atomic.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	closeOnce       sync.Once

	statsMu sync.RWMutex
	stats   Stats
}

// Stats tracks in-memory store activity
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables the loop.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.cleanupInterval = d
	}
}

// NewMemory creates an in-memory store. A cleanup goroutine runs every
// minute until Close is called.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:         make(map[string]entry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stats.LastCleanup = m.now()

	if m.cleanupInterval > 0 {
		go m.cleanupLoop()
	}
	return m
}

// lookup returns a live entry; caller holds m.mu
func (m *Memory) lookup(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		m.recordEviction(1)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	e, ok := m.lookup(key)
	m.mu.Unlock()

	if !ok {
		m.recordMiss()
		return nil, ErrNotFound
	}
	m.recordHit()
	return bytes.Clone(e.value), nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: bytes.Clone(value), expiresAt: m.expiry(ttl)}
	m.updateTotalKeys(len(m.entries))
	return nil
}

// SetNX implements Store.
func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.entries[key] = entry{value: bytes.Clone(value), expiresAt: m.expiry(ttl)}
	m.updateTotalKeys(len(m.entries))
	return true, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := m.entries[key]; ok {
			delete(m.entries, key)
			removed++
		}
	}
	m.recordEviction(removed)
	m.updateTotalKeys(len(m.entries))
	return nil
}

// CompareAndDelete implements Store.
func (m *Memory) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(m.entries, key)
	m.updateTotalKeys(len(m.entries))
	return true, nil
}

// IncrWithTTL implements Store.
func (m *Memory) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	var n int64
	if ok {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = v
	}
	n++

	if !ok || e.expiresAt.IsZero() {
		e.expiresAt = m.expiry(ttl)
	}
	e.value = []byte(strconv.FormatInt(n, 10))
	m.entries[key] = e
	m.updateTotalKeys(len(m.entries))
	return n, nil
}

// TTL implements Store.
func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return NoExpiry, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

// Ping implements Store.
func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// Close stops the cleanup loop. Stored data remains readable.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	return nil
}

// GetStats returns a copy of the current statistics
func (m *Memory) GetStats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

// HitRate returns the hit rate as a percentage
func (m *Memory) HitRate() float64 {
	stats := m.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// cleanupLoop periodically removes expired entries
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes all expired entries
func (m *Memory) cleanup() {
	now := m.now()
	m.mu.Lock()
	var evictions int64
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			evictions++
		}
	}
	total := len(m.entries)
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats.Evictions += evictions
	m.stats.TotalKeys = int64(total)
	m.stats.LastCleanup = now
	m.statsMu.Unlock()
}

func (m *Memory) recordHit() {
	m.statsMu.Lock()
	m.stats.Hits++
	m.statsMu.Unlock()
}

func (m *Memory) recordMiss() {
	m.statsMu.Lock()
	m.stats.Misses++
	m.statsMu.Unlock()
}

func (m *Memory) recordEviction(n int64) {
	if n == 0 {
		return
	}
	m.statsMu.Lock()
	m.stats.Evictions += n
	m.statsMu.Unlock()
}

func (m *Memory) updateTotalKeys(n int) {
	m.statsMu.Lock()
	m.stats.TotalKeys = int64(n)
	m.statsMu.Unlock()
}
