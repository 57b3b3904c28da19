// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"sync"
	"time"
)

// Operation names accepted by Faulty.FailOn.
const (
	OpGet              = "get"
	OpSet              = "set"
	OpSetNX            = "setnx"
	OpDelete           = "delete"
	OpCompareAndDelete = "compare_and_delete"
	OpIncr             = "incr"
	OpTTL              = "ttl"
	OpPing             = "ping"
)

// Faulty wraps a Store and returns injected errors for selected operations.
// It exists so callers can exercise their cache-outage paths.
type Faulty struct {
	Store

	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
}

// NewFaulty wraps inner. With no faults configured it behaves exactly like inner.
func NewFaulty(inner Store) *Faulty {
	return &Faulty{
		Store: inner,
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailOn makes op return err until Heal is called.
func (f *Faulty) FailOn(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

// FailAll makes every operation return err.
func (f *Faulty) FailAll(err error) {
	for _, op := range []string{OpGet, OpSet, OpSetNX, OpDelete, OpCompareAndDelete, OpIncr, OpTTL, OpPing} {
		f.FailOn(op, err)
	}
}

// Heal clears all injected faults.
func (f *Faulty) Heal() {
	f.mu.Lock()
	f.fail = make(map[string]error)
	f.mu.Unlock()
}

// Calls returns how many times op was invoked, failed or not.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

// Get implements Store.
func (f *Faulty) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.check(OpGet); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

// Set implements Store.
func (f *Faulty) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.check(OpSet); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value, ttl)
}

// SetNX implements Store.
func (f *Faulty) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := f.check(OpSetNX); err != nil {
		return false, err
	}
	return f.Store.SetNX(ctx, key, value, ttl)
}

// Delete implements Store.
func (f *Faulty) Delete(ctx context.Context, keys ...string) error {
	if err := f.check(OpDelete); err != nil {
		return err
	}
	return f.Store.Delete(ctx, keys...)
}

// CompareAndDelete implements Store.
func (f *Faulty) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	if err := f.check(OpCompareAndDelete); err != nil {
		return false, err
	}
	return f.Store.CompareAndDelete(ctx, key, expected)
}

// IncrWithTTL implements Store.
func (f *Faulty) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := f.check(OpIncr); err != nil {
		return 0, err
	}
	return f.Store.IncrWithTTL(ctx, key, ttl)
}

// TTL implements Store.
func (f *Faulty) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := f.check(OpTTL); err != nil {
		return 0, err
	}
	return f.Store.TTL(ctx, key)
}

// Ping implements Store.
func (f *Faulty) Ping(ctx context.Context) error {
	if err := f.check(OpPing); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}
