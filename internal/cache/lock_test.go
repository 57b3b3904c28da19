// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireLock(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			lock, ok, err := AcquireLock(ctx, s, "snapshot:lock:main", 30*time.Second)
			if err != nil || !ok {
				t.Fatalf("AcquireLock() = %v, %v", ok, err)
			}
			if lock.Key() != "snapshot:lock:main" || lock.Token() == "" {
				t.Errorf("lock = %+v", lock)
			}

			other, ok, err := AcquireLock(ctx, s, "snapshot:lock:main", 30*time.Second)
			if err != nil || ok || other != nil {
				t.Errorf("contended AcquireLock() = %v, %v, %v; want nil, false, nil", other, ok, err)
			}

			if err := lock.Release(ctx); err != nil {
				t.Errorf("Release() error = %v", err)
			}

			_, ok, _ = AcquireLock(ctx, s, "snapshot:lock:main", 30*time.Second)
			if !ok {
				t.Error("AcquireLock() after release should succeed")
			}
		})
	}
}

func TestLockExpiryRecovery(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, advance := f.new(t)
			ctx := context.Background()

			// First holder "crashes": never releases
			stale, ok, _ := AcquireLock(ctx, s, "lk", time.Second)
			if !ok {
				t.Fatal("first acquire failed")
			}

			advance(2 * time.Second)

			fresh, ok, err := AcquireLock(ctx, s, "lk", time.Second)
			if err != nil || !ok {
				t.Fatalf("AcquireLock() after TTL = %v, %v; want true, nil", ok, err)
			}

			// The stale holder waking up must not delete the fresh lock
			if err := stale.Release(ctx); !errors.Is(err, ErrLockNotHeld) {
				t.Errorf("stale Release() error = %v, want ErrLockNotHeld", err)
			}
			if got, err := s.Get(ctx, "lk"); err != nil || string(got) != fresh.Token() {
				t.Errorf("fresh lock value = %q, %v; want %q", got, err, fresh.Token())
			}

			if err := fresh.Release(ctx); err != nil {
				t.Errorf("fresh Release() error = %v", err)
			}
		})
	}
}

func TestLockReleaseTwice(t *testing.T) {
	s := NewMemory(WithCleanupInterval(0))
	defer s.Close()
	ctx := context.Background()

	lock, _, _ := AcquireLock(ctx, s, "lk", time.Minute)
	if err := lock.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(ctx); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("second Release() error = %v, want ErrLockNotHeld", err)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	s := NewMemory(WithCleanupInterval(0))
	defer s.Close()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := AcquireLock(ctx, s, "lk", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", winners.Load())
	}
}

func TestAcquireLockStoreError(t *testing.T) {
	f := NewFaulty(NewMemory(WithCleanupInterval(0)))
	defer f.Close()
	f.FailOn(OpSetNX, errors.New("connection refused"))

	lock, ok, err := AcquireLock(context.Background(), f, "lk", time.Minute)
	if err == nil || ok || lock != nil {
		t.Errorf("AcquireLock() = %v, %v, %v; want error", lock, ok, err)
	}
}
