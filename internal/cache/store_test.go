// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/pixelboard/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// fakeClock is a manually advanced clock for the in-memory store
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storeFactory struct {
	name string
	new  func(t *testing.T) (Store, func(time.Duration))
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			new: func(t *testing.T) (Store, func(time.Duration)) {
				clock := newFakeClock()
				m := NewMemory(WithClock(clock.Now), WithCleanupInterval(0))
				t.Cleanup(func() { m.Close() })
				return m, clock.Advance
			},
		},
		{
			name: "redis",
			new: func(t *testing.T) (Store, func(time.Duration)) {
				mr := miniredis.RunT(t)
				r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
				t.Cleanup(func() { r.Close() })
				return r, mr.FastForward
			},
		},
	}
}

func TestStore_GetSet(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := s.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != "v1" {
				t.Errorf("Get() = %q, want v1", got)
			}

			if err := s.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			got, _ = s.Get(ctx, "k")
			if string(got) != "v2" {
				t.Errorf("Get() after overwrite = %q, want v2", got)
			}
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, advance := f.new(t)
			ctx := context.Background()

			if err := s.Set(ctx, "k", []byte("v"), 100*time.Millisecond); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get(ctx, "k"); err != nil {
				t.Errorf("Get() before expiry error = %v", err)
			}

			advance(150 * time.Millisecond)

			if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_SetNX(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, advance := f.new(t)
			ctx := context.Background()

			ok, err := s.SetNX(ctx, "lock", []byte("a"), time.Second)
			if err != nil || !ok {
				t.Fatalf("first SetNX() = %v, %v; want true, nil", ok, err)
			}
			ok, err = s.SetNX(ctx, "lock", []byte("b"), time.Second)
			if err != nil || ok {
				t.Fatalf("second SetNX() = %v, %v; want false, nil", ok, err)
			}

			got, _ := s.Get(ctx, "lock")
			if string(got) != "a" {
				t.Errorf("value = %q, want a (second SetNX must not overwrite)", got)
			}

			advance(2 * time.Second)
			ok, err = s.SetNX(ctx, "lock", []byte("c"), time.Second)
			if err != nil || !ok {
				t.Errorf("SetNX() after expiry = %v, %v; want true, nil", ok, err)
			}
		})
	}
}

func TestStore_CompareAndDelete(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			_ = s.Set(ctx, "lock", []byte("token-1"), time.Minute)

			ok, err := s.CompareAndDelete(ctx, "lock", []byte("token-2"))
			if err != nil || ok {
				t.Errorf("CompareAndDelete(wrong token) = %v, %v; want false, nil", ok, err)
			}
			if _, err := s.Get(ctx, "lock"); err != nil {
				t.Errorf("key deleted by wrong token: %v", err)
			}

			ok, err = s.CompareAndDelete(ctx, "lock", []byte("token-1"))
			if err != nil || !ok {
				t.Errorf("CompareAndDelete(right token) = %v, %v; want true, nil", ok, err)
			}
			if _, err := s.Get(ctx, "lock"); !errors.Is(err, ErrNotFound) {
				t.Errorf("key still present after delete: %v", err)
			}

			ok, err = s.CompareAndDelete(ctx, "lock", []byte("token-1"))
			if err != nil || ok {
				t.Errorf("CompareAndDelete(missing) = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestStore_IncrWithTTL(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, advance := f.new(t)
			ctx := context.Background()

			for want := int64(1); want <= 3; want++ {
				n, err := s.IncrWithTTL(ctx, "counter", time.Minute)
				if err != nil {
					t.Fatalf("IncrWithTTL() error = %v", err)
				}
				if n != want {
					t.Errorf("IncrWithTTL() = %d, want %d", n, want)
				}
			}

			ttl, err := s.TTL(ctx, "counter")
			if err != nil {
				t.Fatalf("TTL() error = %v", err)
			}
			if ttl <= 0 || ttl > time.Minute {
				t.Errorf("TTL() = %v, want within (0, 1m]", ttl)
			}

			// Later increments must not extend the window
			advance(30 * time.Second)
			_, _ = s.IncrWithTTL(ctx, "counter", time.Minute)
			ttl, _ = s.TTL(ctx, "counter")
			if ttl > 31*time.Second {
				t.Errorf("TTL() after second increment = %v, window was extended", ttl)
			}

			advance(31 * time.Second)
			n, err := s.IncrWithTTL(ctx, "counter", time.Minute)
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("IncrWithTTL() after window = %d, want 1", n)
			}
		})
	}
}

func TestStore_IncrRepairsMissingExpiry(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			_ = s.Set(ctx, "counter", []byte("5"), 0)
			if ttl, _ := s.TTL(ctx, "counter"); ttl != NoExpiry {
				t.Fatalf("TTL() = %v, want NoExpiry", ttl)
			}

			n, err := s.IncrWithTTL(ctx, "counter", time.Minute)
			if err != nil || n != 6 {
				t.Fatalf("IncrWithTTL() = %d, %v; want 6, nil", n, err)
			}
			if ttl, _ := s.TTL(ctx, "counter"); ttl <= 0 {
				t.Errorf("TTL() = %v, expiry should have been applied", ttl)
			}
		})
	}
}

func TestStore_IncrNotInteger(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			_ = s.Set(ctx, "counter", []byte("abc"), time.Minute)
			if _, err := s.IncrWithTTL(ctx, "counter", time.Minute); !errors.Is(err, ErrNotInteger) {
				t.Errorf("IncrWithTTL() error = %v, want ErrNotInteger", err)
			}
		})
	}
}

func TestStore_DeleteAndTTL(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			_ = s.Set(ctx, "a", []byte("1"), time.Minute)
			_ = s.Set(ctx, "b", []byte("2"), time.Minute)

			if err := s.Delete(ctx, "a", "b", "never-existed"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			for _, k := range []string{"a", "b"} {
				if _, err := s.Get(ctx, k); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%s) after delete error = %v", k, err)
				}
			}
			if _, err := s.TTL(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("TTL(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx); err != nil {
				t.Errorf("Delete() with no keys error = %v", err)
			}
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			if err := s.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestStore_ConcurrentIncr(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s, _ := f.new(t)
			ctx := context.Background()

			const workers = 50
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					if _, err := s.IncrWithTTL(ctx, "counter", time.Minute); err != nil {
						t.Errorf("IncrWithTTL() error = %v", err)
					}
				}()
			}
			wg.Wait()

			got, _ := s.Get(ctx, "counter")
			if string(got) != "50" {
				t.Errorf("counter = %s, want 50", got)
			}
		})
	}
}
