// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFaulty(t *testing.T) {
	inner := NewMemory(WithCleanupInterval(0))
	f := NewFaulty(inner)
	defer f.Close()
	ctx := context.Background()
	boom := errors.New("boom")

	if err := f.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() without faults error = %v", err)
	}

	f.FailOn(OpGet, boom)
	if _, err := f.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want boom", err)
	}
	// Other operations pass through
	if _, err := f.TTL(ctx, "k"); err != nil {
		t.Errorf("TTL() error = %v", err)
	}

	f.FailAll(boom)
	if err := f.Ping(ctx); !errors.Is(err, boom) {
		t.Errorf("Ping() error = %v, want boom", err)
	}
	if _, err := f.IncrWithTTL(ctx, "n", time.Minute); !errors.Is(err, boom) {
		t.Errorf("IncrWithTTL() error = %v, want boom", err)
	}

	f.Heal()
	if got, err := f.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Errorf("Get() after Heal = %q, %v", got, err)
	}

	if f.Calls(OpGet) != 2 {
		t.Errorf("Calls(get) = %d, want 2", f.Calls(OpGet))
	}
}
