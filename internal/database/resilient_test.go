// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
)

// flakyStore fails every call with err while err is set
type flakyStore struct {
	*board.MemoryStore
	mu  sync.Mutex
	err error
}

func (f *flakyStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *flakyStore) currentErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *flakyStore) BoardInfo(ctx context.Context, boardID string) (*board.Info, error) {
	if err := f.currentErr(); err != nil {
		return nil, err
	}
	return f.MemoryStore.BoardInfo(ctx, boardID)
}

func (f *flakyStore) ReadBoard(ctx context.Context, boardID string) (*board.Snapshot, error) {
	if err := f.currentErr(); err != nil {
		return nil, err
	}
	return f.MemoryStore.ReadBoard(ctx, boardID)
}

func newResilient(t *testing.T) (*ResilientStore, *flakyStore) {
	t.Helper()
	mem := board.NewMemoryStore(nil)
	_, _ = mem.CreateBoard(context.Background(), board.Info{ID: "b", Width: 4, Height: 4, Active: true, BasePrice: 1, PriceStep: 1})
	flaky := &flakyStore{MemoryStore: mem}
	rs := NewResilientStore(flaky, config.DatabaseConfig{
		BreakerMaxRequests: 1,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     50 * time.Millisecond,
		BreakerFailures:    3,
	})
	return rs, flaky
}

func TestResilientStorePassThrough(t *testing.T) {
	rs, _ := newResilient(t)
	ctx := context.Background()

	res, err := rs.WriteCell(ctx, "b", 0, 0, "#fff", "a")
	if err != nil || res.NewPrice != 1 {
		t.Fatalf("WriteCell() = %+v, %v", res, err)
	}
	snap, err := rs.ReadBoard(ctx, "b")
	if err != nil || len(snap.Cells) != 1 {
		t.Fatalf("ReadBoard() = %+v, %v", snap, err)
	}
	deltas, err := rs.ReadCellsChangedSince(ctx, "b", time.Now().Add(time.Hour))
	if err != nil || len(deltas) != 0 {
		t.Errorf("ReadCellsChangedSince() = %v, %v", deltas, err)
	}
}

func TestResilientStoreOpensOnFailures(t *testing.T) {
	rs, flaky := newResilient(t)
	ctx := context.Background()

	flaky.setErr(errors.New("IO Error: disk unavailable"))
	for i := 0; i < 3; i++ {
		if _, err := rs.BoardInfo(ctx, "b"); err == nil {
			t.Fatal("expected failure from flaky store")
		}
	}
	if rs.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", rs.State())
	}

	_, err := rs.ReadBoard(ctx, "b")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("open circuit error = %v, want ErrStoreUnavailable", err)
	}

	// Recover after the timeout with a successful half-open probe
	flaky.setErr(nil)
	time.Sleep(80 * time.Millisecond)
	if _, err := rs.BoardInfo(ctx, "b"); err != nil {
		t.Fatalf("half-open probe error = %v", err)
	}
	if rs.State() != gobreaker.StateClosed {
		t.Errorf("State() after probe = %v, want closed", rs.State())
	}
}

func TestResilientStoreIgnoresDomainErrors(t *testing.T) {
	rs, _ := newResilient(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := rs.BoardInfo(ctx, "missing"); !errors.Is(err, board.ErrBoardNotFound) {
			t.Fatalf("BoardInfo(missing) error = %v", err)
		}
		if _, err := rs.WriteCell(ctx, "b", 99, 99, "#fff", "a"); !errors.Is(err, board.ErrOutOfBounds) {
			t.Fatalf("WriteCell(out of bounds) error = %v", err)
		}
	}
	if rs.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, domain errors must not open the circuit", rs.State())
	}
}

func TestStateHelpers(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		f     float64
		s     string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
	}
	for _, tt := range tests {
		if got := stateToFloat(tt.state); got != tt.f {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.f)
		}
		if got := stateToString(tt.state); got != tt.s {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.s)
		}
	}
}
