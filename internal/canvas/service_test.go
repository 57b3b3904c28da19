// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package canvas

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/cache"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/ratelimit"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeNotifier struct {
	mu      sync.Mutex
	single  []board.CellUpdate
	batches [][]board.CellUpdate
}

func (f *fakeNotifier) NotifyCellChanged(u board.CellUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single = append(f.single, u)
}

func (f *fakeNotifier) NotifyCellsChangedBatch(u []board.CellUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, u)
}

type failingStore struct {
	board.Store
	err error
}

func (f failingStore) WriteCell(context.Context, string, int, int, string, string) (*board.WriteResult, error) {
	return nil, f.err
}

func setup(t *testing.T, paintLimit int) (*Service, *board.MemoryStore, *fakeNotifier) {
	t.Helper()
	store := board.NewMemoryStore(nil)
	if _, err := store.CreateBoard(context.Background(), board.Info{
		ID: "main", Width: 16, Height: 16, Active: true, BasePrice: 10, PriceStep: 5,
	}); err != nil {
		t.Fatal(err)
	}
	limiter := ratelimit.NewWithRules(cache.NewMemory(cache.WithCleanupInterval(0)), map[string]ratelimit.Rule{
		ratelimit.ActionPaint: {Limit: paintLimit, Window: time.Minute},
	}, true)
	notifier := &fakeNotifier{}
	return NewService(store, limiter, notifier), store, notifier
}

func TestPaint(t *testing.T) {
	svc, _, notifier := setup(t, 10)
	ctx := context.Background()

	first, err := svc.Paint(ctx, PaintRequest{BoardID: "main", X: 3, Y: 4, Color: "#ff0000", ActorID: "alice"})
	if err != nil {
		t.Fatalf("Paint() error = %v", err)
	}
	if first.Update.NewPrice != 10 || first.ChangeCount != 1 {
		t.Errorf("first paint = %+v", first)
	}

	second, err := svc.Paint(ctx, PaintRequest{BoardID: "main", X: 3, Y: 4, Color: "#00ff00", ActorID: "bob"})
	if err != nil {
		t.Fatalf("Paint() error = %v", err)
	}
	if second.Update.NewPrice != 15 || second.ChangeCount != 2 || second.Update.ActorID != "bob" {
		t.Errorf("second paint = %+v", second)
	}

	if len(notifier.single) != 2 || notifier.single[1].Color != "#00ff00" {
		t.Errorf("notified = %+v", notifier.single)
	}
	if notifier.single[0].Timestamp.IsZero() {
		t.Error("update should carry the persisted timestamp")
	}
}

func TestPaint_Invalid(t *testing.T) {
	svc, _, notifier := setup(t, 10)

	tests := []struct {
		name string
		req  PaintRequest
	}{
		{"bad color", PaintRequest{BoardID: "main", Color: "red", ActorID: "a"}},
		{"no actor", PaintRequest{BoardID: "main", Color: "#fff"}},
		{"bad board id", PaintRequest{BoardID: "a b", Color: "#fff", ActorID: "a"}},
		{"negative x", PaintRequest{BoardID: "main", X: -1, Color: "#fff", ActorID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Paint(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Paint() error = %v, want ErrInvalidRequest", err)
			}
			var ire *InvalidRequestError
			if !errors.As(err, &ire) || ire.Cause == nil {
				t.Error("error should carry the validation cause")
			}
		})
	}
	if len(notifier.single) != 0 {
		t.Error("invalid paints must not be broadcast")
	}
}

func TestPaint_DomainErrors(t *testing.T) {
	svc, store, _ := setup(t, 10)
	ctx := context.Background()

	_, err := svc.Paint(ctx, PaintRequest{BoardID: "main", X: 16, Y: 0, Color: "#fff", ActorID: "a"})
	if !errors.Is(err, board.ErrOutOfBounds) || !IsClientError(err) {
		t.Errorf("out of bounds error = %v", err)
	}

	_, err = svc.Paint(ctx, PaintRequest{BoardID: "nope", Color: "#fff", ActorID: "a"})
	if !errors.Is(err, board.ErrBoardNotFound) {
		t.Errorf("missing board error = %v", err)
	}

	if err := store.SetActive("main", false); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Paint(ctx, PaintRequest{BoardID: "main", Color: "#fff", ActorID: "a"})
	if !errors.Is(err, board.ErrBoardInactive) {
		t.Errorf("inactive board error = %v", err)
	}
}

func TestPaint_RateLimited(t *testing.T) {
	svc, _, notifier := setup(t, 2)
	ctx := context.Background()
	req := PaintRequest{BoardID: "main", X: 1, Y: 1, Color: "#123", ActorID: "spammer"}

	for i := 0; i < 2; i++ {
		if _, err := svc.Paint(ctx, req); err != nil {
			t.Fatalf("paint %d error = %v", i, err)
		}
	}

	_, err := svc.Paint(ctx, req)
	var rle *RateLimitError
	if !errors.As(err, &rle) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Paint() error = %v, want RateLimitError", err)
	}
	if rle.RetryAfterSeconds() < 1 || rle.RetryAfter > time.Minute {
		t.Errorf("retry after = %v (%ds)", rle.RetryAfter, rle.RetryAfterSeconds())
	}
	if len(notifier.single) != 2 {
		t.Errorf("notified %d, want 2", len(notifier.single))
	}

	// Other actors are unaffected
	req.ActorID = "someone-else"
	if _, err := svc.Paint(ctx, req); err != nil {
		t.Errorf("other actor Paint() error = %v", err)
	}
}

func TestPaint_StoreFailure(t *testing.T) {
	storeErr := errors.New("breaker open")
	notifier := &fakeNotifier{}
	limiter := ratelimit.NewWithRules(cache.NewMemory(cache.WithCleanupInterval(0)), nil, false)
	svc := NewService(failingStore{Store: board.NewMemoryStore(nil), err: storeErr}, limiter, notifier)

	_, err := svc.Paint(context.Background(), PaintRequest{BoardID: "main", Color: "#fff", ActorID: "a"})
	if !errors.Is(err, storeErr) || IsClientError(err) {
		t.Errorf("Paint() error = %v", err)
	}
	if len(notifier.single) != 0 {
		t.Error("failed writes must not be broadcast")
	}
}

func TestPaintBatch(t *testing.T) {
	svc, _, notifier := setup(t, 3)
	ctx := context.Background()

	cells := []BatchCell{
		{X: 0, Y: 0, Color: "#111"},
		{X: 1, Y: 0, Color: "#222"},
		{X: 2, Y: 0, Color: "#333"},
		{X: 3, Y: 0, Color: "#444"},
	}
	results, err := svc.PaintBatch(ctx, "main", "alice", cells)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("PaintBatch() error = %v, want rate limited on the 4th cell", err)
	}
	if len(results) != 3 {
		t.Fatalf("painted %d cells, want 3", len(results))
	}
	if len(notifier.batches) != 1 || len(notifier.batches[0]) != 3 {
		t.Errorf("batches = %+v", notifier.batches)
	}
}

func TestPaintBatch_ValidatesUpFront(t *testing.T) {
	svc, _, notifier := setup(t, 10)

	_, err := svc.PaintBatch(context.Background(), "main", "alice", []BatchCell{
		{X: 0, Y: 0, Color: "#111"},
		{X: 1, Y: 0, Color: "nope"},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("PaintBatch() error = %v", err)
	}
	if len(notifier.batches) != 0 {
		t.Error("nothing should be painted when any cell is invalid")
	}
}
