// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// testDBSemaphore serializes DuckDB usage across tests; concurrent CGO
// connections from many tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a fresh in-memory database with one 8x8 board "b".
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "256MB",
		BasePrice: 1,
		PriceStep: 1,
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	var db *DB
	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		db = res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timeout creating test database")
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	if _, err := db.CreateBoard(context.Background(), board.Info{ID: "b", Width: 8, Height: 8, Active: true}); err != nil {
		t.Fatalf("Failed to create test board: %v", err)
	}
	return db
}

func TestCreateBoard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := db.CreateBoard(ctx, board.Info{ID: "b", Width: 100, Height: 100, Active: true})
	if err != nil {
		t.Fatalf("CreateBoard(existing) error = %v", err)
	}
	if created {
		t.Error("CreateBoard(existing) reported created")
	}

	info, err := db.BoardInfo(ctx, "b")
	if err != nil {
		t.Fatalf("BoardInfo() error = %v", err)
	}
	if info.Width != 8 || info.Height != 8 || !info.Active {
		t.Errorf("BoardInfo() = %+v", info)
	}
	if info.BasePrice != 1 || info.PriceStep != 1 {
		t.Errorf("prices = %d/%d, want config defaults 1/1", info.BasePrice, info.PriceStep)
	}

	created, err = db.CreateBoard(ctx, board.Info{ID: "pricey", Width: 2, Height: 2, Active: true, BasePrice: 10, PriceStep: 5})
	if err != nil || !created {
		t.Fatalf("CreateBoard(new) = %v, %v", created, err)
	}
	info, _ = db.BoardInfo(ctx, "pricey")
	if info.BasePrice != 10 || info.PriceStep != 5 {
		t.Errorf("explicit prices not stored: %+v", info)
	}
}

func TestBoardInfoNotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.BoardInfo(context.Background(), "missing"); !errors.Is(err, board.ErrBoardNotFound) {
		t.Errorf("BoardInfo(missing) error = %v, want ErrBoardNotFound", err)
	}
	if _, err := db.ReadBoard(context.Background(), "missing"); !errors.Is(err, board.ErrBoardNotFound) {
		t.Errorf("ReadBoard(missing) error = %v, want ErrBoardNotFound", err)
	}
}

func TestWriteCellPricing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		color     string
		wantPrice int64
		wantCount int64
	}{
		{"#ff0000", 1, 1},
		{"#00ff00", 2, 2},
		{"#0000ff", 3, 3},
	}
	for _, tt := range tests {
		res, err := db.WriteCell(ctx, "b", 1, 1, tt.color, "alice")
		if err != nil {
			t.Fatalf("WriteCell(%s) error = %v", tt.color, err)
		}
		if res.NewPrice != tt.wantPrice || res.ChangeCount != tt.wantCount {
			t.Errorf("WriteCell(%s) = %+v, want price %d count %d", tt.color, res, tt.wantPrice, tt.wantCount)
		}
	}

	snap, err := db.ReadBoard(ctx, "b")
	if err != nil {
		t.Fatalf("ReadBoard() error = %v", err)
	}
	cell, ok := snap.CellAt(1, 1)
	if !ok {
		t.Fatal("cell (1,1) missing from snapshot")
	}
	if cell.Color != "#0000ff" || cell.Price != 3 || cell.ChangeCount != 3 {
		t.Errorf("cell = %+v", cell)
	}
}

func TestWriteCellErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		boardID string
		x, y    int
		wantErr error
	}{
		{"missing board", "missing", 0, 0, board.ErrBoardNotFound},
		{"x too large", "b", 8, 0, board.ErrOutOfBounds},
		{"negative y", "b", 0, -1, board.ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.WriteCell(ctx, tt.boardID, tt.x, tt.y, "#000000", "alice")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("WriteCell() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := db.SetActive(ctx, "b", false); err != nil {
		t.Fatal(err)
	}
	if _, err := db.WriteCell(ctx, "b", 0, 0, "#000000", "alice"); !errors.Is(err, board.ErrBoardInactive) {
		t.Errorf("WriteCell(inactive) error = %v, want ErrBoardInactive", err)
	}
	if err := db.SetActive(ctx, "missing", true); !errors.Is(err, board.ErrBoardNotFound) {
		t.Errorf("SetActive(missing) error = %v", err)
	}
}

func TestReadBoardScenario(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, _ = db.WriteCell(ctx, "b", 1, 1, "red", "alice")
	_, _ = db.WriteCell(ctx, "b", 2, 2, "blue", "bob")

	snap, err := db.ReadBoard(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Width != 8 || snap.Height != 8 || len(snap.Cells) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if c, _ := snap.CellAt(1, 1); c.Color != "red" {
		t.Errorf("(1,1) = %q, want red", c.Color)
	}
	if c, _ := snap.CellAt(2, 2); c.Color != "blue" {
		t.Errorf("(2,2) = %q, want blue", c.Color)
	}
}

func TestReadCellsChangedSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	db.SetClockForTesting(func() time.Time { return now })

	_, _ = db.WriteCell(ctx, "b", 0, 0, "#111111", "a")
	now = base.Add(2 * time.Second)
	_, _ = db.WriteCell(ctx, "b", 3, 3, "#222222", "b")
	now = base.Add(4 * time.Second)
	_, _ = db.WriteCell(ctx, "b", 1, 0, "#333333", "")

	deltas, err := db.ReadCellsChangedSince(ctx, "b", base.Add(time.Second))
	if err != nil {
		t.Fatalf("ReadCellsChangedSince() error = %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("len(deltas) = %d, want 2", len(deltas))
	}
	if deltas[0].Color != "#222222" || deltas[1].Color != "#333333" {
		t.Errorf("deltas not oldest first: %+v", deltas)
	}
	if deltas[0].UpdatedBy != "b" || deltas[1].UpdatedBy != "" {
		t.Errorf("UpdatedBy = %q, %q", deltas[0].UpdatedBy, deltas[1].UpdatedBy)
	}
	if !deltas[0].UpdatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("UpdatedAt = %v", deltas[0].UpdatedAt)
	}

	// Strictly after: the exact timestamp of the last write is excluded
	deltas, _ = db.ReadCellsChangedSince(ctx, "b", base.Add(4*time.Second))
	if len(deltas) != 0 {
		t.Errorf("len(deltas) at last write = %d, want 0", len(deltas))
	}

	if _, err := db.ReadCellsChangedSince(ctx, "missing", base); !errors.Is(err, board.ErrBoardNotFound) {
		t.Errorf("missing board error = %v", err)
	}
}

func TestConcurrentWritesSameCell(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Warm the row so writers race on UPDATE, which the retry loop absorbs
	if _, err := db.WriteCell(ctx, "b", 5, 5, "#000000", "seed"); err != nil {
		t.Fatal(err)
	}

	const writers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.WriteCell(ctx, "b", 5, 5, "#ffffff", "racer"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	snap, _ := db.ReadBoard(ctx, "b")
	cell, _ := snap.CellAt(5, 5)
	if cell.ChangeCount != int64(1+succeeded) {
		t.Errorf("ChangeCount = %d, want %d (no lost updates)", cell.ChangeCount, 1+succeeded)
	}
	if succeeded == 0 {
		t.Error("no concurrent writer succeeded")
	}
}

func TestSeedBoards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cfg := config.DatabaseConfig{SeedBoards: []string{"main:16x9", "b:99x99"}, BasePrice: 3, PriceStep: 2}
	if err := SeedBoards(ctx, db, cfg); err != nil {
		t.Fatalf("SeedBoards() error = %v", err)
	}

	info, err := db.BoardInfo(ctx, "main")
	if err != nil {
		t.Fatalf("seeded board missing: %v", err)
	}
	if info.Width != 16 || info.Height != 9 || info.BasePrice != 3 || info.PriceStep != 2 {
		t.Errorf("seeded board = %+v", info)
	}

	// Existing boards are left alone
	existing, _ := db.BoardInfo(ctx, "b")
	if existing.Width != 8 {
		t.Errorf("existing board overwritten: %+v", existing)
	}

	if err := SeedBoards(ctx, db, config.DatabaseConfig{SeedBoards: []string{"bad"}}); err == nil {
		t.Error("SeedBoards() with malformed seed should fail")
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errors.New("Conflict on update!"), true},
		{errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if !isWriteConflict(errors.New("Constraint Error: Duplicate key \"board_id: b\"")) {
		t.Error("duplicate key should be treated as a write conflict")
	}
}

func TestConnectionString(t *testing.T) {
	got := connectionString("/data/p.duckdb", &config.DatabaseConfig{Threads: 4, MaxMemory: "1GB"})
	want := "/data/p.duckdb?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false&threads=4&max_memory=1GB"
	if got != want {
		t.Errorf("connectionString() = %q, want %q", got, want)
	}
}
