// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/broadcast"
	"github.com/tomtom215/pixelboard/internal/cache"
	"github.com/tomtom215/pixelboard/internal/canvas"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/ratelimit"
	"github.com/tomtom215/pixelboard/internal/resync"
	"github.com/tomtom215/pixelboard/internal/snapshot"
	ws "github.com/tomtom215/pixelboard/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testOrigin = "http://canvas.test"

type testStack struct {
	server      *httptest.Server
	store       *board.MemoryStore
	shared      *cache.Faulty
	hub         *ws.Hub
	broadcaster *broadcast.Broadcaster
}

// newTestStack serves the full router over in-memory backends. A paintLimit
// of zero leaves paints unlimited.
func newTestStack(t *testing.T, paintLimit int) *testStack {
	t.Helper()

	store := board.NewMemoryStore(nil)
	for _, info := range []board.Info{
		{ID: "main", Width: 16, Height: 16, Active: true, BasePrice: 10, PriceStep: 5},
		{ID: "archived", Width: 4, Height: 4, Active: true, BasePrice: 1, PriceStep: 1},
	} {
		if _, err := store.CreateBoard(context.Background(), info); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SetActive("archived", false); err != nil {
		t.Fatal(err)
	}

	shared := cache.NewFaulty(cache.NewMemory(cache.WithCleanupInterval(0)))
	snaps := snapshot.New(store, shared, config.SnapshotConfig{
		TTL: time.Minute, LockTTL: time.Second, PollAttempts: 5, PollBaseDelay: time.Millisecond, PollMaxDelay: 5 * time.Millisecond,
	})
	proto := resync.New(snaps, config.SyncConfig{StaleThreshold: 30 * time.Second})
	hub := ws.NewHub(store, proto, config.RoomsConfig{SweepInterval: time.Minute})
	b := broadcast.New(hub, snaps, config.BroadcastConfig{FlushDelay: 10 * time.Millisecond, MaxBatchSize: 50})
	t.Cleanup(b.Close)

	rules := map[string]ratelimit.Rule{}
	if paintLimit > 0 {
		rules[ratelimit.ActionPaint] = ratelimit.Rule{Limit: paintLimit, Window: time.Minute}
	}
	limiter := ratelimit.NewWithRules(shared, rules, true)
	painter := canvas.NewService(store, limiter, b)

	cfg := config.DefaultConfig()
	cfg.Security.CORSOrigins = []string{testOrigin}
	cfg.Security.HTTPRateLimitDisabled = true
	cfg.WebSocket = config.WebSocketConfig{
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		PingPeriod:     4 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     16,
		InboundRate:    1000,
		InboundBurst:   100,
	}

	handler := NewHandler(HandlerDeps{
		Config:     cfg,
		Boards:     store,
		Snapshots:  snaps,
		Painter:    painter,
		Hub:        hub,
		Dispatcher: ws.NewDispatcher(hub, painter, limiter),
		Cache:      shared,
	})
	srv := httptest.NewServer(NewRouter(handler, NewChiMiddlewareFromSecurity(cfg.Security)).SetupChi())
	t.Cleanup(srv.Close)

	return &testStack{server: srv, store: store, shared: shared, hub: hub, broadcaster: b}
}

// envelope is APIResponse with a raw payload for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (s *testStack) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("%s %s: response is not an envelope: %s", method, path, data)
		}
	}
	return resp, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func actor(id string) map[string]string {
	return map[string]string{ActorIDHeader: id}
}
