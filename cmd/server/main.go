// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/tomtom215/pixelboard/internal/api"
	"github.com/tomtom215/pixelboard/internal/broadcast"
	"github.com/tomtom215/pixelboard/internal/cache"
	"github.com/tomtom215/pixelboard/internal/canvas"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/database"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/ratelimit"
	"github.com/tomtom215/pixelboard/internal/resync"
	"github.com/tomtom215/pixelboard/internal/snapshot"
	"github.com/tomtom215/pixelboard/internal/supervisor"
	"github.com/tomtom215/pixelboard/internal/supervisor/services"
	ws "github.com/tomtom215/pixelboard/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.New().String()
	}
	logging.Info().
		Str("instance_id", cfg.Server.InstanceID).
		Str("db_path", cfg.Database.Path).
		Bool("redis", cfg.Redis.Enabled).
		Bool("fanout", cfg.NATS.Enabled).
		Msg("Starting Pixelboard")
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Strs("origins", cfg.Security.CORSOrigins).Msg("CORS allows any origin")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Pixelboard stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires every component, serves until SIGINT or SIGTERM, then shuts down
// in reverse order.
//
//nolint:gocyclo // sequential setup steps
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === BOARD STORE ===
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	if err := database.SeedBoards(ctx, db, cfg.Database); err != nil {
		return err
	}
	store := database.NewResilientStore(db, cfg.Database)
	logging.Info().Msg("Board store initialized")

	// === SHARED CACHE ===
	shared, err := cache.New(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := shared.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing shared cache")
		}
	}()

	// === SYNC CORE ===
	limiter := ratelimit.New(shared, cfg.RateLimit)
	snaps := snapshot.New(store, shared, cfg.Snapshot)
	protocol := resync.New(snaps, cfg.Sync)
	hub := ws.NewHub(store, protocol, cfg.Rooms)

	fan, err := initFanout(cfg, hub, snaps)
	if err != nil {
		return err
	}
	defer fan.Close()

	var broadcastOpts []broadcast.Option
	if fan.relay != nil {
		broadcastOpts = append(broadcastOpts, broadcast.WithFlushObserver(fan.relay))
	}
	broadcaster := broadcast.New(hub, snaps, cfg.Broadcast, broadcastOpts...)
	painter := canvas.NewService(store, limiter, broadcaster)
	dispatcher := ws.NewDispatcher(hub, painter, limiter)

	// === HTTP ===
	handler := api.NewHandler(api.HandlerDeps{
		Config:     cfg,
		Boards:     store,
		Snapshots:  snaps,
		Painter:    painter,
		Hub:        hub,
		Dispatcher: dispatcher,
		Cache:      shared,
		Database:   db,
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(cfg.Security))
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// === SUPERVISOR TREE ===
	treeCfg := supervisor.DefaultTreeConfig()
	if cfg.Server.ShutdownTimeout > 0 {
		treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewRoomHubService(hub))
	if fan.relay != nil {
		tree.AddMessagingService(services.NewFanoutRelayService(fan.relay))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}
	tree.LogUnstopped()

	// Pending batches go out before the relay and cache close
	broadcaster.Close()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return treeErr
	}
	return nil
}
