// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package main is the entry point for the Pixelboard server.

Pixelboard is the real-time synchronization core of a collaborative pixel
canvas: clients join a board over WebSocket, paint cells, and receive
batched updates from everyone else painting the same board. Several
instances can serve the same boards behind a load balancer, sharing a Redis
cache and relaying flushed batches over NATS.

# Application Architecture

Components are wired once in run() and supervised with Suture v4:

	RootSupervisor ("pixelboard")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── room-hub       idle membership sweep
	│   └── fanout-relay   NATS subscription (NATS_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── http-server    REST, /ws, /metrics

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog with JSON or console output
 3. Board store: DuckDB, seed boards, circuit breaker wrapper
 4. Shared cache: Redis, or in-process memory for single-node setups
 5. Sync core: rate limiter, board state cache, reconnection sync, room hub
 6. Fan-out: embedded or external NATS, watermill publisher and subscriber
 7. Broadcaster and paint service
 8. HTTP: Chi router and middleware
 9. Supervisor tree

# Configuration

Priority: Environment variables > Config file > Defaults

	HTTP_PORT=8080
	DUCKDB_PATH=/data/pixelboard.duckdb
	SEED_BOARDS=main:128x128,small:32x32
	REDIS_ENABLED=true
	REDIS_ADDR=redis:6379
	NATS_ENABLED=true
	NATS_URL=nats://nats:4222
	BROADCAST_FLUSH_DELAY=50ms
	RATE_LIMIT_PAINT_LIMIT=20
	CORS_ORIGINS=https://canvas.example
	LOG_LEVEL=info
	LOG_FORMAT=json

A single development node needs no external services:

	NATS_ENABLED=true NATS_EMBEDDED=true DUCKDB_PATH=:memory: ./pixelboard

# Signal Handling

On SIGINT or SIGTERM the server:

 1. Stops accepting HTTP connections and drains in-flight requests
 2. Closes every WebSocket client through the room hub
 3. Stops the fan-out subscription
 4. Flushes pending broadcast batches
 5. Closes the relay, embedded NATS server, shared cache and database
 6. Reports any services that failed to stop within the shutdown timeout
*/
package main
