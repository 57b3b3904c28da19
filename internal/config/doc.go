// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package config provides centralized configuration management for Pixelboard.

Configuration is layered with Koanf v2: struct defaults, then an optional
YAML file (config.yaml, /etc/pixelboard/config.yaml, or CONFIG_PATH), then
environment variables. Only variables listed in the env mapping are read.

# Sections

  - server: HTTP listener and timeouts (HTTP_PORT, HTTP_HOST, ENVIRONMENT)
  - database: DuckDB board store, seeding and circuit breaker (DUCKDB_PATH, SEED_BOARDS)
  - redis: Shared Cache connection (REDIS_ENABLED, REDIS_ADDR)
  - broadcast: coalescing window and batch size (BROADCAST_FLUSH_DELAY, BROADCAST_MAX_BATCH_SIZE)
  - snapshot: board state cache TTL, lock TTL and poll backoff (SNAPSHOT_*)
  - sync: reconnect stale threshold (SYNC_STALE_THRESHOLD)
  - rooms: membership sweep (ROOMS_SWEEP_INTERVAL, ROOMS_IDLE_TIMEOUT)
  - websocket: per-connection transport (WS_*)
  - rate_limit: per-actor rules for paint, join and snapshot_request (RATE_LIMIT_*)
  - nats: cross-instance fan-out (NATS_ENABLED, NATS_URL, NATS_EMBEDDED)
  - security: CORS and per-IP HTTP limits (CORS_ORIGINS, HTTP_RATE_LIMIT_*)
  - logging: zerolog level and format (LOG_LEVEL, LOG_FORMAT, LOG_CALLER)

Durations accept Go syntax ("50ms", "30s", "5m"). Slice values from the
environment are comma separated.

# Example

	# config.yaml
	server:
	  port: 8080
	redis:
	  enabled: true
	  addr: redis:6379
	broadcast:
	  flush_delay: 50ms
	  max_batch_size: 50
	database:
	  seed_boards: ["main:128x128"]

Validate() is called by Load() and rejects out of range values with an
error naming the offending variable.
*/
package config
