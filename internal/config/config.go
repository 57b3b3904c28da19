// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	Sync      SyncConfig      `koanf:"sync"`
	Rooms     RoomsConfig     `koanf:"rooms"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"

	// InstanceID identifies this process in cross-instance fan-out.
	// Generated at startup when empty.
	InstanceID string `koanf:"instance_id"`
}

// DatabaseConfig holds DuckDB settings and circuit breaker tuning for the
// board store.
type DatabaseConfig struct {
	Path      string `koanf:"path"` // ":memory:" or empty for an in-memory database
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default

	// SeedBoards lists boards created at startup when missing,
	// formatted as "id:WIDTHxHEIGHT" (e.g. "main:128x128").
	SeedBoards []string `koanf:"seed_boards"`

	// BasePrice is the price of a cell on its first paint; every later
	// paint adds PriceStep.
	BasePrice int64 `koanf:"base_price"`
	PriceStep int64 `koanf:"price_step"`

	// Circuit breaker around store calls.
	BreakerEnabled     bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"` // half-open probe count
	BreakerInterval    time.Duration `koanf:"breaker_interval"`     // closed-state counter reset
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`      // open to half-open delay
	BreakerFailures    uint32        `koanf:"breaker_failures"`     // consecutive failures to trip
}

// RedisConfig holds Shared Cache connection settings. When Enabled is false
// an in-process cache is used, which only works for a single instance.
type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// BroadcastConfig tunes the pixel batching broadcaster.
type BroadcastConfig struct {
	// FlushDelay is the coalescing window armed by the first pending update.
	FlushDelay time.Duration `koanf:"flush_delay"`
	// MaxBatchSize triggers an immediate flush once a room buffer reaches it.
	MaxBatchSize int `koanf:"max_batch_size"`
}

// SnapshotConfig tunes the board state cache.
type SnapshotConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
	PollAttempts  int           `koanf:"poll_attempts"`
	PollBaseDelay time.Duration `koanf:"poll_base_delay"`
	PollMaxDelay  time.Duration `koanf:"poll_max_delay"`
}

// SyncConfig tunes the reconnection sync protocol.
type SyncConfig struct {
	// StaleThreshold is the gap after which a reconnecting client gets a
	// full snapshot instead of a delta.
	StaleThreshold time.Duration `koanf:"stale_threshold"`
}

// RoomsConfig tunes room membership reconciliation.
type RoomsConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`
	PingPeriod     time.Duration `koanf:"ping_period"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`

	// InboundRate and InboundBurst throttle frames read from one socket
	// before they reach the rate limiter.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// RateLimitRule is a fixed-window limit with an optional shorter burst window.
// A zero BurstLimit disables the burst rule.
type RateLimitRule struct {
	Limit       int           `koanf:"limit"`
	Window      time.Duration `koanf:"window"`
	BurstLimit  int           `koanf:"burst_limit"`
	BurstWindow time.Duration `koanf:"burst_window"`
}

// RateLimitConfig holds per-actor rules for each rate limited action.
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Paint           RateLimitRule `koanf:"paint"`
	Join            RateLimitRule `koanf:"join"`
	SnapshotRequest RateLimitRule `koanf:"snapshot_request"`
}

// Rules returns the configured rules keyed by action name.
func (c RateLimitConfig) Rules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"paint":            c.Paint,
		"join":             c.Join,
		"snapshot_request": c.SnapshotRequest,
	}
}

// NATSConfig holds cross-instance fan-out settings.
type NATSConfig struct {
	// Enabled controls whether flushed batches are relayed between instances.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server (single-node development).
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedHost   string `koanf:"embedded_host"`
	EmbeddedPort   int    `koanf:"embedded_port"`

	// SubjectPrefix is joined with the board id to form the relay subject.
	SubjectPrefix string `koanf:"subject_prefix"`

	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// SecurityConfig holds HTTP-level protection settings.
type SecurityConfig struct {
	CORSOrigins []string `koanf:"cors_origins"`

	// Per-IP request limits for the REST API (httprate).
	HTTPRateLimitReqs     int           `koanf:"http_rate_limit_reqs"`
	HTTPRateLimitWindow   time.Duration `koanf:"http_rate_limit_window"`
	HTTPRateLimitDisabled bool          `koanf:"http_rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from all sources:
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
