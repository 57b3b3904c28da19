// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pixelboard/config.yaml",
	"/etc/pixelboard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfig returns the built-in defaults without reading files or
// the environment.
func DefaultConfig() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
			InstanceID:      "",
		},
		Database: DatabaseConfig{
			Path:               "/data/pixelboard.duckdb",
			MaxMemory:          "1GB",
			Threads:            0,
			SeedBoards:         []string{},
			BasePrice:          1,
			PriceStep:          1,
			BreakerEnabled:     true,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
			BreakerFailures:    5,
		},
		Redis: RedisConfig{
			Enabled:      false, // in-process cache by default (single instance)
			Addr:         "127.0.0.1:6379",
			Password:     "",
			DB:           0,
			PoolSize:     20,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Broadcast: BroadcastConfig{
			FlushDelay:   50 * time.Millisecond,
			MaxBatchSize: 50,
		},
		Snapshot: SnapshotConfig{
			TTL:           30 * time.Second,
			LockTTL:       30 * time.Second,
			PollAttempts:  8,
			PollBaseDelay: 25 * time.Millisecond,
			PollMaxDelay:  500 * time.Millisecond,
		},
		Sync: SyncConfig{
			StaleThreshold: 30 * time.Second,
		},
		Rooms: RoomsConfig{
			SweepInterval: 5 * time.Minute,
			IdleTimeout:   10 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     54 * time.Second, // must be less than PongWait
			MaxMessageSize: 64 * 1024,
			SendBuffer:     256,
			InboundRate:    50,
			InboundBurst:   100,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Paint: RateLimitRule{
				Limit:       60,
				Window:      time.Minute,
				BurstLimit:  10,
				BurstWindow: 5 * time.Second,
			},
			Join: RateLimitRule{
				Limit:  30,
				Window: time.Minute,
			},
			SnapshotRequest: RateLimitRule{
				Limit:       20,
				Window:      time.Minute,
				BurstLimit:  3,
				BurstWindow: 10 * time.Second,
			},
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			EmbeddedHost:   "127.0.0.1",
			EmbeddedPort:   4222,
			SubjectPrefix:  "pixelboard.board",
			MaxReconnects:  -1, // reconnect forever
			ReconnectWait:  2 * time.Second,
			PublishTimeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:           []string{"*"},
			HTTPRateLimitReqs:     100,
			HTTPRateLimitWindow:   time.Minute,
			HTTPRateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// Precedence is ENV > File > Defaults. The result is validated before it
// is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"database.seed_boards",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",
	"instance_id":           "server.instance_id",

	// Database
	"duckdb_path":                "database.path",
	"duckdb_max_memory":          "database.max_memory",
	"duckdb_threads":             "database.threads",
	"seed_boards":                "database.seed_boards",
	"cell_base_price":            "database.base_price",
	"cell_price_step":            "database.price_step",
	"store_breaker_enabled":      "database.breaker_enabled",
	"store_breaker_max_requests": "database.breaker_max_requests",
	"store_breaker_interval":     "database.breaker_interval",
	"store_breaker_timeout":      "database.breaker_timeout",
	"store_breaker_failures":     "database.breaker_failures",

	// Redis
	"redis_enabled":        "redis.enabled",
	"redis_addr":           "redis.addr",
	"redis_password":       "redis.password",
	"redis_db":             "redis.db",
	"redis_pool_size":      "redis.pool_size",
	"redis_min_idle_conns": "redis.min_idle_conns",
	"redis_max_retries":    "redis.max_retries",
	"redis_dial_timeout":   "redis.dial_timeout",
	"redis_read_timeout":   "redis.read_timeout",
	"redis_write_timeout":  "redis.write_timeout",

	// Broadcaster
	"broadcast_flush_delay":    "broadcast.flush_delay",
	"broadcast_max_batch_size": "broadcast.max_batch_size",

	// Board state cache
	"snapshot_ttl":             "snapshot.ttl",
	"snapshot_lock_ttl":        "snapshot.lock_ttl",
	"snapshot_poll_attempts":   "snapshot.poll_attempts",
	"snapshot_poll_base_delay": "snapshot.poll_base_delay",
	"snapshot_poll_max_delay":  "snapshot.poll_max_delay",

	// Reconnection sync
	"sync_stale_threshold": "sync.stale_threshold",

	// Rooms
	"rooms_sweep_interval": "rooms.sweep_interval",
	"rooms_idle_timeout":   "rooms.idle_timeout",

	// WebSocket transport
	"ws_write_wait":       "websocket.write_wait",
	"ws_pong_wait":        "websocket.pong_wait",
	"ws_ping_period":      "websocket.ping_period",
	"ws_max_message_size": "websocket.max_message_size",
	"ws_send_buffer":      "websocket.send_buffer",
	"ws_inbound_rate":     "websocket.inbound_rate",
	"ws_inbound_burst":    "websocket.inbound_burst",

	// Per-actor rate limits
	"rate_limit_enabled":               "rate_limit.enabled",
	"rate_limit_paint_limit":           "rate_limit.paint.limit",
	"rate_limit_paint_window":          "rate_limit.paint.window",
	"rate_limit_paint_burst_limit":     "rate_limit.paint.burst_limit",
	"rate_limit_paint_burst_window":    "rate_limit.paint.burst_window",
	"rate_limit_join_limit":            "rate_limit.join.limit",
	"rate_limit_join_window":           "rate_limit.join.window",
	"rate_limit_join_burst_limit":      "rate_limit.join.burst_limit",
	"rate_limit_join_burst_window":     "rate_limit.join.burst_window",
	"rate_limit_snapshot_limit":        "rate_limit.snapshot_request.limit",
	"rate_limit_snapshot_window":       "rate_limit.snapshot_request.window",
	"rate_limit_snapshot_burst_limit":  "rate_limit.snapshot_request.burst_limit",
	"rate_limit_snapshot_burst_window": "rate_limit.snapshot_request.burst_window",

	// NATS fan-out
	"nats_enabled":         "nats.enabled",
	"nats_url":             "nats.url",
	"nats_embedded":        "nats.embedded_server",
	"nats_embedded_host":   "nats.embedded_host",
	"nats_embedded_port":   "nats.embedded_port",
	"nats_subject_prefix":  "nats.subject_prefix",
	"nats_max_reconnects":  "nats.max_reconnects",
	"nats_reconnect_wait":  "nats.reconnect_wait",
	"nats_publish_timeout": "nats.publish_timeout",

	// Security
	"cors_origins":             "security.cors_origins",
	"http_rate_limit_requests": "security.http_rate_limit_reqs",
	"http_rate_limit_window":   "security.http_rate_limit_window",
	"disable_http_rate_limit":  "security.http_rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - REDIS_ADDR -> redis.addr
//   - BROADCAST_FLUSH_DELAY -> broadcast.flush_delay
//   - RATE_LIMIT_PAINT_LIMIT -> rate_limit.paint.limit
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
