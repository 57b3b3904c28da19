// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRedis(); err != nil {
		return err
	}

	if err := c.validateBroadcast(); err != nil {
		return err
	}

	if err := c.validateSnapshot(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateRooms(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateRateLimit(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// IsProduction returns true when running with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// seedBoardPattern matches "id:WIDTHxHEIGHT".
var seedBoardPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}:[1-9][0-9]{0,4}x[1-9][0-9]{0,4}$`)

// validateDatabase validates the board store configuration
func (c *Config) validateDatabase() error {
	for _, seed := range c.Database.SeedBoards {
		if !seedBoardPattern.MatchString(seed) {
			return fmt.Errorf("SEED_BOARDS entry %q must look like id:WIDTHxHEIGHT", seed)
		}
	}
	if c.Database.BasePrice < 0 {
		return fmt.Errorf("CELL_BASE_PRICE must not be negative")
	}
	if c.Database.PriceStep < 0 {
		return fmt.Errorf("CELL_PRICE_STEP must not be negative")
	}
	if c.Database.BreakerEnabled {
		if c.Database.BreakerFailures == 0 {
			return fmt.Errorf("STORE_BREAKER_FAILURES must be at least 1")
		}
		if c.Database.BreakerTimeout <= 0 {
			return fmt.Errorf("STORE_BREAKER_TIMEOUT must be positive")
		}
	}
	return nil
}

// validateRedis validates the shared cache configuration (only if enabled)
func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}
	if c.Redis.PoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be at least 1")
	}
	return nil
}

// Broadcaster bounds
const (
	minFlushDelay   = time.Millisecond
	maxFlushDelay   = 5 * time.Second
	maxMaxBatchSize = 10000
)

// validateBroadcast validates broadcaster tuning
func (c *Config) validateBroadcast() error {
	if c.Broadcast.FlushDelay < minFlushDelay || c.Broadcast.FlushDelay > maxFlushDelay {
		return fmt.Errorf("BROADCAST_FLUSH_DELAY must be between %v and %v", minFlushDelay, maxFlushDelay)
	}
	if c.Broadcast.MaxBatchSize < 1 || c.Broadcast.MaxBatchSize > maxMaxBatchSize {
		return fmt.Errorf("BROADCAST_MAX_BATCH_SIZE must be between 1 and %d", maxMaxBatchSize)
	}
	return nil
}

// validateSnapshot validates board state cache tuning
func (c *Config) validateSnapshot() error {
	if c.Snapshot.TTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be positive")
	}
	if c.Snapshot.LockTTL <= 0 {
		return fmt.Errorf("SNAPSHOT_LOCK_TTL must be positive")
	}
	if c.Snapshot.PollAttempts < 0 {
		return fmt.Errorf("SNAPSHOT_POLL_ATTEMPTS must not be negative")
	}
	if c.Snapshot.PollBaseDelay <= 0 {
		return fmt.Errorf("SNAPSHOT_POLL_BASE_DELAY must be positive")
	}
	if c.Snapshot.PollMaxDelay < c.Snapshot.PollBaseDelay {
		return fmt.Errorf("SNAPSHOT_POLL_MAX_DELAY must be at least SNAPSHOT_POLL_BASE_DELAY")
	}
	return nil
}

// validateSync validates reconnection sync tuning
func (c *Config) validateSync() error {
	if c.Sync.StaleThreshold <= 0 {
		return fmt.Errorf("SYNC_STALE_THRESHOLD must be positive")
	}
	return nil
}

// validateRooms validates room reconciliation settings
func (c *Config) validateRooms() error {
	if c.Rooms.SweepInterval <= 0 {
		return fmt.Errorf("ROOMS_SWEEP_INTERVAL must be positive")
	}
	if c.Rooms.IdleTimeout < 0 {
		return fmt.Errorf("ROOMS_IDLE_TIMEOUT must not be negative")
	}
	return nil
}

// validateWebSocket validates transport settings
func (c *Config) validateWebSocket() error {
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("WS_PING_PERIOD must be less than WS_PONG_WAIT")
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if c.WebSocket.MaxMessageSize < 512 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 512 bytes")
	}
	if c.WebSocket.InboundRate <= 0 || c.WebSocket.InboundBurst < 1 {
		return fmt.Errorf("WS_INBOUND_RATE and WS_INBOUND_BURST must be positive")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = 24 * time.Hour
)

// validateRateLimit validates per-actor limiter rules
func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	for action, rule := range c.RateLimit.Rules() {
		if err := validateRule(action, rule); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(action string, rule RateLimitRule) error {
	if rule.Limit < minRateLimitRequests || rule.Limit > maxRateLimitRequests {
		return fmt.Errorf("rate_limit.%s.limit must be between %d and %d", action, minRateLimitRequests, maxRateLimitRequests)
	}
	if rule.Window < minRateLimitWindow || rule.Window > maxRateLimitWindow {
		return fmt.Errorf("rate_limit.%s.window must be between %v and %v", action, minRateLimitWindow, maxRateLimitWindow)
	}
	if rule.BurstLimit == 0 {
		return nil
	}
	if rule.BurstLimit < 0 || rule.BurstLimit > rule.Limit {
		return fmt.Errorf("rate_limit.%s.burst_limit must be between 1 and limit", action)
	}
	if rule.BurstWindow < minRateLimitWindow || rule.BurstWindow >= rule.Window {
		return fmt.Errorf("rate_limit.%s.burst_window must be at least %v and shorter than window", action, minRateLimitWindow)
	}
	return nil
}

// validateNATS validates fan-out configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS_ENABLED=true")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.EmbeddedPort < 1 || c.NATS.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
		}
		return nil
	}
	u, err := url.Parse(c.NATS.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("NATS_URL is invalid: %q", c.NATS.URL)
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return fmt.Errorf("NATS_URL must use nats:// or tls:// scheme")
	}
	return nil
}

// validateSecurity validates HTTP protection settings
func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin (use * to allow any)")
	}
	if c.Security.HTTPRateLimitDisabled {
		return nil
	}
	if c.Security.HTTPRateLimitReqs < minRateLimitRequests || c.Security.HTTPRateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("HTTP_RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.HTTPRateLimitWindow < minRateLimitWindow || c.Security.HTTPRateLimitWindow > time.Hour {
		return fmt.Errorf("HTTP_RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, time.Hour)
	}
	return nil
}

// ShouldWarnAboutCORS returns true if wildcard CORS is used in production.
func (c *Config) ShouldWarnAboutCORS() bool {
	if !c.IsProduction() {
		return false
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
