// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tomtom215/pixelboard/internal/cache"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// Actions with configured rules.
const (
	ActionPaint           = "paint"
	ActionJoin            = "join"
	ActionSnapshotRequest = "snapshot_request"
)

// errInvariant marks counter states that should be impossible.
var errInvariant = errors.New("rate limit counter invariant violated")

// Rule is a fixed window with an optional burst window.
// BurstLimit zero disables the burst check.
type Rule struct {
	Limit       int
	Window      time.Duration
	BurstLimit  int
	BurstWindow time.Duration
}

func (r Rule) hasBurst() bool {
	return r.BurstLimit > 0 && r.BurstWindow > 0
}

// Result is the outcome of a check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration

	// FailedOpen is set when the decision was made without the Shared Cache.
	FailedOpen bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 when denied.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter checks per-actor rate limits against the Shared Cache.
type Limiter struct {
	store   cache.Store
	rules   map[string]Rule
	enabled bool
}

// New creates a limiter from configuration.
func New(store cache.Store, cfg config.RateLimitConfig) *Limiter {
	rules := make(map[string]Rule)
	for action, r := range cfg.Rules() {
		rules[action] = Rule{
			Limit:       r.Limit,
			Window:      r.Window,
			BurstLimit:  r.BurstLimit,
			BurstWindow: r.BurstWindow,
		}
	}
	return NewWithRules(store, rules, cfg.Enabled)
}

// NewWithRules creates a limiter with explicit rules.
func NewWithRules(store cache.Store, rules map[string]Rule, enabled bool) *Limiter {
	return &Limiter{store: store, rules: rules, enabled: enabled}
}

// Rule returns the rule for action.
func (l *Limiter) Rule(action string) (Rule, bool) {
	r, ok := l.rules[action]
	return r, ok
}

func windowKey(action, actorID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, actorID)
}

func burstKey(action, actorID string) string {
	return windowKey(action, actorID) + ":burst"
}

// CheckLimit charges one request to actorID for action and reports whether
// it is allowed. With countFailuresOnly the counters are read but not
// incremented; use RecordFailure to charge a failed attempt.
func (l *Limiter) CheckLimit(ctx context.Context, actorID, action string, countFailuresOnly bool) Result {
	rule, ok := l.rules[action]
	if !l.enabled || !ok {
		return Result{Allowed: true, Remaining: math.MaxInt32}
	}

	var (
		window, burst int64
		err           error
	)
	if countFailuresOnly {
		window, burst, err = l.peek(ctx, actorID, action, rule)
	} else {
		window, burst, err = l.increment(ctx, actorID, action, rule)
	}
	if err != nil {
		return l.failOpen(actorID, action, rule, err)
	}

	windowExceeded := window > int64(rule.Limit)
	burstExceeded := rule.hasBurst() && burst > int64(rule.BurstLimit)
	remaining := rule.Limit - int(window)
	// Read-only checks ask whether one more failure fits
	if countFailuresOnly {
		windowExceeded = window >= int64(rule.Limit)
		burstExceeded = rule.hasBurst() && burst >= int64(rule.BurstLimit)
	}
	if rule.hasBurst() {
		remaining = min(remaining, rule.BurstLimit-int(burst))
	}

	res := Result{
		Allowed:   !windowExceeded && !burstExceeded,
		Remaining: max(remaining, 0),
	}
	if !res.Allowed {
		res.RetryAfter = l.retryAfter(ctx, actorID, action, rule, windowExceeded, burstExceeded)
		logging.Debug().
			Str("actor_id", actorID).
			Str("action", action).
			Int64("window_count", window).
			Int64("burst_count", burst).
			Dur("retry_after", res.RetryAfter).
			Msg("Rate limit exceeded")
	}

	metrics.RecordRateLimitDecision(action, res.Allowed)
	return res
}

// increment bumps the window counter and, when configured, the burst counter.
func (l *Limiter) increment(ctx context.Context, actorID, action string, rule Rule) (window, burst int64, err error) {
	window, err = l.store.IncrWithTTL(ctx, windowKey(action, actorID), rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window < 1 {
		return 0, 0, fmt.Errorf("%w: window counter %d after increment", errInvariant, window)
	}

	if rule.hasBurst() {
		burst, err = l.store.IncrWithTTL(ctx, burstKey(action, actorID), rule.BurstWindow)
		if err != nil {
			return 0, 0, err
		}
		if burst < 1 {
			return 0, 0, fmt.Errorf("%w: burst counter %d after increment", errInvariant, burst)
		}
	}
	return window, burst, nil
}

// peek reads both counters without modifying them.
func (l *Limiter) peek(ctx context.Context, actorID, action string, rule Rule) (window, burst int64, err error) {
	window, err = l.readCounter(ctx, windowKey(action, actorID))
	if err != nil {
		return 0, 0, err
	}
	if rule.hasBurst() {
		burst, err = l.readCounter(ctx, burstKey(action, actorID))
		if err != nil {
			return 0, 0, err
		}
	}
	return window, burst, nil
}

func (l *Limiter) readCounter(ctx context.Context, key string) (int64, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q", errInvariant, key, raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s is negative (%d)", errInvariant, key, n)
	}
	return n, nil
}

// retryAfter is the time until every exceeded counter has reset.
func (l *Limiter) retryAfter(ctx context.Context, actorID, action string, rule Rule, windowExceeded, burstExceeded bool) time.Duration {
	var wait time.Duration
	if windowExceeded {
		wait = max(wait, l.ttlOr(ctx, windowKey(action, actorID), rule.Window))
	}
	if burstExceeded {
		wait = max(wait, l.ttlOr(ctx, burstKey(action, actorID), rule.BurstWindow))
	}
	return wait
}

func (l *Limiter) ttlOr(ctx context.Context, key string, fallback time.Duration) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return fallback
	}
	return ttl
}

func (l *Limiter) failOpen(actorID, action string, rule Rule, err error) Result {
	if errors.Is(err, errInvariant) || errors.Is(err, cache.ErrNotInteger) {
		logging.Error().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Msg("Rate limit counter is corrupt, allowing request")
	} else {
		logging.Warn().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Msg("Shared cache unavailable, rate limiter failing open")
	}
	metrics.RecordRateLimitFailOpen(action)
	return Result{Allowed: true, Remaining: rule.Limit, FailedOpen: true}
}

// RecordFailure charges one failed attempt for action.
func (l *Limiter) RecordFailure(ctx context.Context, actorID, action string) {
	rule, ok := l.rules[action]
	if !l.enabled || !ok {
		return
	}
	if _, _, err := l.increment(ctx, actorID, action, rule); err != nil {
		logging.Warn().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Msg("Failed to record rate limit failure")
	}
}

// ResetLimit clears both counters for actorID and action.
func (l *Limiter) ResetLimit(ctx context.Context, actorID, action string) error {
	if err := l.store.Delete(ctx, windowKey(action, actorID), burstKey(action, actorID)); err != nil {
		return fmt.Errorf("reset rate limit %s/%s: %w", action, actorID, err)
	}
	return nil
}
