// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package ratelimit enforces per-actor limits on user actions.

Each action (paint, join, snapshot_request) has a fixed-window rule and an
optional shorter burst rule. Counters live in the Shared Cache under

	ratelimit:{action}:{actor}
	ratelimit:{action}:{actor}:burst

with a TTL equal to their window, so they expire on their own. Counting
uses the store's atomic increment-with-expiry, never application locks, so
increments from different instances for the same key cannot race.

# Decisions

A request is denied when either counter exceeds its limit. The reported
Remaining is the smaller of the two budgets. RetryAfter is the time until
every exceeded counter resets.

# Failure-only counting

Some flows should only consume budget when they fail. CheckLimit with
countFailuresOnly reads the counters without incrementing; the caller then
charges failures with RecordFailure and may clear both counters with
ResetLimit after a fully successful flow.

# Fail open

If the Shared Cache is unreachable the limiter allows the request. This
trades strict enforcement for availability during a cache outage. Every
such decision is logged and counted in ratelimit_fail_open_total so the
outage is visible. A counter that is negative or not an integer is treated
the same way after being logged at error level.
*/
package ratelimit
