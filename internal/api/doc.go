// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package api provides the HTTP surface of a Pixelboard instance.

Routes are built with Chi (see Router.SetupChi):

	GET  /ws                              WebSocket upgrade (JOIN, PAINT, RESYNC, PING)
	GET  /api/v1/health/live              liveness probe
	GET  /api/v1/health/ready             readiness probe (shared cache, board store)
	GET  /api/v1/boards/{id}/stats        member count and dimensions
	GET  /api/v1/boards/{id}/snapshot     full board state, gzip when accepted
	GET  /api/v1/boards/{id}/changes      cells changed after ?since=RFC3339
	POST /api/v1/boards/{id}/pixels       paint one cell or a batch
	GET  /api/v1/rooms                    rooms with at least one member
	GET  /metrics                         Prometheus exposition

# Response Envelope

Every JSON response uses APIResponse:

	{"success": true, "data": {...}, "meta": {"requestId": "...", "timestamp": "...", "durationMs": 1}}
	{"success": false, "error": {"code": "RATE_LIMITED", "message": "...", "retryAfterSeconds": 3}}

Rate limited responses also carry a Retry-After header.

# Actors

Paints are attributed to the X-Actor-ID header. The WebSocket upgrade also
accepts ?actorId= since browsers cannot set headers on the handshake.

# Middleware

Global: request id, real IP, panic recovery, CORS. The /api/v1 group adds a
per-IP limiter (go-chi/httprate), security headers and Prometheus request
metrics. /ws is excluded from both the limiter and request metrics.
*/
package api
