// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package middleware provides HTTP middleware components for the application.

Key Components:

  - Request ID: UUID-based request tracking, propagated into the logging context
  - Prometheus Metrics: HTTP request/response instrumentation

Both are written as func(http.HandlerFunc) http.HandlerFunc and adapted to
chi's r.Use() by the api package.

Usage Example - Request ID:

	http.HandleFunc("/api/v1/rooms", middleware.RequestID(handler))

	// Inside the handler
	logging.Ctx(r.Context()).Info().Msg("Listing rooms")

An X-Request-ID sent by an upstream proxy is reused when it is at most 128
bytes; otherwise a new UUID is generated.

Usage Example - Prometheus Metrics:

	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Recorded series:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests

The endpoint label is the chi route pattern, which keeps cardinality bounded
by the number of routes rather than the number of boards.

The WebSocket endpoint is not instrumented here; its connections are tracked
by the websocket package's own metrics.
*/
package middleware
