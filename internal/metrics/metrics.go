// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_store_operation_duration_seconds",
			Help:    "Duration of board store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // read_board, read_changes, write_cell, board_info
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_store_operation_errors_total",
			Help: "Total number of board store operation errors",
		},
		[]string{"operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages queued for delivery",
		},
		[]string{"type"},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of inbound WebSocket frames",
		},
		[]string{"type"},
	)

	WSSendDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_send_dropped_total",
			Help: "Messages dropped because a connection's send buffer was full",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Room Metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Current number of rooms with at least one member",
		},
	)

	RoomMembershipChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_membership_changes_total",
			Help: "Room joins and leaves",
		},
		[]string{"change"}, // join, leave, join_rejected, swept
	)

	// Broadcaster Metrics
	BroadcastFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_flushes_total",
			Help: "Total number of broadcaster flushes by trigger",
		},
		[]string{"trigger"}, // timer, size, close, manual
	)

	BroadcastBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_batch_size",
			Help:    "Distinct cells per emitted broadcast",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
		},
	)

	BroadcastCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_coalesced_total",
			Help: "Updates overwritten in a pending buffer before being emitted",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Flushed batches dropped because the room emitter failed",
		},
	)

	// Snapshot Cache Metrics
	SnapshotRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_requests_total",
			Help: "Board snapshot requests by outcome",
		},
		[]string{"outcome"}, // hit, populated, waited, fallback, not_found
	)

	SnapshotStoreReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_store_reads_total",
			Help: "Full board reads issued against the store by the snapshot cache",
		},
	)

	SnapshotInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_invalidations_total",
			Help: "Snapshot cache invalidations",
		},
	)

	SnapshotCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_errors_total",
			Help: "Shared cache errors seen by the snapshot cache",
		},
		[]string{"operation"},
	)

	// Rate Limiter Metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Per-actor rate limit decisions",
		},
		[]string{"action", "decision"}, // decision: allowed, denied
	)

	RateLimitFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_fail_open_total",
			Help: "Requests allowed because the shared cache was unavailable",
		},
		[]string{"action"},
	)

	// Reconnection Sync Metrics
	SyncPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_payloads_total",
			Help: "Initial payloads sent to joining clients",
		},
		[]string{"kind", "reason"},
	)

	// Distributed Lock Metrics
	LockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lock_operations_total",
			Help: "Distributed lock acquire and release outcomes",
		},
		[]string{"operation", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Fan-out Metrics
	FanoutPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_messages_published_total",
			Help: "Flushed batches published to other instances",
		},
		[]string{"result"},
	)

	FanoutReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_messages_received_total",
			Help: "Batches received from the fan-out bus",
		},
		[]string{"result"}, // delivered, own, invalid
	)
)

// RecordStoreOperation records a board store call.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordWSConnection adjusts the live connection gauge.
func RecordWSConnection(opened bool) {
	if opened {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSSent counts an outbound message of the given type.
func RecordWSSent(msgType string) {
	WSMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordWSReceived counts an inbound frame of the given type.
func RecordWSReceived(msgType string) {
	WSMessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordWSDropped counts a message dropped for a slow consumer.
func RecordWSDropped() {
	WSSendDropped.Inc()
}

// RecordWSError counts a transport error.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordRoomChange counts a membership change and updates the room gauge.
func RecordRoomChange(change string, activeRooms int) {
	RoomMembershipChanges.WithLabelValues(change).Inc()
	RoomsActive.Set(float64(activeRooms))
}

// RecordBroadcastFlush records one emitted broadcast.
func RecordBroadcastFlush(trigger string, batchSize int) {
	BroadcastFlushes.WithLabelValues(trigger).Inc()
	BroadcastBatchSize.Observe(float64(batchSize))
}

// RecordBroadcastCoalesced counts an overwritten pending update.
func RecordBroadcastCoalesced() {
	BroadcastCoalesced.Inc()
}

// RecordBroadcastDropped counts a batch that could not be emitted.
func RecordBroadcastDropped() {
	BroadcastDropped.Inc()
}

// RecordSnapshotRequest records the outcome of a GetSnapshot call.
func RecordSnapshotRequest(outcome string) {
	SnapshotRequests.WithLabelValues(outcome).Inc()
}

// RecordSnapshotStoreRead counts a full board read by the snapshot cache.
func RecordSnapshotStoreRead() {
	SnapshotStoreReads.Inc()
}

// RecordSnapshotInvalidation counts an invalidation.
func RecordSnapshotInvalidation() {
	SnapshotInvalidations.Inc()
}

// RecordSnapshotCacheError counts a shared cache failure.
func RecordSnapshotCacheError(operation string) {
	SnapshotCacheErrors.WithLabelValues(operation).Inc()
}

// RecordRateLimitDecision records an allow or deny decision.
func RecordRateLimitDecision(action string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	RateLimitDecisions.WithLabelValues(action, decision).Inc()
}

// RecordRateLimitFailOpen counts a request allowed during a cache outage.
func RecordRateLimitFailOpen(action string) {
	RateLimitFailOpen.WithLabelValues(action).Inc()
}

// RecordSyncPayload counts an initial payload by kind and reason.
func RecordSyncPayload(kind, reason string) {
	SyncPayloads.WithLabelValues(kind, reason).Inc()
}

// RecordLockOperation records a distributed lock outcome.
func RecordLockOperation(operation, result string) {
	LockOperations.WithLabelValues(operation, result).Inc()
}

// RecordFanoutPublish records a relay publish.
func RecordFanoutPublish(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	FanoutPublished.WithLabelValues(result).Inc()
}

// RecordFanoutReceive records a relay delivery outcome.
func RecordFanoutReceive(result string) {
	FanoutReceived.WithLabelValues(result).Inc()
}
