// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package metrics provides Prometheus metrics for Pixelboard.

Collectors are registered on the default registry through promauto and are
updated through the Record* helpers so call sites stay one line long.
Metrics are exposed at /metrics in Prometheus text format.

# Available Metrics

Real-time path:
  - websocket_connections, websocket_messages_sent_total{type},
    websocket_messages_received_total{type}, websocket_send_dropped_total
  - rooms_active, room_membership_changes_total{change}
  - broadcast_flushes_total{trigger}, broadcast_batch_size,
    broadcast_coalesced_total, broadcast_dropped_total
  - sync_payloads_total{kind,reason}

Caching and limiting:
  - snapshot_requests_total{outcome}, snapshot_store_reads_total,
    snapshot_invalidations_total, snapshot_cache_errors_total{operation}
  - cache_lock_operations_total{operation,result}
  - ratelimit_decisions_total{action,decision}, ratelimit_fail_open_total{action}

Infrastructure:
  - board_store_operation_duration_seconds{operation}, board_store_operation_errors_total{operation}
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result},
    circuit_breaker_state_transitions_total{name,from_state,to_state}
  - fanout_messages_published_total{result}, fanout_messages_received_total{result}
  - api_requests_total{method,endpoint,status_code}, api_request_duration_seconds, api_active_requests

A rising ratelimit_fail_open_total means the Shared Cache is unreachable and
per-actor limits are not being enforced.
*/
package metrics
