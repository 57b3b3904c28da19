// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

const storeBreakerName = "board-store"

var _ board.Store = (*ResilientStore)(nil)

// ResilientStore wraps a board.Store with a circuit breaker.
//
// The breaker uses real time for its interval and timeout; tests that need
// to see it recover wait out a short BreakerTimeout.
type ResilientStore struct {
	inner board.Store
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// NewResilientStore wraps inner. The circuit opens after
// cfg.BreakerFailures consecutive infrastructure failures.
func NewResilientStore(inner board.Store, cfg config.DatabaseConfig) *ResilientStore {
	name := storeBreakerName
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= failures
			if shouldTrip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Str("breaker", name).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},

		// Requests for missing boards or bad coordinates say nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil || isDomainError(err)
		},
	})

	return &ResilientStore{inner: inner, cb: cb, name: name}
}

// State returns the current breaker state.
func (r *ResilientStore) State() gobreaker.State {
	return r.cb.State()
}

// execute runs fn through the breaker and records the outcome
func (r *ResilientStore) execute(fn func() (any, error)) (any, error) {
	result, err := r.cb.Execute(fn)

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
		logging.Warn().Err(err).Str("breaker", r.name).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case isDomainError(err):
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
	}
	return result, err
}

// castResult safely type-casts the circuit breaker result with error checking
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// ReadBoard implements board.Store.
func (r *ResilientStore) ReadBoard(ctx context.Context, boardID string) (*board.Snapshot, error) {
	return castResult[*board.Snapshot](r.execute(func() (any, error) {
		return r.inner.ReadBoard(ctx, boardID)
	}))
}

// ReadCellsChangedSince implements board.Store.
func (r *ResilientStore) ReadCellsChangedSince(ctx context.Context, boardID string, since time.Time) ([]board.CellDelta, error) {
	return castResult[[]board.CellDelta](r.execute(func() (any, error) {
		return r.inner.ReadCellsChangedSince(ctx, boardID, since)
	}))
}

// WriteCell implements board.Store.
func (r *ResilientStore) WriteCell(ctx context.Context, boardID string, x, y int, color, actorID string) (*board.WriteResult, error) {
	return castResult[*board.WriteResult](r.execute(func() (any, error) {
		return r.inner.WriteCell(ctx, boardID, x, y, color, actorID)
	}))
}

// BoardInfo implements board.Store.
func (r *ResilientStore) BoardInfo(ctx context.Context, boardID string) (*board.Info, error) {
	return castResult[*board.Info](r.execute(func() (any, error) {
		return r.inner.BoardInfo(ctx, boardID)
	}))
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
