// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/broadcast"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
	"github.com/tomtom215/pixelboard/internal/validation"
)

// Receive outcomes, used as metric labels.
const (
	ResultDelivered = "delivered"
	ResultOwn       = "own"
	ResultInvalid   = "invalid"
)

const (
	// DefaultSubjectPrefix is used when none is configured.
	DefaultSubjectPrefix = "pixelboard.board"

	breakerName       = "nats-fanout"
	breakerFailures   = 5
	breakerTimeout    = 30 * time.Second
	invalidateTimeout = 2 * time.Second
	metadataOrigin    = "origin"
)

// ErrRelayClosed is returned by Publish after Close.
var ErrRelayClosed = errors.New("fanout relay closed")

// Envelope is the wire form of a relayed batch.
type Envelope struct {
	Origin  string             `json:"origin"`
	BoardID string             `json:"boardId"`
	Updates []board.CellUpdate `json:"updates"`
	SentAt  time.Time          `json:"sentAt"`
}

// Relay publishes locally flushed batches and delivers batches flushed by
// other instances. It implements broadcast.FlushObserver.
type Relay struct {
	instanceID  string
	prefix      string
	publisher   message.Publisher
	subscriber  message.Subscriber
	emitter     broadcast.Emitter
	invalidator broadcast.Invalidator
	cb          *gobreaker.CircuitBreaker[any]
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides the clock used for SentAt.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// NewRelay creates a relay for instanceID. subscriber may be nil for a
// publish-only relay.
func NewRelay(instanceID, prefix string, publisher message.Publisher, subscriber message.Subscriber,
	emitter broadcast.Emitter, invalidator broadcast.Invalidator, opts ...Option) *Relay {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	r := &Relay{
		instanceID:  instanceID,
		prefix:      prefix,
		publisher:   publisher,
		subscriber:  subscriber,
		emitter:     emitter,
		invalidator: invalidator,
		cb:          newBreaker(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newBreaker() *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    breakerName,
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

// InstanceID returns the origin id stamped on published envelopes.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Subject returns the subject batches for boardID are published on.
func (r *Relay) Subject(boardID string) string {
	return r.prefix + "." + boardID
}

// wildcard matches every board subject.
func (r *Relay) wildcard() string {
	return r.prefix + ".>"
}

// BatchFlushed implements broadcast.FlushObserver. Failures are logged and
// counted; the local flush has already been delivered.
func (r *Relay) BatchFlushed(boardID string, updates []board.CellUpdate) {
	if len(updates) == 0 {
		return
	}
	if err := r.Publish(boardID, updates); err != nil && !errors.Is(err, ErrRelayClosed) {
		logging.Warn().Err(err).
			Str("board_id", boardID).
			Int("updates", len(updates)).
			Msg("Failed to relay batch to other instances")
	}
}

// Publish sends one batch to the other instances.
func (r *Relay) Publish(boardID string, updates []board.CellUpdate) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRelayClosed
	}

	data, err := json.Marshal(Envelope{
		Origin:  r.instanceID,
		BoardID: boardID,
		Updates: updates,
		SentAt:  r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set(metadataOrigin, r.instanceID)

	_, err = r.cb.Execute(func() (any, error) {
		return nil, r.publisher.Publish(r.Subject(boardID), msg)
	})
	metrics.RecordFanoutPublish(err)
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
		return fmt.Errorf("publish %s: %w", r.Subject(boardID), err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return nil
}

// RunWithContext consumes batches from other instances until ctx ends.
func (r *Relay) RunWithContext(ctx context.Context) error {
	if r.subscriber == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	messages, err := r.subscriber.Subscribe(ctx, r.wildcard())
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.wildcard(), err)
	}

	logging.Info().Str("subject", r.wildcard()).Str("instance_id", r.instanceID).Msg("Fan-out relay started")

	for {
		// Priority select: shutdown wins over a ready message
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
			// Retrying cannot fix a bad envelope, so every message is acked
			msg.Ack()
		}
	}
}

// deliver hands one received message to the local rooms and reports the outcome.
func (r *Relay) deliver(ctx context.Context, msg *message.Message) string {
	result := r.handle(ctx, msg)
	metrics.RecordFanoutReceive(result)
	return result
}

func (r *Relay) handle(ctx context.Context, msg *message.Message) string {
	if msg.Metadata.Get(metadataOrigin) == r.instanceID {
		return ResultOwn
	}

	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed fan-out envelope")
		return ResultInvalid
	}
	if env.Origin == r.instanceID {
		return ResultOwn
	}
	if !validation.ValidBoardID(env.BoardID) || len(env.Updates) == 0 {
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Str("origin", env.Origin).
			Str("board_id", env.BoardID).
			Int("updates", len(env.Updates)).
			Msg("Dropping incomplete fan-out envelope")
		return ResultInvalid
	}

	msgType, payload := broadcast.BuildMessage(env.BoardID, env.Updates)
	if err := r.emitter.EmitToRoom(env.BoardID, msgType, payload); err != nil {
		logging.Warn().Err(err).Str("board_id", env.BoardID).Msg("Failed to deliver relayed batch")
	}

	invCtx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()
	if err := r.invalidator.Invalidate(invCtx, env.BoardID); err != nil {
		logging.Warn().Err(err).Str("board_id", env.BoardID).Msg("Failed to invalidate snapshot after relayed batch")
	}

	logging.Debug().
		Str("origin", env.Origin).
		Str("board_id", env.BoardID).
		Int("updates", len(env.Updates)).
		Msg("Delivered relayed batch")
	return ResultDelivered
}

// Close stops publishing and closes both transports.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if r.subscriber != nil {
		if err := r.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}
