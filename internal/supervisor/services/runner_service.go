// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package services

import (
	"context"
	"errors"
	"fmt"
)

// ContextRunner is a component whose main loop runs until ctx is canceled.
//
// Satisfied by:
//   - *websocket.Hub (periodic room sweep)
//   - *fanout.Relay (NATS subscription loop)
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a ContextRunner as a supervised service.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRoomHubService supervises the room hub's sweep loop.
//
//	tree.AddMessagingService(services.NewRoomHubService(hub))
func NewRoomHubService(hub ContextRunner) *RunnerService {
	return &RunnerService{runner: hub, name: "room-hub"}
}

// NewFanoutRelayService supervises the cross-instance relay. A lost NATS
// subscription returns an error and the relay is resubscribed after backoff.
func NewFanoutRelayService(relay ContextRunner) *RunnerService {
	return &RunnerService{runner: relay, name: "fanout-relay"}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.RunWithContext(ctx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	default:
		return fmt.Errorf("%s: %w", s.name, err)
	}
}

// String implements fmt.Stringer for logging.
func (s *RunnerService) String() string {
	return s.name
}
