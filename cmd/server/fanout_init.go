// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/pixelboard/internal/broadcast"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/fanout"
	"github.com/tomtom215/pixelboard/internal/logging"
)

const embeddedShutdownTimeout = 5 * time.Second

// fanoutComponents holds the relay and, in single-node setups, the
// in-process NATS server it talks to. Both are nil when fan-out is disabled.
type fanoutComponents struct {
	relay  *fanout.Relay
	server *fanout.EmbeddedServer
}

// initFanout connects the cross-instance relay when cfg.NATS.Enabled.
func initFanout(cfg *config.Config, emitter broadcast.Emitter, invalidator broadcast.Invalidator) (*fanoutComponents, error) {
	fc := &fanoutComponents{}
	if !cfg.NATS.Enabled {
		logging.Info().Msg("Fan-out disabled, batches reach local rooms only")
		return fc, nil
	}

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srv, err := fanout.StartEmbeddedServer(cfg.NATS.EmbeddedHost, cfg.NATS.EmbeddedPort)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		fc.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	wmLogger := fanout.NewLogger()
	publisher, err := fanout.NewPublisher(url, cfg.NATS, wmLogger)
	if err != nil {
		fc.Close()
		return nil, err
	}
	subscriber, err := fanout.NewSubscriber(url, cfg.NATS, wmLogger)
	if err != nil {
		_ = publisher.Close()
		fc.Close()
		return nil, err
	}

	fc.relay = fanout.NewRelay(cfg.Server.InstanceID, cfg.NATS.SubjectPrefix, publisher, subscriber, emitter, invalidator)
	logging.Info().
		Str("url", url).
		Str("subject", fc.relay.Subject("*")).
		Msg("Fan-out relay connected")
	return fc, nil
}

// Close stops the relay first so nothing publishes into a stopped server.
func (fc *fanoutComponents) Close() {
	if fc.relay != nil {
		if err := fc.relay.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing fan-out relay")
		}
	}
	if fc.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), embeddedShutdownTimeout)
		defer cancel()
		if err := fc.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS server shutdown timed out")
		}
	}
}
