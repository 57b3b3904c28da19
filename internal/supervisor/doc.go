// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package supervisor provides Suture-based process supervision for Pixelboard.

It builds a two-layer tree of suture v4 supervisors so a failing component is
restarted with backoff without taking down unrelated ones.

# Tree Layout

	pixelboard (root)
	├── messaging-layer
	│   ├── room-hub      idle sweep of room memberships
	│   └── fanout-relay  cross-instance batch delivery over NATS
	└── api-layer
	    └── http-server   REST, WebSocket upgrade, /metrics

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewRoomHubService(hub))
	tree.AddMessagingService(services.NewFanoutRelayService(relay))
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh
	tree.LogUnstopped()

# Restart Policy

TreeConfig is applied to the root and both layers. Each failure adds one to
a counter that decays over FailureDecay seconds; past FailureThreshold the
supervisor waits FailureBackoff before the next restart. Zero fields take
DefaultTreeConfig values (5 failures, 30s decay, 15s backoff, 10s shutdown).

A service returning any value is restarted unless it returns
suture.ErrDoNotRestart or the tree's context is done. The wrappers in
services convert context cancellation into ctx.Err() so shutdown is not
counted as a failure.

# Shutdown

Canceling the context passed to Serve stops the api layer and the messaging
layer. Services still running after ShutdownTimeout are listed by
UnstoppedServiceReport; LogUnstopped writes them to the tree's logger.

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
