// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package services provides suture.Service wrappers for Pixelboard components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern and names itself through fmt.Stringer for the event log.

# Available Services

HTTP Server (HTTPServerService):
  - Binds the listener inside Serve so bind errors are restarted with backoff
  - Drains in-flight requests with a bounded Shutdown on cancellation
  - Addr reports the bound address (useful with port 0 in tests)

Room Hub (NewRoomHubService):
  - Runs websocket.Hub.RunWithContext, the idle membership sweep
  - Closes every client connection when the context is canceled

Fan-out Relay (NewFanoutRelayService):
  - Runs fanout.Relay.RunWithContext, the NATS subscription loop
  - Subscription errors are returned so the supervisor resubscribes

# Return Values

Cancellation is reported as ctx.Err() unchanged. Other errors are wrapped
with the service name; suture logs them through sutureslog and restarts the
service.
*/
package services
