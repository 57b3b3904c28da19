// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package websocket is the Connection & Room Manager: board rooms, the live
connection set, and the gorilla/websocket transport that feeds them.

Key Components:

  - Hub: owns room membership. A connection is in at most one room; rooms are
    created on first join and forgotten when their last member leaves.
  - Client: one WebSocket connection with a read pump and a write pump.
  - Dispatcher: routes inbound frames (JOIN, LEAVE, PAINT, RESYNC, PING).

Architecture:

	        JOIN / PAINT / RESYNC
	Client ─────────────────────▶ Dispatcher ──▶ Hub.Join ──▶ resync.Protocol
	  ▲                               │
	  │ UPDATE / BATCH_UPDATE         └────────▶ canvas.Service ──▶ broadcast
	  │                                                                │
	  └──────────────── Hub.EmitToRoom ◀───────────────────────────────┘

Message Types:

Frames are JSON objects {"type": ..., "payload": ...}.

Inbound:
  - JOIN {boardId, actorId?, lastKnownTimestamp?}
  - LEAVE
  - PAINT {x, y, color} on the joined board
  - RESYNC: request a full snapshot
  - PING

Outbound:
  - SNAPSHOT and DELTA: initial or requested board state
  - UPDATE and BATCH_UPDATE: coalesced cell changes
  - MEMBER_COUNT {boardId, count}
  - ERROR {code, message, retryAfterSeconds?}
  - PONG

Delivery is best-effort. Each client has a bounded send buffer; when it is
full the message is dropped for that client only and counted in
websocket_send_dropped_total. Clients that miss updates recover with RESYNC
or by rejoining with lastKnownTimestamp.

Thread Safety:

Hub state is guarded by one RWMutex that is never held across store, cache
or send calls. Room sends are made in connection id order.

The sweep loop (RunWithContext) reconciles rooms with the live set every
rooms.sweep_interval and closes connections idle for rooms.idle_timeout.
*/
package websocket
