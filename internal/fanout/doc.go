// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package fanout relays flushed pixel batches between server instances.

Every instance keeps its own rooms, so a paint accepted by one instance must
reach members connected to the others. The Relay observes the local
broadcaster and publishes each flushed batch to core NATS; a subscriber on the
same Relay delivers batches from other instances to the local rooms.

# Subjects

Batches for board "main" are published to "{prefix}.main" with the default
prefix "pixelboard.board". Each instance subscribes to "{prefix}.>" without a
queue group, so every instance receives every batch. JetStream is not used:
a batch that misses an instance is repaired by the next reconnect sync.

# Envelope

	{"origin":"<instance id>","boardId":"main","updates":[...],"sentAt":"..."}

Envelopes carrying the local instance id are dropped on receipt.

# Delivery

Foreign batches are emitted to the room with the same message shape the local
broadcaster uses (UPDATE for one cell, BATCH_UPDATE otherwise) and the local
snapshot entry is invalidated afterwards.

# Embedded Server

EmbeddedServer starts an in-process nats-server for single-node development
and tests. Production deployments point nats.url at a real cluster.
*/
package fanout
