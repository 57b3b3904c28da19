// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package broadcast coalesces persisted cell changes into per-room batches
before they are pushed to viewers.

Each board has a pending buffer keyed by cell coordinate. A newer update to
the same cell overwrites the older one in place, so a batch never carries
two entries for one cell and entries keep the order in which their cell
first appeared. The first update into an empty buffer arms a single-shot
timer (broadcast.flush_delay); a buffer that reaches broadcast.max_batch_size
is flushed immediately by the caller that filled it.

A flush swaps the buffer out, emits one message (UPDATE for a single cell,
BATCH_UPDATE otherwise) and invalidates the board snapshot. Flushes of one
room are serialised by a per-room mutex that is held across the swap and the
emit, so batches reach the emitter in the order they were cut.

Emitting is best-effort: if the room emitter fails, the batch is logged and
dropped. The cells are already persisted and clients recover through resync.
*/
package broadcast
