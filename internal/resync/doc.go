// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

// Package resync picks the initial payload for a joining or reconnecting
// client: a full snapshot or the cells changed since the client last heard
// from the server.
//
// The decision is stateless. A client that reports no last-known timestamp,
// or one older than the stale threshold, gets a snapshot. A recent timestamp
// gets a delta, unless it is empty or cannot be read, in which case the
// client gets a snapshot anyway.
package resync
