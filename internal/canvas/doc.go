// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

// Package canvas handles paint requests from both transports: validate,
// rate-limit per actor, persist through the board store, and hand the
// resulting change to the broadcaster.
package canvas
