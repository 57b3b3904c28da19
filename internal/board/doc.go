// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

// Package board holds the canvas data model and the persistence contract
// the real-time core depends on.
//
// Store is implemented by database.DB (DuckDB), database.ResilientStore
// (circuit breaker wrapper) and MemoryStore, which tests and single-node
// development use. Cell writes are last-writer-wins per coordinate; every
// write raises the cell price by the board's price step.
package board
