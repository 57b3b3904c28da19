// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package snapshot is the stampede-safe read-through cache for full-board
snapshots.

Snapshots are stored JSON-encoded in the Shared Cache under snapshot:{board}
with a short TTL. On a miss, population is serialised by a distributed lock
at snapshot:lock:{board}:

 1. The lock holder reads the board from the store, writes the snapshot
    and releases the lock by compare-and-delete.
 2. Everyone else polls the cache with capped exponential backoff.
 3. A waiter that runs out of attempts reads the store directly instead of
    blocking. A crashed holder therefore costs at most one poll budget per
    waiter until its lock TTL expires.

Concurrent misses inside one process are first collapsed with singleflight,
so the lock protocol runs once per process per board. If the Shared Cache
itself fails, GetSnapshot reads the store directly.

GetRecentChanges is never cached; deltas for a reconnecting client are
expected to be small.
*/
package snapshot
