// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

/*
Package cache provides the Shared Cache used by Pixelboard instances.

The Shared Cache is a small key-value capability with TTLs and a few atomic
primitives. It backs three things:
  - short-lived full-board snapshots (snapshot package)
  - the distributed lock that serialises snapshot population (Lock)
  - per-actor rate limit counters (ratelimit package)

# Implementations

Two implementations satisfy Store:
  - Redis: github.com/redis/go-redis/v9, used when redis.enabled is true.
    Compare-and-delete and increment-with-expiry run as Lua scripts so each
    is a single atomic round trip.
  - Memory: an in-process map guarded by a mutex, with lazy expiry on read
    and a background cleanup loop. Used for single-node development and in
    tests.

New chooses between them from config.RedisConfig.

# Distributed Lock

AcquireLock sets the lock key only if absent, with a TTL and a random
token. Release deletes the key only when it still holds that token, so a
holder that outlived its TTL can never delete a newer holder's lock:

	lock, ok, err := cache.AcquireLock(ctx, store, "snapshot:lock:main", 30*time.Second)
	if err != nil {
	    return err
	}
	if ok {
	    defer lock.Release(ctx)
	    // populate
	}

Releasing a lock that is no longer held is a programming error. Release
logs it at error level and returns ErrLockNotHeld.

# Errors

  - ErrNotFound: key is missing or expired
  - ErrNotInteger: an increment hit a value that is not an integer
  - ErrLockNotHeld: Release found a different token or no key at all

Any other error is an infrastructure error (connection refused, timeout).
Callers decide how to degrade; the cache never retries on their behalf
beyond the go-redis MaxRetries setting.

# Testing

Faulty wraps a Store and injects errors per operation so callers can test
their degradation paths. Redis tests run against miniredis; the integration
build tag runs the same checks against a real Redis container.
*/
package cache
