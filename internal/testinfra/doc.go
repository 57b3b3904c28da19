// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

// Package testinfra provides container helpers for integration tests.
//
// Everything here is behind the integration build tag and needs a Docker
// daemon; tests call SkipIfNoDocker first so `go test -tags integration`
// still passes on machines without Docker.
//
//	func TestRedisStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redisC, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redisC)
//	    ...
//	}
//
// Unit tests use miniredis instead and never need this package.
package testinfra
