// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// fakeService counts starts and can fail a fixed number of times or ignore
// cancellation for a while.
type fakeService struct {
	name      string
	starts    atomic.Int32
	failures  int32
	stallStop time.Duration
}

func newFakeService(name string) *fakeService {
	return &fakeService{name: name}
}

func (f *fakeService) Serve(ctx context.Context) error {
	n := f.starts.Add(1)
	if n <= f.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	if f.stallStop > 0 {
		time.Sleep(f.stallStop)
	}
	return ctx.Err()
}

func (f *fakeService) Starts() int32 { return f.starts.Load() }

func (f *fakeService) String() string { return f.name }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
