// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/pixelboard/internal/logging"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// LiveResponse is returned by the liveness probe.
type LiveResponse struct {
	Alive         bool    `json:"alive"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// ReadyResponse is returned by the readiness probe.
type ReadyResponse struct {
	Ready       bool              `json:"ready"`
	Checks      map[string]string `json:"checks"`
	Connections int               `json:"connections"`
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, LiveResponse{
		Alive:         true,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// The Shared Cache must answer a ping; the board store is checked when
// configured. Returns 503 with the failing checks otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			ready = false
			checks[name] = "unavailable"
			logging.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			return
		}
		checks[name] = "ok"
	}
	check("cache", h.cache)
	check("database", h.database)

	resp := ReadyResponse{Ready: ready, Checks: checks}
	if h.hub != nil {
		resp.Connections = h.hub.GetClientCount()
	}

	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "service is not ready", resp)
		return
	}
	rw.Success(resp)
}
