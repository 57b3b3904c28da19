// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/validation"
	ws "github.com/tomtom215/pixelboard/internal/websocket"
)

// actorQueryParam is the browser fallback for ActorIDHeader, since the
// WebSocket API cannot set request headers.
const actorQueryParam = "actorId"

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin; an empty one would bypass CORS entirely
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// actorFromRequest returns the actor id from the header or query string.
// An absent or malformed id yields "" and the connection stays anonymous
// until JOIN names one.
func actorFromRequest(r *http.Request) string {
	actorID := r.Header.Get(ActorIDHeader)
	if actorID == "" {
		actorID = r.URL.Query().Get(actorQueryParam)
	}
	if actorID != "" && !validation.ValidActorID(actorID) {
		logging.Debug().Str("actor_id", sanitizeLogValue(actorID)).Msg("Ignoring malformed actor id on WebSocket upgrade")
		return ""
	}
	return actorID
}

// WebSocket upgrades the request and starts a client bound to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || h.dispatcher == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, h.dispatcher, conn, h.config.WebSocket, actorFromRequest(r))
	client.Start()
}
