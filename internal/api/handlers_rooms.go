// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package api

import (
	"net/http"

	ws "github.com/tomtom215/pixelboard/internal/websocket"
)

// RoomsResponse lists every room with at least one member.
type RoomsResponse struct {
	Rooms       []ws.RoomStats `json:"rooms"`
	Connections int            `json:"connections"`
}

// Rooms returns active rooms sorted by board id.
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.hub.Rooms()
	if rooms == nil {
		rooms = []ws.RoomStats{}
	}
	WriteSuccess(w, r, RoomsResponse{
		Rooms:       rooms,
		Connections: h.hub.GetClientCount(),
	})
}
