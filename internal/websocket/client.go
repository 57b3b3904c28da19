// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package websocket

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
	"github.com/tomtom215/pixelboard/internal/metrics"
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id         uint64
	hub        *Hub
	dispatcher *Dispatcher
	conn       *websocket.Conn
	cfg        config.WebSocketConfig

	// inbound throttles frames before they reach the dispatcher.
	inbound *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	send    chan Message
	closed  bool
	actorID string
}

// NewClient creates a new Client with a unique deterministic ID
func NewClient(hub *Hub, dispatcher *Dispatcher, conn *websocket.Conn, cfg config.WebSocketConfig, actorID string) *Client {
	id := clientIDCounter.Add(1)
	ctx, cancel := context.WithCancel(logging.ContextWithConnectionID(context.Background(), strconv.FormatUint(id, 10)))
	limit := rate.Inf
	if cfg.InboundRate > 0 {
		limit = rate.Limit(cfg.InboundRate)
	}
	return &Client{
		id:         id,
		hub:        hub,
		dispatcher: dispatcher,
		conn:       conn,
		cfg:        cfg,
		inbound:    rate.NewLimiter(limit, max(cfg.InboundBurst, 1)),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan Message, max(cfg.SendBuffer, 1)),
		actorID:    actorID,
	}
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// ActorID returns the actor this connection paints as.
func (c *Client) ActorID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actorID
}

// SetActorID sets the actor this connection paints as.
func (c *Client) SetActorID(actorID string) {
	c.mu.Lock()
	c.actorID = actorID
	c.mu.Unlock()
}

// Send queues msg for the write pump. A full buffer drops msg for this
// client only.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		metrics.RecordWSSent(msg.Type)
		return true
	default:
		metrics.RecordWSDropped()
		logging.Debug().Uint64("conn_id", c.id).Str("type", msg.Type).Msg("send buffer full, dropping message")
		return false
	}
}

// Close stops the write pump, which sends a close frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		c.cancel()
	}
}

// readPump pumps messages from the websocket connection to the dispatcher
func (c *Client) readPump() {
	defer func() {
		c.hub.OnDisconnect(c)
		c.Close()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
		metrics.RecordWSConnection(false)
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.hub.Touch(c.id)
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.RecordWSError("read")
				logging.Warn().Err(err).Uint64("conn_id", c.id).Msg("unexpected websocket close error")
			}
			break
		}
		c.hub.Touch(c.id)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			metrics.RecordWSReceived("invalid")
			c.Send(NewErrorMessage(ErrorCodeInvalidRequest, "frame is not valid JSON"))
			continue
		}
		metrics.RecordWSReceived(env.Type)

		if !c.inbound.Allow() {
			c.Send(Message{Type: MessageTypeError, Payload: ErrorPayload{
				Code:              ErrorCodeRateLimited,
				Message:           "too many messages",
				RetryAfterSeconds: 1,
			}})
			continue
		}

		c.dispatcher.Handle(c.ctx, c, env)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to encode message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.RecordWSError("write")
				logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start registers the client and begins reading and writing
func (c *Client) Start() {
	c.hub.Register(c)
	metrics.RecordWSConnection(true)
	go c.writePump()
	go c.readPump()
}
