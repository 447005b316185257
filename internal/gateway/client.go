package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Client is one WebSocket connection to the gateway: a session user's chat
// client, or an admin/audit client subscribed to job events. Outbound
// frames (RPC responses and broadcast events) are serialized onto a single
// writer goroutine so concurrent SendEvent/SendResponse calls never race a
// gorilla/websocket connection, which is not safe for concurrent writers.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan interface{}
	done   chan struct{}
}

// NewClient wraps an upgraded connection. Each client gets a random id used
// both as its bus subscription key and as the log correlation id.
func NewClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan interface{}, sendBuffer),
		done:   make(chan struct{}),
	}
}

// SendEvent queues a server-pushed event frame for this client. Non-blocking:
// when this client's send buffer is full the event is dropped (and a warning
// logged) rather than letting a slow reader stall the whole broadcast
// fan-out; the client stays connected (mirrors the drop-rather-
// than-block rule internal/transcription's broadcaster applies per-subscriber).
func (c *Client) SendEvent(event protocol.EventFrame) {
	select {
	case c.send <- event:
	case <-c.done:
	default:
		slog.Warn("gateway client send buffer full, dropping event", "client", c.id, "event", event.Name)
	}
}

// SendResponse queues an RPC response frame for this client.
func (c *Client) SendResponse(resp *protocol.ResponseFrame) {
	select {
	case c.send <- resp:
	case <-c.done:
	default:
		slog.Warn("gateway client send buffer full, dropping response", "client", c.id)
	}
}

// Close stops the writer goroutine and closes the underlying connection.
func (c *Client) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.conn.Close()
}

// Run reads RPC requests off the connection and dispatches them through the
// server's MethodRouter until the connection closes or ctx is canceled. The
// writer pump runs on its own goroutine for the lifetime of Run.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req protocol.RequestFrame
		if err := json.Unmarshal(raw, &req); err != nil {
			c.SendResponse(protocol.NewErrorResponse("", protocol.ErrInvalidRequest, "malformed request frame"))
			continue
		}

		if c.server.rateLimiter.Enabled() && !c.server.rateLimiter.Allow(c.id) {
			c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrRateLimited, "too many requests"))
			continue
		}

		c.server.router.Dispatch(ctx, c, &req)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
