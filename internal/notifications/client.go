// Package notifications provides real-time delivery over WebSocket rooms
// backed by Redis pub/sub fan-out.
package notifications

import (
	"log"
	"time"

	"liaison/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Pump timing. pingPeriod must stay under pongWait or the read deadline
// expires between our own pings.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384

	// Outbound buffer per connection. A full buffer means the consumer is
	// too slow; TrySend drops rather than stalling the hub.
	sendBufferSize = 256
)

// WSHub is the slice of hub behavior a Client needs: somewhere to
// unregister itself and a label for metrics.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client pairs one WebSocket connection with its outbound buffer. All
// writes to the socket go through WritePump; the hub only ever touches
// the Send channel.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	// IncomingHandler receives every frame ReadPump pulls off the socket.
	IncomingHandler func(*Client, []byte)
}

// NewClient wraps a connection for the given hub and user.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump drains inbound frames until the peer goes away, feeding each
// one to IncomingHandler. It owns unregistration: whatever ends the read
// loop also tears the client down.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read loop ended for user %d: %v", c.UserID, err)
			}
			return
		}
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, frame)
		}
	}
}

// WritePump is the single writer for the socket: it flushes the Send
// buffer and keeps the connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a frame without ever blocking the caller. A full buffer
// drops the frame and queues a gap notice so the client knows to re-fetch;
// a racing close is absorbed.
func (c *Client) TrySend(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- frame:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		log.Printf("dropped frame for user %d (%s): send buffer full", c.UserID, c.Hub.Name())

		gapNotice := []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)
		select {
		case c.Send <- gapNotice:
		default:
			// still full; the notice is best-effort
		}
	}
}
