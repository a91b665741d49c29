package hub

import (
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type Client struct {
	Hub  *Hub
	Role Role
	Conn *websocket.Conn
	Send chan []byte

	// SessionID is set for widget clients.
	SessionID string
	// AdminID and AdminName are set for console clients.
	AdminID   string
	AdminName string
}

// send queues an envelope without blocking; a stalled client just misses the
// frame and catches up from the REST surface.
func (c *Client) send(env Envelope) {
	data, ok := marshalEnvelope(env)
	if !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.WithField("role", c.Role).Warn("client send buffer full, frame dropped")
	}
}

// Deliver queues an envelope for this client alone.
func (c *Client) Deliver(env Envelope) { c.send(env) }

// ReadPump relays inbound frames to the hub's message handler until the
// connection dies, then unregisters the client.
func (c *Client) ReadPump() {
	defer c.Hub.UnregisterClient(c)

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		if c.Hub.OnMessage != nil {
			c.Hub.OnMessage(c, data)
		}
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
