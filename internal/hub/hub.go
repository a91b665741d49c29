// Package hub tracks live WebSocket clients: visitor widgets keyed by the
// session they watch, admin consoles keyed by admin id. A visitor may have
// several tabs open on one session, so both maps hold client lists.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Role string

const (
	RoleWidget  Role = "widget"
	RoleConsole Role = "console"
)

// Envelope is the typed frame every WebSocket message travels in.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Hub struct {
	mu       sync.RWMutex
	widgets  map[string][]*Client
	consoles map[string][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// OnMessage handles inbound frames, OnDisconnect runs after a client is
	// dropped from the maps. Both are set once before Run.
	OnMessage    func(c *Client, data []byte)
	OnDisconnect func(c *Client)
}

func NewHub() *Hub {
	return &Hub{
		widgets:    make(map[string][]*Client),
		consoles:   make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the connection maps until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if client.Role == RoleConsole {
				h.consoles[client.AdminID] = append(h.consoles[client.AdminID], client)
			} else {
				h.widgets[client.SessionID] = append(h.widgets[client.SessionID], client)
			}
			h.mu.Unlock()
			h.logStats()

		case client := <-h.unregister:
			h.mu.Lock()
			if client.Role == RoleConsole {
				h.consoles[client.AdminID] = remove(h.consoles[client.AdminID], client)
				if len(h.consoles[client.AdminID]) == 0 {
					delete(h.consoles, client.AdminID)
				}
			} else {
				h.widgets[client.SessionID] = remove(h.widgets[client.SessionID], client)
				if len(h.widgets[client.SessionID]) == 0 {
					delete(h.widgets, client.SessionID)
				}
			}
			h.mu.Unlock()
			client.Conn.Close()
			if h.OnDisconnect != nil {
				h.OnDisconnect(client)
			}
			h.logStats()
		}
	}
}

func remove(list []*Client, client *Client) []*Client {
	for i, c := range list {
		if c == client {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// RegisterClient and UnregisterClient hand the client to Run. Once Run has
// exited they return immediately so pump defers never block during shutdown.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ToSession delivers an envelope to every widget tab watching the session.
func (h *Hub) ToSession(sessionID string, env Envelope) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.widgets[sessionID]...)
	h.mu.RUnlock()
	for _, c := range clients {
		c.send(env)
	}
}

// ToConsoles broadcasts an envelope to every connected console.
func (h *Hub) ToConsoles(env Envelope) {
	h.mu.RLock()
	var clients []*Client
	for _, list := range h.consoles {
		clients = append(clients, list...)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.send(env)
	}
}

// WidgetOnline reports whether any widget tab watches the session.
func (h *Hub) WidgetOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.widgets[sessionID]) > 0
}

// ConsoleOnline reports whether any admin console is connected.
func (h *Hub) ConsoleOnline() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.consoles) > 0
}

func (h *Hub) logStats() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	log.WithFields(log.Fields{
		"widgets":  len(h.widgets),
		"consoles": len(h.consoles),
	}).Debug("hub client counts")
}

func marshalEnvelope(env Envelope) ([]byte, bool) {
	data, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).Error("envelope marshal failed")
		return nil, false
	}
	return data, true
}
