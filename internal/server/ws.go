package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"gendesk/internal/domain"
	"gendesk/internal/hub"
)

// inboundFrame defers payload decoding until the type is known.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inboundMessage struct {
	SessionID   string              `json:"sessionId"`
	Text        string              `json:"text"`
	Attachments []domain.Attachment `json:"attachments"`
}

type inboundTyping struct {
	SessionID string `json:"sessionId"`
	Typing    bool   `json:"typing"`
}

type inboundMarkRead struct {
	SessionID string `json:"sessionId"`
}

// widgetSocket attaches a visitor tab to its session. Reconnects carry the
// locally stored session id; a closed session is refused so the widget
// starts a fresh conversation instead.
func (s *Server) widgetSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithError(err).Warn("widget upgrade failed")
		return nil
	}

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		closeConn(conn, websocket.ClosePolicyViolation, "missing session_id")
		return nil
	}
	session, err := s.registry.Get(sessionID)
	if err != nil {
		closeConn(conn, websocket.ClosePolicyViolation, "unknown session")
		return nil
	}
	if session.Status.Terminal() {
		closeConn(conn, websocket.ClosePolicyViolation, "session closed")
		return nil
	}

	client := &hub.Client{
		Hub:       s.hub,
		Role:      hub.RoleWidget,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
	}
	s.hub.RegisterClient(client)
	log.WithField("session_id", sessionID).Info("widget connected")

	go client.WritePump()
	go client.ReadPump()

	// First frame rehydrates the tab; the presence broadcast flips the
	// visitor's online indicator on every console.
	s.hub.ToSession(sessionID, hub.Envelope{
		Type:    hub.TypeConnected,
		Payload: hub.ConnectedPayload{SessionID: sessionID, Session: session},
	})
	s.hub.ToConsoles(hub.Envelope{
		Type:    hub.TypePresence,
		Payload: hub.PresencePayload{SessionID: sessionID, Online: true},
	})
	return nil
}

// clientGone runs after the hub drops a client. A visitor counts as offline
// only once the last tab watching the session is gone.
func (s *Server) clientGone(client *hub.Client) {
	if client.Role != hub.RoleWidget || s.hub.WidgetOnline(client.SessionID) {
		return
	}
	s.hub.ToConsoles(hub.Envelope{
		Type:    hub.TypePresence,
		Payload: hub.PresencePayload{SessionID: client.SessionID, Online: false},
	})
}

func (s *Server) consoleSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithError(err).Warn("console upgrade failed")
		return nil
	}

	adminID := c.QueryParam("admin_id")
	if adminID == "" {
		closeConn(conn, websocket.ClosePolicyViolation, "missing admin_id")
		return nil
	}

	client := &hub.Client{
		Hub:       s.hub,
		Role:      hub.RoleConsole,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		AdminID:   adminID,
		AdminName: c.QueryParam("name"),
	}
	s.hub.RegisterClient(client)
	log.WithField("admin_id", adminID).Info("console connected")

	go client.WritePump()
	go client.ReadPump()

	client.Deliver(hub.Envelope{
		Type:    hub.TypeConnected,
		Payload: hub.ConnectedPayload{AdminID: adminID, AdminName: client.AdminName},
	})
	return nil
}

func closeConn(conn *websocket.Conn, code int, msg string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, msg),
		time.Now().Add(time.Second),
	)
	conn.Close()
}

// handleFrame dispatches inbound socket frames by type.
func (s *Server) handleFrame(client *hub.Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(client, "invalid frame format")
		return
	}

	switch frame.Type {
	case hub.TypeMessage:
		s.handleSocketMessage(client, frame.Payload)
	case hub.TypeTyping:
		s.handleSocketTyping(client, frame.Payload)
	case hub.TypeMarkRead:
		s.handleSocketMarkRead(client, frame.Payload)
	case hub.TypePing:
		client.Deliver(hub.Envelope{Type: hub.TypePong, Payload: map[string]string{"status": "pong"}})
	default:
		s.sendError(client, "unknown frame type")
	}
}

func (s *Server) handleSocketMessage(client *hub.Client, payload json.RawMessage) {
	var in inboundMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		s.sendError(client, "invalid message payload")
		return
	}

	sessionID := in.SessionID
	sender := domain.SenderAdmin
	if client.Role == hub.RoleWidget {
		sessionID = client.SessionID
		sender = domain.SenderUser
	}
	if sessionID == "" {
		s.sendError(client, "missing sessionId")
		return
	}

	msg, err := s.registry.SendMessage(context.Background(), sessionID, in.Text, sender, in.Attachments)
	if err != nil {
		s.sendError(client, err.Error())
		return
	}

	env := hub.Envelope{Type: hub.TypeMessage, Payload: hub.MessagePayload{SessionID: sessionID, Message: *msg}}
	s.hub.ToSession(sessionID, env)
	s.hub.ToConsoles(env)
	if sender == domain.SenderUser {
		s.responder.VisitorMessage(sessionID, in.Text)
	}
}

// handleSocketTyping relays typing indicators to the other side.
func (s *Server) handleSocketTyping(client *hub.Client, payload json.RawMessage) {
	var in inboundTyping
	if err := json.Unmarshal(payload, &in); err != nil {
		return
	}

	if client.Role == hub.RoleWidget {
		s.hub.ToConsoles(hub.Envelope{
			Type:    hub.TypeTyping,
			Payload: hub.TypingPayload{SessionID: client.SessionID, Typing: in.Typing},
		})
		return
	}
	s.hub.ToSession(in.SessionID, hub.Envelope{
		Type:    hub.TypeTyping,
		Payload: hub.TypingPayload{SessionID: in.SessionID, Typing: in.Typing},
	})
}

func (s *Server) handleSocketMarkRead(client *hub.Client, payload json.RawMessage) {
	var in inboundMarkRead
	if err := json.Unmarshal(payload, &in); err != nil {
		return
	}

	if client.Role == hub.RoleWidget {
		s.registry.MarkAsRead(context.Background(), client.SessionID, domain.SenderUser)
		return
	}
	s.registry.MarkAsRead(context.Background(), in.SessionID, domain.SenderAdmin)
	if session, err := s.registry.Get(in.SessionID); err == nil {
		s.hub.ToConsoles(hub.Envelope{Type: hub.TypeSessionMeta, Payload: hub.SessionPayload{Session: session}})
	}
}

func (s *Server) sendError(client *hub.Client, msg string) {
	client.Deliver(hub.Envelope{Type: hub.TypeError, Payload: hub.ErrorPayload{Error: msg}})
}
