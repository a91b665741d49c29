package hub

import "gendesk/internal/domain"

// Wire payloads shared by the server handlers and the auto-responder.

const (
	TypeConnected   = "connected"
	TypePresence    = "presence"
	TypeMessage     = "message"
	TypeTyping      = "typing"
	TypeMarkRead    = "mark_read"
	TypeReplyStream = "reply_stream"
	TypeSessionMeta = "session_update"
	TypeError       = "error"
	TypePing        = "ping"
	TypePong        = "pong"
)

type ConnectedPayload struct {
	SessionID string              `json:"sessionId,omitempty"`
	Session   *domain.ChatSession `json:"session,omitempty"`
	AdminID   string              `json:"adminId,omitempty"`
	AdminName string              `json:"adminName,omitempty"`
}

// PresencePayload tells consoles whether any widget tab still watches a
// session.
type PresencePayload struct {
	SessionID string `json:"sessionId"`
	Online    bool   `json:"online"`
}

type MessagePayload struct {
	SessionID string             `json:"sessionId"`
	Message   domain.ChatMessage `json:"message"`
}

type TypingPayload struct {
	SessionID string `json:"sessionId"`
	Typing    bool   `json:"typing"`
}

type StreamPayload struct {
	SessionID string `json:"sessionId"`
	Delta     string `json:"delta"`
}

type SessionPayload struct {
	Session *domain.ChatSession `json:"session"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
