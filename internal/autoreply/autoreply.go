// Package autoreply synthesizes agent-side traffic while no human agent is
// attached to a session: a welcome message on a fixed timer after creation,
// a typing indicator after a randomized delay, and a canned (or AI-generated)
// reply to each visitor message. Once a session is assigned, the responder
// stays out of the way.
package autoreply

import (
	"context"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gendesk/internal/domain"
	"gendesk/internal/hub"
	"gendesk/internal/registry"
)

type Responder struct {
	registry *registry.Registry
	hub      *hub.Hub
	ai       *AIResponder // nil means canned replies only

	welcomeDelay time.Duration
	typingMin    time.Duration
	typingMax    time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(reg *registry.Registry, h *hub.Hub, ai *AIResponder, welcomeDelay, typingMin, typingMax time.Duration) *Responder {
	return &Responder{
		registry:     reg,
		hub:          h,
		ai:           ai,
		welcomeDelay: welcomeDelay,
		typingMin:    typingMin,
		typingMax:    typingMax,
		pending:      make(map[string]*time.Timer),
	}
}

// SessionCreated schedules the canned welcome message.
func (r *Responder) SessionCreated(sessionID, visitorName string) {
	if r.welcomeDelay <= 0 {
		r.deliver(sessionID, welcomeText(visitorName))
		return
	}
	time.AfterFunc(r.welcomeDelay, func() {
		r.deliver(sessionID, welcomeText(visitorName))
	})
}

// VisitorMessage schedules a simulated reply. A newer message supersedes a
// pending one by stopping its timer first.
func (r *Responder) VisitorMessage(sessionID, text string) {
	session, err := r.registry.Get(sessionID)
	if err != nil {
		return
	}
	if session.AssignedTo != nil {
		return
	}

	r.mu.Lock()
	if t := r.pending[sessionID]; t != nil {
		t.Stop()
	}
	delay := r.typingDelay()
	r.pending[sessionID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.pending, sessionID)
		r.mu.Unlock()

		// An agent may have taken the session while the typing timer ran;
		// their answer must not race a canned one.
		session, err := r.registry.Get(sessionID)
		if err != nil || session.AssignedTo != nil {
			return
		}
		r.reply(sessionID, session.Department, text)
	})
	r.mu.Unlock()
}

func (r *Responder) typingDelay() time.Duration {
	if r.typingMax <= r.typingMin {
		return r.typingMin
	}
	return r.typingMin + time.Duration(rand.Int63n(int64(r.typingMax-r.typingMin)))
}

func (r *Responder) reply(sessionID, department, userText string) {
	r.hub.ToSession(sessionID, hub.Envelope{
		Type:    hub.TypeTyping,
		Payload: hub.TypingPayload{SessionID: sessionID, Typing: true},
	})
	defer r.hub.ToSession(sessionID, hub.Envelope{
		Type:    hub.TypeTyping,
		Payload: hub.TypingPayload{SessionID: sessionID, Typing: false},
	})

	text := ""
	if r.ai != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		answer, err := r.ai.Reply(ctx, department, userText, func(delta string) {
			r.hub.ToSession(sessionID, hub.Envelope{
				Type:    hub.TypeReplyStream,
				Payload: hub.StreamPayload{SessionID: sessionID, Delta: delta},
			})
		})
		if err != nil {
			log.WithError(err).WithField("session_id", sessionID).Warn("ai reply failed, falling back to canned text")
		} else {
			text = answer
		}
	}
	if text == "" {
		text = cannedReply(department, userText)
	}

	r.deliver(sessionID, text)
}

// deliver appends a system message and pushes it to both live surfaces. A
// session closed in the meantime simply drops the reply.
func (r *Responder) deliver(sessionID, text string) {
	msg, err := r.registry.SendMessage(context.Background(), sessionID, text, domain.SenderSystem, nil)
	if err != nil {
		log.WithError(err).WithField("session_id", sessionID).Debug("auto reply dropped")
		return
	}
	env := hub.Envelope{
		Type:    hub.TypeMessage,
		Payload: hub.MessagePayload{SessionID: sessionID, Message: *msg},
	}
	r.hub.ToSession(sessionID, env)
	r.hub.ToConsoles(env)
}
