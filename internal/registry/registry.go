// Package registry owns the authoritative in-memory session set. Every
// mutation is written through to the store and surfaced to the notification
// emitter. Unlike the browser widget this code replaced, the registry is
// accessed by genuinely concurrent connections, so a single RWMutex guards
// the session map; readers get deep copies.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"gendesk/internal/domain"
	"gendesk/internal/notify"
	"gendesk/internal/store"
)

const DefaultDepartment = "general"

// CreateProfile is the visitor intake form.
type CreateProfile struct {
	Name       string
	Email      string
	Phone      string
	Department string
	PageURL    string
	UserAgent  string
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession
	order    []string // insertion order, the tie-breaker for equal sort keys

	store         store.Store
	emitter       *notify.Emitter
	deliveryDelay time.Duration
	now           func() time.Time
}

func New(st store.Store, em *notify.Emitter, deliveryDelay time.Duration) *Registry {
	return &Registry{
		sessions:      make(map[string]*domain.ChatSession),
		store:         st,
		emitter:       em,
		deliveryDelay: deliveryDelay,
		now:           time.Now,
	}
}

// Hydrate loads the persisted session set. Stored array order becomes
// insertion order.
func (r *Registry) Hydrate(ctx context.Context) error {
	sessions, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		if s == nil || s.ID == "" {
			continue
		}
		r.sessions[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	log.WithField("sessions", len(r.order)).Info("session registry hydrated")
	return nil
}

// Create opens a new session for a visitor. The name is required; the
// department falls back to the generic category.
func (r *Registry) Create(ctx context.Context, p CreateProfile) (*domain.ChatSession, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, domain.ErrEmptyVisitorName
	}
	department := strings.TrimSpace(p.Department)
	if department == "" {
		department = DefaultDepartment
	}

	now := r.now()
	session := &domain.ChatSession{
		ID:           uuid.New().String(),
		VisitorName:  name,
		VisitorEmail: strings.TrimSpace(p.Email),
		VisitorPhone: strings.TrimSpace(p.Phone),
		Department:   department,
		Status:       domain.StatusActive,
		Priority:     domain.PriorityMedium,
		Tags:         []string{},
		Messages:     []domain.ChatMessage{},
		LastActivity: now,
		CreatedAt:    now,
		PageURL:      p.PageURL,
		UserAgent:    p.UserAgent,
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.order = append(r.order, session.ID)
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.emitter.Emit(notify.ConsumerConsole, notify.Notification{
		SessionID: session.ID,
		Type:      notify.TypeSessionCreated,
		Message:   name + " started a conversation",
	})

	log.WithFields(log.Fields{
		"session_id": session.ID,
		"department": department,
	}).Info("session created")
	return session.Clone(), nil
}

// SendMessage appends to the session log. Closed and archived sessions
// reject new messages outright; there is no auto-reopen.
func (r *Registry) SendMessage(ctx context.Context, sessionID, text string, sender domain.Sender, attachments []domain.Attachment) (*domain.ChatMessage, error) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if session.Status.Terminal() {
		r.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}

	msg := domain.ChatMessage{
		ID:          uuid.New().String(),
		Sender:      sender,
		Text:        text,
		Attachments: attachments,
		Status:      domain.MessageSent,
		Timestamp:   r.now(),
	}
	session.Messages = append(session.Messages, msg)
	session.LastMessage = text
	session.LastActivity = msg.Timestamp
	if sender == domain.SenderUser {
		session.UnreadCount++
	}
	r.persistLocked(ctx)
	r.mu.Unlock()

	if r.deliveryDelay > 0 {
		time.AfterFunc(r.deliveryDelay, func() { r.markDelivered(sessionID, msg.ID) })
	} else {
		r.markDelivered(sessionID, msg.ID)
	}

	target := notify.ConsumerWidget
	if sender == domain.SenderUser {
		target = notify.ConsumerConsole
	}
	r.emitter.Emit(target, notify.Notification{
		SessionID: sessionID,
		Type:      notify.TypeNewMessage,
		Message:   text,
	})

	return &msg, nil
}

// markDelivered advances a message from sent to delivered. A message already
// read stays read.
func (r *Registry) markDelivered(sessionID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for i := range session.Messages {
		m := &session.Messages[i]
		if m.ID == messageID && m.Status.Before(domain.MessageDelivered) {
			m.Status = domain.MessageDelivered
			r.persistLocked(context.Background())
			return
		}
	}
}

// MarkAsRead marks all counterpart-authored messages read from the viewer's
// perspective. Unknown sessions are a deliberate no-op.
func (r *Registry) MarkAsRead(ctx context.Context, sessionID string, viewer domain.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	changed := false
	for i := range session.Messages {
		m := &session.Messages[i]
		if !counterpart(viewer, m.Sender) || !m.Status.Before(domain.MessageRead) {
			continue
		}
		m.Status = domain.MessageRead
		changed = true
	}
	if viewer == domain.SenderAdmin && session.UnreadCount != 0 {
		session.UnreadCount = 0
		changed = true
	}
	if changed {
		r.persistLocked(ctx)
	}
}

// counterpart reports whether a message from sender is addressed to viewer.
func counterpart(viewer, sender domain.Sender) bool {
	if viewer == domain.SenderAdmin {
		return sender == domain.SenderUser
	}
	return sender == domain.SenderAdmin || sender == domain.SenderSystem
}

// Assign sets the single assignee. Re-applying the same assignment is a
// no-op.
func (r *Registry) Assign(ctx context.Context, sessionID string, admin domain.AssignedTo) error {
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		if s.AssignedTo != nil && *s.AssignedTo == admin {
			return false
		}
		s.AssignedTo = &admin
		if s.Status == domain.StatusWaiting {
			s.Status = domain.StatusActive
		}
		return true
	})
}

func (r *Registry) SetPriority(ctx context.Context, sessionID string, p domain.Priority) error {
	if !p.Valid() {
		return domain.ErrInvalidPriority
	}
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		if s.Priority == p {
			return false
		}
		s.Priority = p
		return true
	})
}

// AddTag suppresses duplicates: the tag set never holds two occurrences.
func (r *Registry) AddTag(ctx context.Context, sessionID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		if s.HasTag(tag) {
			return false
		}
		s.Tags = append(s.Tags, tag)
		return true
	})
}

func (r *Registry) RemoveTag(ctx context.Context, sessionID, tag string) error {
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		for i, t := range s.Tags {
			if t == tag {
				s.Tags = append(s.Tags[:i], s.Tags[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (r *Registry) Close(ctx context.Context, sessionID string) error {
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		if s.Status.Terminal() {
			return false
		}
		s.Status = domain.StatusClosed
		return true
	})
}

func (r *Registry) Archive(ctx context.Context, sessionID string) error {
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		if s.Status.Terminal() {
			return false
		}
		s.Status = domain.StatusArchived
		return true
	})
}

// Rate records post-hoc visitor satisfaction. Allowed on closed sessions.
func (r *Registry) Rate(ctx context.Context, sessionID string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return domain.ErrInvalidRating
	}
	return r.update(ctx, sessionID, func(s *domain.ChatSession) bool {
		v := rating
		s.Rating = &v
		s.Feedback = feedback
		return true
	})
}

// update runs a mutation under the write lock and persists only when the
// mutation reports an actual change.
func (r *Registry) update(ctx context.Context, sessionID string, fn func(*domain.ChatSession) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if fn(session) {
		r.persistLocked(ctx)
	}
	return nil
}

func (r *Registry) Get(sessionID string) (*domain.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Sessions returns deep copies in insertion order, the raw input for the
// query layer.
func (r *Registry) Sessions() []*domain.ChatSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ChatSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].Clone())
	}
	return out
}

// persistLocked writes the full set through to the store. A failed save is
// logged and the in-memory state stands; the next mutation retries the full
// write anyway.
func (r *Registry) persistLocked(ctx context.Context) {
	snapshot := make([]*domain.ChatSession, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.sessions[id])
	}
	if err := r.store.Save(ctx, snapshot); err != nil {
		log.WithError(err).Error("session store write failed")
	}
}
