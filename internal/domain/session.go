package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a support conversation.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusWaiting  SessionStatus = "waiting"
	StatusClosed   SessionStatus = "closed"
	StatusArchived SessionStatus = "archived"
)

// Terminal reports whether the session no longer accepts new messages.
func (s SessionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusArchived
}

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusWaiting, StatusClosed, StatusArchived:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank maps a priority to its sort weight. Higher sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

type Sender string

const (
	SenderUser   Sender = "user"
	SenderAdmin  Sender = "admin"
	SenderSystem Sender = "system"
)

// MessageStatus advances sent -> delivered -> read and never regresses.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

// Before reports whether s is an earlier delivery stage than other.
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.rank() < other.rank()
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type ChatMessage struct {
	ID          string        `json:"id"`
	Sender      Sender        `json:"sender"`
	Text        string        `json:"text"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Status      MessageStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
}

// AssignedTo identifies the single admin handling a session.
type AssignedTo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChatSession struct {
	ID           string        `json:"id"`
	VisitorName  string        `json:"visitorName"`
	VisitorEmail string        `json:"visitorEmail,omitempty"`
	VisitorPhone string        `json:"visitorPhone,omitempty"`
	Department   string        `json:"department"`
	Status       SessionStatus `json:"status"`
	Priority     Priority      `json:"priority"`
	Tags         []string      `json:"tags"`
	AssignedTo   *AssignedTo   `json:"assignedTo,omitempty"`
	Messages     []ChatMessage `json:"messages"`

	// UnreadCount is the console-side counter: visitor messages not yet
	// marked read by an admin.
	UnreadCount int `json:"unreadCount"`

	// Denormalized for list rendering; refreshed on every append.
	LastMessage  string    `json:"lastMessage"`
	LastActivity time.Time `json:"lastActivity"`

	CreatedAt time.Time `json:"createdAt"`

	// Informational only, captured at intake.
	PageURL   string `json:"pageUrl,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	Rating   *int   `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// HasTag reports whether the tag is already present.
func (s *ChatSession) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers outside the registry lock.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m
		if m.Attachments != nil {
			c.Messages[i].Attachments = append([]Attachment(nil), m.Attachments...)
		}
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	if s.AssignedTo != nil {
		a := *s.AssignedTo
		c.AssignedTo = &a
	}
	if s.Rating != nil {
		r := *s.Rating
		c.Rating = &r
	}
	return &c
}
