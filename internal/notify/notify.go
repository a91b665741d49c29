// Package notify fans out ephemeral chat events to the widget and the
// console. Read state is tracked per consumer: the widget seeing an event
// does not mark it seen for the console.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Consumer is a viewing context subscribed to events.
type Consumer string

const (
	ConsumerWidget  Consumer = "widget"
	ConsumerConsole Consumer = "console"
)

const (
	TypeNewMessage     = "new_message"
	TypeSessionCreated = "session_created"
)

type Notification struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives a copy of every emitted notification, e.g. a Kafka topic.
type Sink interface {
	Publish(target Consumer, n Notification) error
}

type Emitter struct {
	mu    sync.RWMutex
	feed  map[Consumer][]Notification
	seen  map[Consumer]map[string]bool
	subs  map[Consumer][]chan Notification
	sinks []Sink
}

func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{
		feed:  map[Consumer][]Notification{},
		seen:  map[Consumer]map[string]bool{},
		subs:  map[Consumer][]chan Notification{},
		sinks: sinks,
	}
}

// Emit records a notification for the target consumer and pushes it to live
// subscribers. Delivery is best-effort: a full subscriber channel is skipped,
// the event stays visible via Pending.
func (e *Emitter) Emit(target Consumer, n Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	// The non-blocking sends stay under the lock: Unsubscribe closes channels
	// under the same lock, so a send can never hit a just-closed channel.
	e.mu.Lock()
	e.feed[target] = append(e.feed[target], n)
	for _, ch := range e.subs[target] {
		select {
		case ch <- n:
		default:
			log.WithField("session_id", n.SessionID).
				Warn("notification subscriber is not draining, event dropped from channel")
		}
	}
	sinks := e.sinks
	e.mu.Unlock()

	for _, s := range sinks {
		if err := s.Publish(target, n); err != nil {
			log.WithError(err).Warn("notification sink publish failed")
		}
	}
}

// Subscribe returns a buffered channel of future events for the consumer.
func (e *Emitter) Subscribe(c Consumer) chan Notification {
	ch := make(chan Notification, 16)
	e.mu.Lock()
	e.subs[c] = append(e.subs[c], ch)
	e.mu.Unlock()
	return ch
}

func (e *Emitter) Unsubscribe(c Consumer, ch chan Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.subs[c]
	for i, sub := range list {
		if sub == ch {
			e.subs[c] = append(list[:i], list[i+1:]...)
			close(ch)
			return
		}
	}
}

// Pending lists events the consumer has not marked seen yet, oldest first.
func (e *Emitter) Pending(c Consumer) []Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Notification
	for _, n := range e.feed[c] {
		if !e.seen[c][n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// MarkSeen flags events as seen for one consumer only.
func (e *Emitter) MarkSeen(c Consumer, ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[c] == nil {
		e.seen[c] = map[string]bool{}
	}
	for _, id := range ids {
		e.seen[c][id] = true
	}
}
