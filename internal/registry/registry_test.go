package registry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gendesk/internal/domain"
	"gendesk/internal/notify"
)

// memStore serializes like the real backends so hydrate tests exercise a
// true round trip.
type memStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *memStore) Load(ctx context.Context) ([]*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	var sessions []*domain.ChatSession
	if err := json.Unmarshal(m.data, &sessions); err != nil {
		return nil, nil
	}
	return sessions, nil
}

func (m *memStore) Save(ctx context.Context, sessions []*domain.ChatSession) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func newTestRegistry(deliveryDelay time.Duration) (*Registry, *memStore, *notify.Emitter) {
	st := &memStore{}
	em := notify.NewEmitter()
	return New(st, em, deliveryDelay), st, em
}

func TestCreateSession(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	session, err := reg.Create(context.Background(), CreateProfile{Name: "Ali", Department: "sales"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Ali", session.VisitorName)
	assert.Equal(t, "sales", session.Department)
	assert.Equal(t, domain.StatusActive, session.Status)
	assert.Equal(t, domain.PriorityMedium, session.Priority)
	assert.Empty(t, session.Messages)
	assert.False(t, session.CreatedAt.IsZero())
	assert.False(t, session.LastActivity.Before(session.CreatedAt))
}

func TestCreateSessionRequiresName(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	_, err := reg.Create(context.Background(), CreateProfile{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyVisitorName)
	assert.Empty(t, reg.Sessions())
}

func TestCreateSessionDefaultsDepartment(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	session, err := reg.Create(context.Background(), CreateProfile{Name: "Sara"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDepartment, session.Department)
}

func TestSendMessageHappyPath(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	msg, err := reg.SendMessage(ctx, session.ID, "Hello", domain.SenderUser, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	got, err := reg.Get(session.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Hello", got.Messages[0].Text)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, "Hello", got.LastMessage)
	assert.False(t, got.LastActivity.Before(got.CreatedAt))

	reg.MarkAsRead(ctx, session.ID, domain.SenderAdmin)
	got, err = reg.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)
	assert.Equal(t, domain.MessageRead, got.Messages[0].Status)
}

func TestSendMessageUnknownSession(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	_, err := reg.SendMessage(context.Background(), "nope", "hi", domain.SenderUser, nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClosedSessionRejectsMessages(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "before close", domain.SenderUser, nil)
	require.NoError(t, err)

	require.NoError(t, reg.Close(ctx, session.ID))

	_, err = reg.SendMessage(ctx, session.ID, "after close", domain.SenderUser, nil)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	got, err := reg.Get(session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, domain.StatusClosed, got.Status)
}

func TestArchivedSessionRejectsMessages(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	require.NoError(t, reg.Archive(ctx, session.ID))

	_, err = reg.SendMessage(ctx, session.ID, "hi", domain.SenderUser, nil)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestMarkAsReadUnknownSessionIsNoop(t *testing.T) {
	reg, st, _ := newTestRegistry(0)

	before := st.saveCount()
	reg.MarkAsRead(context.Background(), "nope", domain.SenderAdmin)
	assert.Equal(t, before, st.saveCount())
}

func TestUnreadMonotonicity(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	_, err = reg.SendMessage(ctx, session.ID, "one", domain.SenderUser, nil)
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "two", domain.SenderUser, nil)
	require.NoError(t, err)

	got, _ := reg.Get(session.ID)
	assert.Equal(t, 2, got.UnreadCount)

	reg.MarkAsRead(ctx, session.ID, domain.SenderAdmin)
	got, _ = reg.Get(session.ID)
	assert.Equal(t, 0, got.UnreadCount)

	// Counter stays at zero until the next counterpart append.
	_, err = reg.SendMessage(ctx, session.ID, "reply", domain.SenderAdmin, nil)
	require.NoError(t, err)
	got, _ = reg.Get(session.ID)
	assert.Equal(t, 0, got.UnreadCount)

	_, err = reg.SendMessage(ctx, session.ID, "three", domain.SenderUser, nil)
	require.NoError(t, err)
	got, _ = reg.Get(session.ID)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestWidgetMarkAsReadCoversAdminAndSystem(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "welcome", domain.SenderSystem, nil)
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "hello", domain.SenderAdmin, nil)
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "hi", domain.SenderUser, nil)
	require.NoError(t, err)

	reg.MarkAsRead(ctx, session.ID, domain.SenderUser)

	got, _ := reg.Get(session.ID)
	assert.Equal(t, domain.MessageRead, got.Messages[0].Status)
	assert.Equal(t, domain.MessageRead, got.Messages[1].Status)
	// The visitor's own message is untouched and still counts as unread for
	// the console.
	assert.NotEqual(t, domain.MessageRead, got.Messages[2].Status)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestTagIdempotent(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	require.NoError(t, reg.AddTag(ctx, session.ID, "vip"))
	require.NoError(t, reg.AddTag(ctx, session.ID, "vip"))

	got, _ := reg.Get(session.ID)
	assert.Equal(t, []string{"vip"}, got.Tags)

	require.NoError(t, reg.RemoveTag(ctx, session.ID, "vip"))
	require.NoError(t, reg.RemoveTag(ctx, session.ID, "vip"))
	got, _ = reg.Get(session.ID)
	assert.Empty(t, got.Tags)
}

func TestAssignIdempotent(t *testing.T) {
	reg, st, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	admin := domain.AssignedTo{ID: "a1", Name: "Reza"}
	require.NoError(t, reg.Assign(ctx, session.ID, admin))
	saves := st.saveCount()
	require.NoError(t, reg.Assign(ctx, session.ID, admin))
	assert.Equal(t, saves, st.saveCount(), "re-applying the same assignment should not write")

	got, _ := reg.Get(session.ID)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "a1", got.AssignedTo.ID)
}

func TestSetPriority(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	require.NoError(t, reg.SetPriority(ctx, session.ID, domain.PriorityUrgent))
	got, _ := reg.Get(session.ID)
	assert.Equal(t, domain.PriorityUrgent, got.Priority)

	assert.ErrorIs(t, reg.SetPriority(ctx, session.ID, "extreme"), domain.ErrInvalidPriority)
	assert.ErrorIs(t, reg.SetPriority(ctx, "nope", domain.PriorityLow), domain.ErrSessionNotFound)
}

func TestCloseIdempotent(t *testing.T) {
	reg, st, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	require.NoError(t, reg.Close(ctx, session.ID))
	saves := st.saveCount()
	require.NoError(t, reg.Close(ctx, session.ID))
	assert.Equal(t, saves, st.saveCount())

	assert.ErrorIs(t, reg.Close(ctx, "nope"), domain.ErrSessionNotFound)
}

func TestRate(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	require.NoError(t, reg.Close(ctx, session.ID))

	assert.ErrorIs(t, reg.Rate(ctx, session.ID, 0, ""), domain.ErrInvalidRating)
	assert.ErrorIs(t, reg.Rate(ctx, session.ID, 6, ""), domain.ErrInvalidRating)

	require.NoError(t, reg.Rate(ctx, session.ID, 5, "great help"))
	got, _ := reg.Get(session.ID)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 5, *got.Rating)
	assert.Equal(t, "great help", got.Feedback)
}

func TestMessageDeliveryTransition(t *testing.T) {
	reg, _, _ := newTestRegistry(20 * time.Millisecond)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	msg, err := reg.SendMessage(ctx, session.ID, "hi", domain.SenderUser, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSent, msg.Status)

	require.Eventually(t, func() bool {
		got, err := reg.Get(session.ID)
		return err == nil && got.Messages[0].Status == domain.MessageDelivered
	}, time.Second, 5*time.Millisecond)
}

func TestMessageStatusNeverRegresses(t *testing.T) {
	reg, _, _ := newTestRegistry(50 * time.Millisecond)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "hi", domain.SenderUser, nil)
	require.NoError(t, err)

	// Read before the delivery timer fires; the late timer must not move
	// the message back to delivered.
	reg.MarkAsRead(ctx, session.ID, domain.SenderAdmin)
	got, _ := reg.Get(session.ID)
	require.Equal(t, domain.MessageRead, got.Messages[0].Status)

	time.Sleep(120 * time.Millisecond)
	got, _ = reg.Get(session.ID)
	assert.Equal(t, domain.MessageRead, got.Messages[0].Status)
}

func TestMessageLogIsAppendOnly(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	seen := []string{}
	for _, text := range []string{"one", "two", "three"} {
		_, err := reg.SendMessage(ctx, session.ID, text, domain.SenderUser, nil)
		require.NoError(t, err)

		got, _ := reg.Get(session.ID)
		var ids []string
		for _, m := range got.Messages {
			ids = append(ids, m.ID)
		}
		// Each read is a strict prefix-extension of the previous one.
		require.Len(t, ids, len(seen)+1)
		assert.Equal(t, seen, ids[:len(seen)])
		seen = ids
	}
}

func TestHydrateRestoresSessions(t *testing.T) {
	st := &memStore{}
	em := notify.NewEmitter()
	ctx := context.Background()

	reg := New(st, em, 0)
	first, err := reg.Create(ctx, CreateProfile{Name: "Ali", Department: "sales"})
	require.NoError(t, err)
	second, err := reg.Create(ctx, CreateProfile{Name: "Sara"})
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, first.ID, "Hello", domain.SenderUser, nil)
	require.NoError(t, err)
	require.NoError(t, reg.AddTag(ctx, first.ID, "vip"))

	restored := New(st, em, 0)
	require.NoError(t, restored.Hydrate(ctx))

	sessions := restored.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)
	assert.Equal(t, []string{"vip"}, sessions[0].Tags)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, "Hello", sessions[0].Messages[0].Text)
	assert.Equal(t, 1, sessions[0].UnreadCount)
}

func TestSessionNotifications(t *testing.T) {
	reg, _, em := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)

	pending := em.Pending(notify.ConsumerConsole)
	require.Len(t, pending, 1)
	assert.Equal(t, notify.TypeSessionCreated, pending[0].Type)

	_, err = reg.SendMessage(ctx, session.ID, "need a quote", domain.SenderUser, nil)
	require.NoError(t, err)
	pending = em.Pending(notify.ConsumerConsole)
	require.Len(t, pending, 2)
	assert.Equal(t, notify.TypeNewMessage, pending[1].Type)
	assert.Equal(t, session.ID, pending[1].SessionID)

	// Admin replies notify the widget side, not the console.
	_, err = reg.SendMessage(ctx, session.ID, "sure", domain.SenderAdmin, nil)
	require.NoError(t, err)
	assert.Len(t, em.Pending(notify.ConsumerConsole), 2)
	require.Len(t, em.Pending(notify.ConsumerWidget), 1)
}

func TestGetReturnsDeepCopy(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	ctx := context.Background()

	session, err := reg.Create(ctx, CreateProfile{Name: "Ali"})
	require.NoError(t, err)
	_, err = reg.SendMessage(ctx, session.ID, "hi", domain.SenderUser, nil)
	require.NoError(t, err)

	got, _ := reg.Get(session.ID)
	got.Messages[0].Text = "tampered"
	got.Tags = append(got.Tags, "tampered")

	fresh, _ := reg.Get(session.ID)
	assert.Equal(t, "hi", fresh.Messages[0].Text)
	assert.Empty(t, fresh.Tags)
}
