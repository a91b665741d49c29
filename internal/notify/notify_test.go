package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitAssignsIDAndTimestamp(t *testing.T) {
	em := NewEmitter()

	em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage, Message: "hi"})

	pending := em.Pending(ConsumerConsole)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)
	assert.False(t, pending[0].Timestamp.IsZero())
}

func TestReadStateIsScopedPerConsumer(t *testing.T) {
	em := NewEmitter()

	em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage})
	em.Emit(ConsumerWidget, Notification{SessionID: "s1", Type: TypeNewMessage})

	consolePending := em.Pending(ConsumerConsole)
	require.Len(t, consolePending, 1)
	require.Len(t, em.Pending(ConsumerWidget), 1)

	// The console marking its event seen must not touch the widget's view.
	em.MarkSeen(ConsumerConsole, consolePending[0].ID)
	assert.Empty(t, em.Pending(ConsumerConsole))
	assert.Len(t, em.Pending(ConsumerWidget), 1)
}

func TestEventsAreTargeted(t *testing.T) {
	em := NewEmitter()

	em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeSessionCreated})

	assert.Len(t, em.Pending(ConsumerConsole), 1)
	assert.Empty(t, em.Pending(ConsumerWidget))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	em := NewEmitter()
	ch := em.Subscribe(ConsumerConsole)
	defer em.Unsubscribe(ConsumerConsole, ch)

	em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage, Message: "hello"})

	select {
	case n := <-ch:
		assert.Equal(t, "s1", n.SessionID)
		assert.Equal(t, "hello", n.Message)
	default:
		t.Fatal("expected a notification on the channel")
	}
}

func TestFullSubscriberDoesNotBlockEmit(t *testing.T) {
	em := NewEmitter()
	ch := em.Subscribe(ConsumerConsole)
	defer em.Unsubscribe(ConsumerConsole, ch)

	// Overflow the channel buffer; Emit must keep returning.
	for i := 0; i < 40; i++ {
		em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage})
	}

	// Everything is still visible through the pending list.
	assert.Len(t, em.Pending(ConsumerConsole), 40)
}

func TestUnsubscribeDuringConcurrentEmitIsSafe(t *testing.T) {
	em := NewEmitter()

	// Emitters keep firing while subscribers come and go; a send must never
	// land on a channel Unsubscribe already closed.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage})
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		ch := em.Subscribe(ConsumerConsole)
		go func() {
			for range ch {
			}
		}()
		em.Unsubscribe(ConsumerConsole, ch)
	}
	close(stop)
	wg.Wait()
}

type recordingSink struct {
	targets []Consumer
	events  []Notification
}

func (r *recordingSink) Publish(target Consumer, n Notification) error {
	r.targets = append(r.targets, target)
	r.events = append(r.events, n)
	return nil
}

func TestSinksReceiveEveryEvent(t *testing.T) {
	sink := &recordingSink{}
	em := NewEmitter(sink)

	em.Emit(ConsumerConsole, Notification{SessionID: "s1", Type: TypeNewMessage})
	em.Emit(ConsumerWidget, Notification{SessionID: "s1", Type: TypeNewMessage})

	require.Len(t, sink.events, 2)
	assert.Equal(t, []Consumer{ConsumerConsole, ConsumerWidget}, sink.targets)
}
