package hub

import (
	"context"
	"testing"
	"time"
)

func TestClientChurnAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	<-h.done

	// A read pump may unregister after the hub loop has already exited; the
	// defer must return instead of blocking on a channel nobody drains.
	finished := make(chan struct{})
	go func() {
		h.UnregisterClient(&Client{Role: RoleWidget, SessionID: "s1"})
		h.RegisterClient(&Client{Role: RoleConsole, AdminID: "a1"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("client churn blocked after hub shutdown")
	}
}
