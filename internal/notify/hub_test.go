package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestHubFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	first := hub.Subscribe(42)
	second := hub.Subscribe(42)
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)

	hub.Publish(ReceiptUploaded(42, 7))

	for _, sub := range []*Subscription{first, second} {
		var payload map[string]any
		require.NoError(t, json.Unmarshal(receive(t, sub), &payload))
		assert.Equal(t, "new_receipt_notification", payload["type"])
	}
}

func TestHubUserIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	mine := hub.Subscribe(1)
	theirs := hub.Subscribe(2)
	defer hub.Unsubscribe(mine)
	defer hub.Unsubscribe(theirs)

	hub.Publish(ReceiptUploaded(1, 9))

	receive(t, mine)
	select {
	case msg := <-theirs.C:
		t.Fatalf("user 2 received user 1's notification: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubShutdownUnblocksCallers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub(zap.NewNop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	sub := hub.Subscribe(1)
	cancel()
	<-stopped

	returned := make(chan *Subscription)
	go func() {
		// A connection tearing down after shutdown must not hang on its
		// deferred unsubscribe, and a late subscriber must get a closed
		// channel instead of blocking.
		hub.Unsubscribe(sub)
		returned <- hub.Subscribe(2)
	}()

	select {
	case late := <-returned:
		_, ok := <-late.C
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscribe/unsubscribe blocked after shutdown")
	}

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	sub := hub.Subscribe(5)
	hub.Unsubscribe(sub)

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}
