package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewBroadcaster(rdb)
}

func TestChannelForIsPerMovie(t *testing.T) {
	assert.Equal(t, "movie:progress:7", ChannelFor(7))
	assert.NotEqual(t, ChannelFor(1), ChannelFor(2))
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx := context.Background()

	events, cancel := b.Subscribe(ctx, 7)
	defer cancel()

	sent := Event{MovieID: 7, SceneID: 3, Stage: "video", Status: "completed", Percent: 33}
	// Subscription setup races with the first publish; retry until the
	// subscriber sees it. Delivery is best-effort by design.
	deadline := time.After(2 * time.Second)
	for {
		b.Publish(ctx, sent)
		select {
		case got := <-events:
			assert.Equal(t, sent, got)
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestSubscribeIsScopedToMovie(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx := context.Background()

	events, cancel := b.Subscribe(ctx, 1)
	defer cancel()

	// Give the subscription a moment to establish, then publish to a
	// different movie's channel only.
	time.Sleep(100 * time.Millisecond)
	b.Publish(ctx, Event{MovieID: 2, Stage: "video", Status: "completed"})

	select {
	case ev := <-events:
		t.Fatalf("received event for wrong movie: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	b := newTestBroadcaster(t)

	events, cancel := b.Subscribe(context.Background(), 7)
	cancel()

	select {
	case _, open := <-events:
		require.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
