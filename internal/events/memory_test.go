package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFansOutToEverySubscriber(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	a, cancelA, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer cancelA()
	bb, cancelB, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer cancelB()
	other, cancelOther, err := b.Subscribe(ctx, "user-2")
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, b.Publish(ctx, "user-1", Event{Type: TypeDownloadsInvalidated, JobID: "job-1"}))

	for _, ch := range []<-chan Event{a, bb} {
		select {
		case ev := <-ch:
			assert.Equal(t, "job-1", ev.JobID)
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other user: %+v", ev)
	default:
	}
}

func TestMemoryCancelClosesChannel(t *testing.T) {
	b := NewMemory()
	ch, cancel, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, b.Publish(context.Background(), "user-1", Event{Type: TypeJobUpdated}))
}

func TestMemoryDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewMemory()
	ch, cancel, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(context.Background(), "user-1", Event{Type: TypeJobUpdated}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestChannelForHidesUserID(t *testing.T) {
	ch := ChannelFor("user-42")
	assert.NotContains(t, ch, "user-42")
	assert.Equal(t, ch, ChannelFor("user-42"))
}
