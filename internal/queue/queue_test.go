package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Message{Type: "scan", Body: []byte(`{"studentId":"FEST-1-001"}`)}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-msgs:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPreservesOrder(t *testing.T) {
	q := NewInMemory(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(ctx, Message{Type: "scan", Body: []byte(id)}))
	}

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		select {
		case got := <-msgs:
			assert.Equal(t, id, string(got.Body))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Message{Type: "scan"}))
	cancel()
	// Feed is full and nobody consumes; a cancelled context must unblock.
	err := q.Publish(ctx, Message{Type: "scan"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel should close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consume channel did not close")
	}
}
