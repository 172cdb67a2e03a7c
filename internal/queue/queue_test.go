package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	msg, err := decode(`{"id":"j1","type":"audit.entry","body":{"details":"a|b"},"attempt":1}`)
	require.NoError(t, err)
	assert.Equal(t, "j1", msg.ID)
	assert.Equal(t, "audit.entry", msg.Type)
	assert.JSONEq(t, `{"details":"a|b"}`, string(msg.Body))
	assert.Equal(t, 1, msg.Attempt)

	_, err = decode("audit.entry|{}")
	assert.Error(t, err)
	_, err = decode(`{"body":{}}`)
	assert.Error(t, err)
}

func TestPublishJSONStampsEnvelope(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	require.NoError(t, PublishJSON(ctx, q, "audit.entry", map[string]string{"action": "CHECK_IN"}))

	msg := <-q.ch
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "audit.entry", msg.Type)
	assert.JSONEq(t, `{"action":"CHECK_IN"}`, string(msg.Body))
	assert.Zero(t, msg.Attempt)
	assert.False(t, msg.EnqueuedAt.IsZero())

	assert.Error(t, PublishJSON(ctx, q, "bad", make(chan int)))
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	q := NewInMemory(4)
	ctx := context.Background()
	msg := Message{ID: "j1", Type: "t"}

	ok, err := Retry(ctx, q, msg, 3)
	require.NoError(t, err)
	require.True(t, ok)
	again := <-q.ch
	assert.Equal(t, 1, again.Attempt)

	ok, err = Retry(ctx, q, again, 3)
	require.NoError(t, err)
	require.True(t, ok)
	last := <-q.ch
	assert.Equal(t, 2, last.Attempt)

	ok, err = Retry(ctx, q, last, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, q.ch)
}

func TestInMemoryDelivers(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "a"}))
	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "a", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	for range ch {
	}
}
