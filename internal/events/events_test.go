package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryFanOut(t *testing.T) {
	b := NewInMemory(nil, 4)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	require.NoError(t, b.Publish(context.Background(), New(SessionStarted, "s1", nil)))

	assert.Equal(t, SessionStarted, (<-a).Type)
	assert.Equal(t, "s1", (<-c).SubjectID)
}

func TestInMemoryDropsForSlowSubscriber(t *testing.T) {
	b := NewInMemory(nil, 1)
	ch, cancel := b.Subscribe()
	defer cancel()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, New(SessionCheckedIn, "1", nil)))
	require.NoError(t, b.Publish(ctx, New(SessionCheckedIn, "2", nil)))

	assert.Equal(t, "1", (<-ch).SubjectID)
	assert.Len(t, ch, 0)
}

func TestInMemoryCancelClosesChannel(t *testing.T) {
	b := NewInMemory(nil, 1)
	ch, cancel := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())
}

func TestInMemoryClosed(t *testing.T) {
	b := NewInMemory(nil, 1)
	ch, _ := b.Subscribe()
	require.NoError(t, b.Close())

	_, open := <-ch
	assert.False(t, open)
	assert.ErrorIs(t, b.Publish(context.Background(), New(SessionSkipped, "x", nil)), ErrClosed)
}
