package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "hadith", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "hadith", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.Acquire(ctx, "other", time.Minute)
	assert.True(t, ok)

	release()
	_, ok, _ = l.Acquire(ctx, "hadith", time.Minute)
	assert.True(t, ok)
}

func TestLocalLockerExpiry(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	stale, ok, _ := l.Acquire(ctx, "k", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)

	// releasing an expired lease must not drop the new holder
	stale()
	_, ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)
}
