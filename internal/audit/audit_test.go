package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"halaqa/internal/queue"
)

func TestRecordThroughQueue(t *testing.T) {
	q := queue.NewInMemory(8)
	st := NewMemory()
	rec := NewRecorder(q, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Consume(ctx, q, st, zap.NewNop()) }()

	rec.Record(ctx, ActionCheckIn, "student-1", "checked in")
	rec.Record(ctx, ActionApprove, "sheikh", "approved student-1")

	require.Eventually(t, func() bool {
		list, _ := st.List(context.Background(), 0)
		return len(list) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestHandleIsIdempotent(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	msg := queue.Message{Type: JobType, Body: []byte(`{"id":"a1","action":"ABSENT","details":"x","performed_by":"s"}`)}

	require.NoError(t, Handle(ctx, st, msg))
	require.NoError(t, Handle(ctx, st, msg))

	list, err := st.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ActionAbsent, list[0].Action)
	assert.False(t, list[0].OccurredAt.IsZero())
}

func TestHandleRejectsForeignJobs(t *testing.T) {
	assert.Error(t, Handle(context.Background(), NewMemory(), queue.Message{Type: "other"}))
	assert.Error(t, Handle(context.Background(), NewMemory(), queue.Message{Type: JobType, Body: []byte("{")}))
}

func TestMemoryListNewestFirstWithLimit(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Insert(ctx, Entry{ID: id, OccurredAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	list, err := st.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

type failingStore struct{ Store }

func (failingStore) Insert(context.Context, Entry) error { return assert.AnError }

func TestCountedOnlyCountsWrites(t *testing.T) {
	n := 0
	ctx := context.Background()
	st := Counted(NewMemory(), func() { n++ })
	require.NoError(t, st.Insert(ctx, Entry{ID: "a"}))
	require.NoError(t, st.Insert(ctx, Entry{ID: "b"}))
	assert.Equal(t, 2, n)

	bad := Counted(failingStore{}, func() { n++ })
	assert.Error(t, bad.Insert(ctx, Entry{ID: "c"}))
	assert.Equal(t, 2, n)
}

type flakyStore struct {
	*Memory
	failures int
}

func (s *flakyStore) Insert(ctx context.Context, e Entry) error {
	if s.failures > 0 {
		s.failures--
		return assert.AnError
	}
	return s.Memory.Insert(ctx, e)
}

func TestConsumeRetriesFailedWrites(t *testing.T) {
	q := queue.NewInMemory(8)
	st := &flakyStore{Memory: NewMemory(), failures: MaxAttempts - 1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Consume(ctx, q, st, zap.NewNop()) }()

	NewRecorder(q, nil).Record(ctx, ActionAbsent, "sheikh", "ahmad marked absent")

	require.Eventually(t, func() bool {
		list, _ := st.List(context.Background(), 0)
		return len(list) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
