// Package events is the server-owned change stream. Queue transitions and hadith
// assignments are published here and fanned out to every connected client.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	SessionCheckedIn = "session.checked_in"
	SessionStarted   = "session.started"
	SessionCompleted = "session.completed"
	SessionSkipped   = "session.skipped"
	SessionAbsent    = "session.absent"
	StudentUpdated   = "student.updated"
	HadithAssigned   = "hadith.assigned"
	HadithUpdated    = "hadith.updated"
)

// Event is one change notification.
type Event struct {
	Type       string    `json:"type"`
	SubjectID  string    `json:"subject_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(typ, subjectID string, data any) Event {
	return Event{Type: typ, SubjectID: subjectID, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher is what producers depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus is a Publisher that clients can also subscribe to.
type Bus interface {
	Publisher
	// Subscribe returns a channel of events and a cancel func that closes it.
	Subscribe() (<-chan Event, func())
	Close() error
}

// InMemory fans events out to local subscribers. Slow subscribers lose events
// rather than block producers.
type InMemory struct {
	log    *zap.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
}

// NewInMemory creates a broker whose subscriber channels hold buffer events.
func NewInMemory(log *zap.Logger, buffer int) *InMemory {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemory{log: log, buffer: buffer, subs: make(map[int]chan Event)}
}

// Publish delivers e to every subscriber without blocking.
func (b *InMemory) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.Warn("dropping event for slow subscriber", zap.Int("subscriber", id), zap.String("type", e.Type))
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (b *InMemory) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscribers.
func (b *InMemory) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel.
func (b *InMemory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
