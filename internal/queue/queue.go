// Package queue carries background jobs from the api to whoever consumes them:
// the worker over Redis, or the api itself when everything runs in memory.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"halaqa/internal/store"
)

// Message is one job. Body is the JSON payload of the job type.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Body       json.RawMessage `json:"body"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// PublishJSON encodes v and enqueues it as a message of type typ.
func PublishJSON(ctx context.Context, q Queue, typ string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", typ, err)
	}
	return q.Publish(ctx, Message{
		ID:         uuid.NewString(),
		Type:       typ,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	})
}

// Retry puts msg back with its attempt counter raised. It reports false once
// maxAttempts deliveries have been used up.
func Retry(ctx context.Context, q Queue, msg Message, maxAttempts int) (bool, error) {
	if msg.Attempt+1 >= maxAttempts {
		return false, nil
	}
	msg.Attempt++
	if err := q.Publish(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

// InMemory is a bounded channel queue used when the api consumes its own jobs.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish blocks while the buffer is full.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that closes when ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue keeps JSON envelopes in a Redis list. Entries that cannot be
// decoded are moved to the dead-letter list.
type RedisQueue struct {
	client *redis.Client
	key    string
	dead   string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = store.Key("jobs")
	}
	return &RedisQueue{client: client, key: key, dead: key + ":dead"}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode job envelope: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			msg, err := decode(res[1])
			if err != nil {
				_ = q.client.LPush(ctx, q.dead, res[1]).Err()
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decode(raw string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("decode job envelope: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("job envelope without type")
	}
	return msg, nil
}
