package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"halaqa/internal/store"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("event bus closed")

type envelope struct {
	InstanceID string `json:"instance_id"`
	Event      Event  `json:"event"`
}

// Redis shares events between API instances over a pub/sub channel. Local
// subscribers are served by an embedded InMemory broker.
type Redis struct {
	client     *redis.Client
	channel    string
	instanceID string
	local      *InMemory
	log        *zap.Logger

	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis subscribes to channel and starts relaying remote events locally.
func NewRedis(ctx context.Context, client *redis.Client, channel string, log *zap.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		channel = store.Key("events")
	}
	if log == nil {
		log = zap.NewNop()
	}
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	b := &Redis{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		local:      NewInMemory(log, 0),
		log:        log,
		pubsub:     ps,
		cancel:     cancel,
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.loop(loopCtx)
	}()
	return b, nil
}

// Publish sends e to the other instances and delivers it locally.
func (b *Redis) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Event: e})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.log.Error("redis publish failed", zap.Error(err), zap.String("type", e.Type))
	}
	return b.local.Publish(ctx, e)
}

func (b *Redis) Subscribe() (<-chan Event, func()) {
	return b.local.Subscribe()
}

func (b *Redis) loop(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("bad event payload", zap.Error(err))
				continue
			}
			if env.InstanceID == b.instanceID {
				continue
			}
			if err := b.local.Publish(ctx, env.Event); err != nil {
				return
			}
		}
	}
}

// Close stops the relay and closes local subscribers.
func (b *Redis) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	_ = b.local.Close()
	return err
}
