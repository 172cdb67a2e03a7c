package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key and channel the service writes to Redis.
const KeyPrefix = "halaqa:"

// Key joins parts under KeyPrefix, e.g. Key("lock", "hadith") is "halaqa:lock:hadith".
func Key(parts ...string) string {
	return KeyPrefix + strings.Join(parts, ":")
}

// Redis is the shared client behind the job queue, the event channel, the
// hadith lock and the rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis dials lazily. Blocking pops get their own deadline from go-redis,
// so the short read timeout only bounds ordinary commands.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	return &Redis{Client: client}
}

// Healthy reports whether a PING round-trips. Used by /healthz and at startup.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close is safe on a nil or never-opened Redis.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
