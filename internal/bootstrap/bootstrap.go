// Package bootstrap opens the storage, queue and event backends chosen by
// configuration. The api and the worker share it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"halaqa/internal/audit"
	"halaqa/internal/config"
	"halaqa/internal/events"
	"halaqa/internal/hadith"
	"halaqa/internal/queue"
	"halaqa/internal/roster"
	"halaqa/internal/session"
	"halaqa/internal/store"
)

const memory = "memory"

// Backends are the opened stores and transports.
type Backends struct {
	DB    *store.DB    // nil for the memory store
	Redis *store.Redis // nil when nothing uses redis

	Roster   roster.Repository
	Sessions session.Store
	Hadith   hadith.Store
	Audit    audit.Store
	Queue    queue.Queue
	Events   events.Bus
	Locker   store.Locker

	// InProcessAudit is set when audit jobs never leave this process, so the
	// api has to consume them itself.
	InProcessAudit bool
}

// Open connects every backend and migrates the schema.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*Backends, error) {
	b := &Backends{}
	if cfg.QueueBackend != memory || cfg.EventsBackend != memory {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		if !b.Redis.Healthy(ctx) {
			log.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.StoreBackend == memory {
		repo := roster.NewMemory()
		b.Roster = repo
		b.Sessions = session.NewMemory(repo)
		b.Hadith = hadith.NewMemory()
		b.Audit = audit.NewMemory()
		log.Warn("using in-memory store; data is lost on restart")
	} else {
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			_ = db.Close()
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.DB = db
		if err := db.Migrate(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Roster = roster.NewPostgres(db.Client)
		b.Sessions = session.NewPostgres(db.Client)
		b.Hadith = hadith.NewPostgres(db.Client)
		b.Audit = audit.NewPostgres(db.Client)
	}

	if cfg.QueueBackend == memory {
		b.Queue = queue.NewInMemory(256)
		b.InProcessAudit = true
	} else {
		b.Queue = queue.NewRedisQueue(b.Redis.Client, "")
	}

	if cfg.EventsBackend == memory {
		b.Events = events.NewInMemory(log, 64)
		b.Locker = store.NewLocalLocker()
	} else {
		bus, err := events.NewRedis(ctx, b.Redis.Client, "", log)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("subscribe events: %w", err)
		}
		b.Events = bus
		b.Locker = store.NewRedisLocker(b.Redis.Client, "")
	}
	return b, nil
}

// Checks returns the health probes of the opened backends.
func (b *Backends) Checks() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{}
	if b.DB != nil {
		checks["db"] = b.DB.Healthy
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Healthy
	}
	return checks
}

// Close releases every backend.
func (b *Backends) Close() {
	if b.Events != nil {
		_ = b.Events.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		_ = b.DB.Close()
	}
}
