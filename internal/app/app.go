// Package app is the facade the HTTP handlers call. It orchestrates the roster,
// the recitation queue and the hadith scheduler, validates input, records the
// audit trail and keeps the domain metrics current.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/audit"
	"halaqa/internal/auth"
	"halaqa/internal/avatar"
	"halaqa/internal/hadith"
	"halaqa/internal/metrics"
	"halaqa/internal/roster"
	"halaqa/internal/session"
)

// Deps are the collaborators of the facade. Avatars may be nil.
type Deps struct {
	Roster   *roster.Service
	Queue    *session.Engine
	Hadith   *hadith.Scheduler
	Auth     *auth.Provider
	Tokens   auth.Issuer
	Audit    *audit.Recorder
	AuditLog audit.Store
	Avatars  avatar.Uploader
	Metrics  *metrics.Metrics
	Location *time.Location
	Log      *zap.Logger
}

// Facade is the single entry point for client operations.
type Facade struct {
	roster   *roster.Service
	queue    *session.Engine
	hadith   *hadith.Scheduler
	auth     *auth.Provider
	tokens   auth.Issuer
	audit    *audit.Recorder
	auditLog audit.Store
	avatars  avatar.Uploader
	metrics  *metrics.Metrics
	loc      *time.Location
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// New builds the facade.
func New(d Deps) *Facade {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Facade{
		roster:   d.Roster,
		queue:    d.Queue,
		hadith:   d.Hadith,
		auth:     d.Auth,
		tokens:   d.Tokens,
		audit:    d.Audit,
		auditLog: d.AuditLog,
		avatars:  d.Avatars,
		metrics:  d.Metrics,
		loc:      d.Location,
		log:      d.Log,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (f *Facade) check(op string, v any) error {
	err := f.validate.Struct(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.InvalidInput(op, "invalid input")
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return apperr.InvalidInput(op, "invalid input: "+strings.Join(parts, ", "))
}

func (f *Facade) record(ctx context.Context, action audit.Action, actor, details string) {
	if f.audit == nil {
		return
	}
	f.audit.Record(ctx, action, actor, details)
}

// refreshQueueLength keeps the open-sessions gauge in line with the store.
func (f *Facade) refreshQueueLength(ctx context.Context) {
	q, err := f.queue.Queue(ctx)
	if err != nil {
		f.log.Warn("queue length", zap.Error(err))
		return
	}
	f.metrics.QueueLength.Set(float64(len(q)))
}
