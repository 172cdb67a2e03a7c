// Package audit records who did what. Entries travel through the job queue and
// are written by the worker, so request paths never wait on the audit table.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"halaqa/internal/queue"
)

// Action names an audited operation.
type Action string

const (
	ActionCheckIn         Action = "CHECK_IN"
	ActionSessionStart    Action = "SESSION_START"
	ActionSessionComplete Action = "SESSION_COMPLETE"
	ActionSessionSkip     Action = "SESSION_SKIP"
	ActionAbsent          Action = "ABSENT"
	ActionRegister        Action = "REGISTER"
	ActionApprove         Action = "APPROVE"
	ActionScheduleAssign  Action = "SCHEDULE_ASSIGN"
)

// JobType tags audit messages on the queue.
const JobType = "audit.entry"

// MaxAttempts bounds deliveries of an entry the store keeps rejecting.
const MaxAttempts = 3

// Entry is one audit log row.
type Entry struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	Details     string    `json:"details"`
	PerformedBy string    `json:"performed_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Store persists entries. Insert ignores ids it has already seen.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder enqueues audit entries.
type Recorder struct {
	q   queue.Queue
	log *zap.Logger
}

// NewRecorder builds a recorder publishing to q.
func NewRecorder(q queue.Queue, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{q: q, log: log}
}

// Record enqueues an entry. Failures are logged, never returned: the audited
// operation has already happened.
func (r *Recorder) Record(ctx context.Context, action Action, performedBy, details string) {
	e := Entry{
		ID:          uuid.NewString(),
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
		OccurredAt:  time.Now().UTC(),
	}
	if err := queue.PublishJSON(ctx, r.q, JobType, e); err != nil {
		r.log.Error("enqueue audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}

// Handle decodes an audit job and stores it.
func Handle(ctx context.Context, st Store, msg queue.Message) error {
	if msg.Type != JobType {
		return fmt.Errorf("unexpected job type %q", msg.Type)
	}
	var e Entry
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		return fmt.Errorf("decode audit entry: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return st.Insert(ctx, e)
}

// Consume drains q into st until ctx ends.
func Consume(ctx context.Context, q queue.Queue, st Store, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != JobType {
			log.Warn("skipping unknown job", zap.String("type", msg.Type))
			continue
		}
		if err := Handle(ctx, st, msg); err != nil {
			retried, rerr := queue.Retry(ctx, q, msg, MaxAttempts)
			log.Error("store audit entry", zap.String("job", msg.ID), zap.Int("attempt", msg.Attempt+1),
				zap.Bool("retried", retried), zap.Error(err))
			if rerr != nil && ctx.Err() == nil {
				log.Error("requeue audit entry", zap.Error(rerr))
			}
		}
	}
	return nil
}
