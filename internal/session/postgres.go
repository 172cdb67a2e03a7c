package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"halaqa/internal/roster"
	"halaqa/internal/store"
)

const sessionColumns = `id, student_id, student_name, student_avatar, scheduled_time, status, notes, created_at, updated_at`

// Postgres persists sessions; the partial unique indexes on sessions back the
// one-open-per-student and single IN_PROGRESS rules.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Insert writes a new session.
func (r *Postgres) Insert(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.StudentID, s.StudentName, s.StudentAvatar, s.ScheduledTime, s.Status, s.Notes, s.CreatedAt, s.UpdatedAt)
	if _, dup := uniqueViolation(err); dup {
		return errAlreadyCheckedIn
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get returns a single session by id.
func (r *Postgres) Get(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, errSessionNotFound(id)
	}
	return s, err
}

// List returns sessions matching f in check-in order.
func (r *Postgres) List(ctx context.Context, f Filter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		clauses = append(clauses, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			args = append(args, st)
			marks = append(marks, "$"+strconv.Itoa(len(args)))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ",")+")")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Transition locks the session row (and the student row when c.Student is set)
// and commits both changes together.
func (r *Postgres) Transition(ctx context.Context, id string, c Change) (Session, *roster.Student, error) {
	var (
		out     Session
		student *roster.Student
	)
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return errSessionNotFound(id)
		}
		if err != nil {
			return err
		}
		if !c.allowed(cur.Status) {
			return errTransition(cur.Status, c.To)
		}
		if c.Student != nil {
			a, err := roster.UpdateTx(ctx, tx, cur.StudentID, roster.StudentMutation(cur.StudentID, c.Student))
			if err != nil {
				return err
			}
			st, _ := a.AsStudent()
			student = &st
		}
		cur.Status = c.To
		if c.Notes != nil {
			cur.Notes = *c.Notes
		}
		cur.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`,
			cur.ID, cur.Status, cur.Notes, cur.UpdatedAt)
		if name, dup := uniqueViolation(err); dup && name != "sessions_one_open_per_student" {
			return errAnotherActive
		}
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		out = cur
		return nil
	})
	if err != nil {
		return Session{}, nil, err
	}
	return out, student, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (Session, error) {
	var out Session
	err := s.Scan(&out.ID, &out.StudentID, &out.StudentName, &out.StudentAvatar, &out.ScheduledTime,
		&out.Status, &out.Notes, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

// uniqueViolation reports a unique-index failure and the index name.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
