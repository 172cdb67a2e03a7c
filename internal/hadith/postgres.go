package hadith

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"halaqa/internal/store"
)

const assignmentColumns = `id, student_id, hadith_id, date, status, assigned_at, seen_at, done_at`

// Postgres persists settings in hadith_settings and assignments in student_hadiths.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (r *Postgres) Settings(ctx context.Context) (Settings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx, `
		SELECT is_enabled, active_days, starting_hadith_id, distribution_mode,
			last_assigned_hadith_id, last_assignment_date, updated_at
		FROM hadith_settings WHERE id = $1
	`, SettingsID))
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	return s, err
}

// UpdateSettings seeds the row if missing, locks it and writes fn's result.
func (r *Postgres) UpdateSettings(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	var out Settings
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		def := DefaultSettings()
		days, err := json.Marshal(def.ActiveDays)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hadith_settings (id, is_enabled, active_days, starting_hadith_id, distribution_mode)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, SettingsID, def.IsEnabled, days, def.StartingHadithID, def.DistributionMode); err != nil {
			return fmt.Errorf("seed hadith settings: %w", err)
		}
		s, err := scanSettings(tx.QueryRowContext(ctx, `
			SELECT is_enabled, active_days, starting_hadith_id, distribution_mode,
				last_assigned_hadith_id, last_assignment_date, updated_at
			FROM hadith_settings WHERE id = $1 FOR UPDATE
		`, SettingsID))
		if err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.UpdatedAt = time.Now().UTC()
		if days, err = json.Marshal(s.ActiveDays); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE hadith_settings SET is_enabled = $2, active_days = $3, starting_hadith_id = $4,
				distribution_mode = $5, last_assigned_hadith_id = $6, last_assignment_date = $7, updated_at = $8
			WHERE id = $1
		`, SettingsID, s.IsEnabled, days, s.StartingHadithID, s.DistributionMode,
			s.LastAssignedHadithID, s.LastAssignmentDate, s.UpdatedAt); err != nil {
			return fmt.Errorf("update hadith settings: %w", err)
		}
		out = s
		return nil
	})
	return out, err
}

// CommitRun is a compare-and-set on last_assignment_date.
func (r *Postgres) CommitRun(ctx context.Context, prevDate string, lastHadithID int, date string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE hadith_settings SET last_assigned_hadith_id = $2, last_assignment_date = $3, updated_at = NOW()
		WHERE id = $1 AND last_assignment_date = $4
	`, SettingsID, lastHadithID, date, prevDate)
	if err != nil {
		return false, fmt.Errorf("commit hadith run: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *Postgres) Assignment(ctx context.Context, id string) (Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM student_hadiths WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, errAssignmentNotFound(id)
	}
	return a, err
}

func (r *Postgres) InsertAssignment(ctx context.Context, a Assignment) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO student_hadiths (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.StudentID, a.HadithID, a.Date, a.Status, a.AssignedAt, a.SeenAt, a.DoneAt)
	if err != nil {
		return false, fmt.Errorf("insert assignment: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *Postgres) Advance(ctx context.Context, id string, from []Status, to Status, at time.Time) (Assignment, bool, error) {
	var (
		out     Assignment
		changed bool
	)
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		a, err := scanAssignment(tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM student_hadiths WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return errAssignmentNotFound(id)
		}
		if err != nil {
			return err
		}
		out = a
		for _, f := range from {
			if a.Status != f {
				continue
			}
			stamp(&a, to, at)
			if _, err := tx.ExecContext(ctx, `
				UPDATE student_hadiths SET status = $2, seen_at = $3, done_at = $4 WHERE id = $1
			`, a.ID, a.Status, a.SeenAt, a.DoneAt); err != nil {
				return fmt.Errorf("advance assignment: %w", err)
			}
			out, changed = a, true
			return nil
		}
		return nil
	})
	return out, changed, err
}

func (r *Postgres) ListByDate(ctx context.Context, date string) ([]Assignment, error) {
	return r.list(ctx, `WHERE date = $1 ORDER BY id`, date)
}

func (r *Postgres) ListByStudent(ctx context.Context, studentID string) ([]Assignment, error) {
	return r.list(ctx, `WHERE student_id = $1 ORDER BY date DESC`, studentID)
}

func (r *Postgres) list(ctx context.Context, tail string, arg any) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, strings.Join([]string{`SELECT`, assignmentColumns, `FROM student_hadiths`, tail}, " "), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(row scanner) (Settings, error) {
	var (
		s    Settings
		days []byte
	)
	if err := row.Scan(&s.IsEnabled, &days, &s.StartingHadithID, &s.DistributionMode,
		&s.LastAssignedHadithID, &s.LastAssignmentDate, &s.UpdatedAt); err != nil {
		return Settings{}, err
	}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &s.ActiveDays); err != nil {
			return Settings{}, fmt.Errorf("decode active days: %w", err)
		}
	}
	return s, nil
}

func scanAssignment(row scanner) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.StudentID, &a.HadithID, &a.Date, &a.Status, &a.AssignedAt, &a.SeenAt, &a.DoneAt)
	return a, err
}
