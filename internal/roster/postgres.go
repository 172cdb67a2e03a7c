package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"halaqa/internal/progress"
	"halaqa/internal/store"
)

const accountColumns = `id, name, role, status, phone, password_hash, avatar_url, schedule, archived, deleted_at,
	current_surah, current_juz, progress, total_fines, last_attendance, notes,
	start_page, daily_werd_pages, total_pages_memorized, memorization_percentage,
	initial_memorized_type, initial_memorized_value, created_at, updated_at`

// Postgres persists accounts in the users table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the pool so that other stores can join roster rows into their transactions.
func (r *Postgres) DB() *sql.DB { return r.db }

// Create inserts a new account.
func (r *Postgres) Create(ctx context.Context, a Account) error {
	sched, err := marshalSchedule(a.Schedule)
	if err != nil {
		return err
	}
	p := a.Profile
	if p == nil {
		p = &Profile{DailyWerdPages: 1}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
	`, a.ID, a.Name, a.Role, a.Status, a.Phone, a.PasswordHash, a.AvatarURL, sched, a.Archived, a.DeletedAt,
		p.CurrentSurah, p.CurrentJuz, p.Progress, p.TotalFines, p.LastAttendance, p.Notes,
		p.StartPage, p.DailyWerdPages, p.TotalPagesMemorized, p.MemorizationPercentage,
		string(p.InitialMemorizedType), p.InitialMemorizedValue, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return duplicatePhone("roster.Create")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get returns an account by id, archived or not.
func (r *Postgres) Get(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, notFound("roster.Get", id)
	}
	return a, err
}

// FindByPhone returns the live account using phone.
func (r *Postgres) FindByPhone(ctx context.Context, phone string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE phone = $1 AND NOT archived`, phone)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (r *Postgres) Update(ctx context.Context, id string, fn func(*Account) error) (Account, error) {
	var out Account
	err := store.InTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		out, err = UpdateTx(ctx, tx, id, fn)
		return err
	})
	return out, err
}

// UpdateTx is Update inside a caller-owned transaction.
func UpdateTx(ctx context.Context, tx *sql.Tx, id string, fn func(*Account) error) (Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, notFound("roster.Update", id)
	}
	if err != nil {
		return Account{}, err
	}
	if err := fn(&a); err != nil {
		return Account{}, err
	}
	a.UpdatedAt = time.Now().UTC()
	if err := save(ctx, tx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

func save(ctx context.Context, tx *sql.Tx, a Account) error {
	sched, err := marshalSchedule(a.Schedule)
	if err != nil {
		return err
	}
	p := a.Profile
	if p == nil {
		p = &Profile{DailyWerdPages: 1}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			name = $2, status = $3, phone = $4, password_hash = $5, avatar_url = $6, schedule = $7,
			archived = $8, deleted_at = $9, current_surah = $10, current_juz = $11, progress = $12,
			total_fines = $13, last_attendance = $14, notes = $15, start_page = $16, daily_werd_pages = $17,
			total_pages_memorized = $18, memorization_percentage = $19, initial_memorized_type = $20,
			initial_memorized_value = $21, updated_at = $22
		WHERE id = $1
	`, a.ID, a.Name, a.Status, a.Phone, a.PasswordHash, a.AvatarURL, sched,
		a.Archived, a.DeletedAt, p.CurrentSurah, p.CurrentJuz, p.Progress,
		p.TotalFines, p.LastAttendance, p.Notes, p.StartPage, p.DailyWerdPages,
		p.TotalPagesMemorized, p.MemorizationPercentage, string(p.InitialMemorizedType),
		p.InitialMemorizedValue, a.UpdatedAt)
	if isUniqueViolation(err) {
		return duplicatePhone("roster.Update")
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Archive soft-deletes an account.
func (r *Postgres) Archive(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET archived = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND NOT archived
	`, id, at)
	if err != nil {
		return fmt.Errorf("archive user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("roster.Archive", id)
	}
	return nil
}

// QueryByRole lists accounts of a role, oldest first.
func (r *Postgres) QueryByRole(ctx context.Context, role Role, includeArchived bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE role = $1`
	if !includeArchived {
		query += ` AND NOT archived`
	}
	query += ` ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
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

func scanAccount(s scanner) (Account, error) {
	var (
		a       Account
		p       Profile
		sched   []byte
		initial string
	)
	err := s.Scan(&a.ID, &a.Name, &a.Role, &a.Status, &a.Phone, &a.PasswordHash, &a.AvatarURL, &sched,
		&a.Archived, &a.DeletedAt, &p.CurrentSurah, &p.CurrentJuz, &p.Progress, &p.TotalFines,
		&p.LastAttendance, &p.Notes, &p.StartPage, &p.DailyWerdPages, &p.TotalPagesMemorized,
		&p.MemorizationPercentage, &initial, &p.InitialMemorizedValue, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	if len(sched) > 0 {
		var s Schedule
		if err := json.Unmarshal(sched, &s); err != nil {
			return Account{}, fmt.Errorf("decode schedule: %w", err)
		}
		a.Schedule = &s
	}
	if a.Role == RoleStudent {
		p.InitialMemorizedType = progress.InitialType(initial)
		a.Profile = &p
	}
	return a, nil
}

func marshalSchedule(s *Schedule) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
