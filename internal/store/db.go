package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Migrate creates the tables and indexes when they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Healthy verifies postgres connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func InTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	role                    TEXT NOT NULL,
	status                  TEXT NOT NULL,
	phone                   TEXT NOT NULL,
	password_hash           TEXT NOT NULL DEFAULT '',
	avatar_url              TEXT NOT NULL DEFAULT '',
	schedule                JSONB,
	archived                BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at              TIMESTAMPTZ,
	current_surah           TEXT NOT NULL DEFAULT '',
	current_juz             INT NOT NULL DEFAULT 0,
	progress                INT NOT NULL DEFAULT 0,
	total_fines             INT NOT NULL DEFAULT 0 CHECK (total_fines >= 0),
	last_attendance         TIMESTAMPTZ,
	notes                   TEXT NOT NULL DEFAULT '',
	start_page              INT NOT NULL DEFAULT 0,
	daily_werd_pages        INT NOT NULL DEFAULT 1,
	total_pages_memorized   INT NOT NULL DEFAULT 0 CHECK (total_pages_memorized BETWEEN 0 AND 604),
	memorization_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	initial_memorized_type  TEXT NOT NULL DEFAULT '',
	initial_memorized_value INT NOT NULL DEFAULT 0,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_phone_live ON users (phone) WHERE NOT archived;
CREATE INDEX IF NOT EXISTS users_role_status ON users (role, status);

CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	student_id     TEXT NOT NULL REFERENCES users(id),
	student_name   TEXT NOT NULL,
	student_avatar TEXT NOT NULL DEFAULT '',
	scheduled_time TEXT NOT NULL,
	status         TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_in_progress ON sessions ((1)) WHERE status = 'IN_PROGRESS';
CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_open_per_student ON sessions (student_id)
	WHERE status IN ('WAITING', 'READY', 'IN_PROGRESS');
CREATE INDEX IF NOT EXISTS sessions_status_created ON sessions (status, created_at);

CREATE TABLE IF NOT EXISTS hadith_settings (
	id                      TEXT PRIMARY KEY,
	is_enabled              BOOLEAN NOT NULL DEFAULT FALSE,
	active_days             JSONB NOT NULL DEFAULT '[]',
	starting_hadith_id      INT NOT NULL DEFAULT 1,
	distribution_mode       TEXT NOT NULL DEFAULT 'loop',
	last_assigned_hadith_id INT NOT NULL DEFAULT 0,
	last_assignment_date    TEXT NOT NULL DEFAULT '',
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_hadiths (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL REFERENCES users(id),
	hadith_id   INT NOT NULL,
	date        TEXT NOT NULL,
	status      TEXT NOT NULL,
	assigned_at TIMESTAMPTZ NOT NULL,
	seen_at     TIMESTAMPTZ,
	done_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS student_hadiths_date ON student_hadiths (date);

CREATE TABLE IF NOT EXISTS audit_logs (
	id           TEXT PRIMARY KEY,
	action       TEXT NOT NULL,
	details      TEXT NOT NULL DEFAULT '',
	performed_by TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_logs_occurred ON audit_logs (occurred_at DESC);
`
