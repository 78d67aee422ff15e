package store

import (
	"context"
	"database/sql"
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

// EnsureSchema creates the attendance and audio tables when missing.
// Note: audio_recordings has no uniqueness constraint on
// (user_id, recording_date); one row per user per day is a convention
// maintained by the registry, not the database.
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			check_in_time TIMESTAMPTZ NOT NULL,
			check_out_time TIMESTAMPTZ,
			hours_worked TEXT,
			is_late BOOLEAN NOT NULL DEFAULT FALSE,
			is_early_leave BOOLEAN NOT NULL DEFAULT FALSE,
			date TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_attendance_user_date ON attendance_sessions (user_id, date);

		CREATE TABLE IF NOT EXISTS audio_recordings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			attendance_id TEXT,
			file_url TEXT,
			file_name TEXT,
			file_size BIGINT NOT NULL DEFAULT 0,
			duration INTEGER NOT NULL DEFAULT 0,
			recording_date TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audio_user_date ON audio_recordings (user_id, recording_date);
		CREATE INDEX IF NOT EXISTS idx_audio_created ON audio_recordings (created_at);
	`)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
