package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists attendance sessions in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, check_in_time, check_out_time, hours_worked, is_late, is_early_leave, date, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var checkOut sql.NullTime
	var hoursWorked sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.CheckInTime, &checkOut, &hoursWorked,
		&s.IsLate, &s.IsEarlyLeave, &s.Date, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		s.CheckOutTime = &t
	}
	s.HoursWorked = hoursWorked.String
	return s, nil
}

// Insert writes a new session.
func (r *PostgresRepository) Insert(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, user_id, check_in_time, is_late, is_early_leave, date)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, s.ID, s.UserID, s.CheckInTime, s.IsLate, s.IsEarlyLeave, s.Date)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// ByUserAndDate returns the newest session for (user, date) or nil.
func (r *PostgresRepository) ByUserAndDate(ctx context.Context, userID, date string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE user_id = $1 AND date = $2
		ORDER BY check_in_time DESC
		LIMIT 1
	`, userID, date)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CheckOut stamps the close fields on a session.
func (r *PostgresRepository) CheckOut(ctx context.Context, id string, checkOutTime time.Time, hoursWorked string, isEarlyLeave bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET check_out_time = $2, hours_worked = $3, is_early_leave = $4
		WHERE id = $1
	`, id, checkOutTime, hoursWorked, isEarlyLeave)
	return err
}

// ListByUser returns a user's sessions newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE user_id = $1 ORDER BY check_in_time DESC
	`, userID)
}

// ListByDate returns all sessions for a calendar day, newest first.
func (r *PostgresRepository) ListByDate(ctx context.Context, date string) ([]Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM attendance_sessions
		WHERE date = $1 ORDER BY check_in_time DESC
	`, date)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
