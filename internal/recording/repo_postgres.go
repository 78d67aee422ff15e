package recording

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"shopattendance/internal/audiofile"
)

// PostgresRepository persists recordings in Postgres.
type PostgresRepository struct {
	db    *sql.DB
	files *audiofile.Store
}

// NewPostgresRepository creates a repo. The file store is used to unlink
// backing files during age-based cleanup.
func NewPostgresRepository(db *sql.DB, files *audiofile.Store) *PostgresRepository {
	return &PostgresRepository{db: db, files: files}
}

const recordingColumns = `id, user_id, attendance_id, file_url, file_name, file_size, duration, recording_date, is_active, created_at`

func scanRecording(row interface{ Scan(...any) error }) (Recording, error) {
	var rec Recording
	var attendanceID, fileURL, fileName sql.NullString
	err := row.Scan(&rec.ID, &rec.UserID, &attendanceID, &fileURL, &fileName,
		&rec.FileSize, &rec.Duration, &rec.RecordingDate, &rec.IsActive, &rec.CreatedAt)
	if err != nil {
		return Recording{}, err
	}
	rec.AttendanceID = attendanceID.String
	rec.FileURL = fileURL.String
	rec.FileName = fileName.String
	return rec, nil
}

// Insert writes a new recording row.
func (r *PostgresRepository) Insert(ctx context.Context, rec Recording) (Recording, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO audio_recordings (id, user_id, attendance_id, file_url, file_name, file_size, duration, recording_date, is_active)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.AttendanceID, rec.FileURL, rec.FileName, rec.FileSize, rec.Duration, rec.RecordingDate, rec.IsActive)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Recording{}, err
	}
	return rec, nil
}

// ByID returns a single recording or nil when absent.
func (r *PostgresRepository) ByID(ctx context.Context, id string) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordingColumns+` FROM audio_recordings WHERE id = $1
	`, id)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ByUserAndDate returns the newest recording for (user, date) or nil.
func (r *PostgresRepository) ByUserAndDate(ctx context.Context, userID, date string) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordingColumns+` FROM audio_recordings
		WHERE user_id = $1 AND recording_date = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, date)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ActiveByAttendance returns the active recording bound to an attendance session.
func (r *PostgresRepository) ActiveByAttendance(ctx context.Context, attendanceID string) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordingColumns+` FROM audio_recordings
		WHERE attendance_id = $1 AND is_active = TRUE
		LIMIT 1
	`, attendanceID)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Activate flips is_active on.
func (r *PostgresRepository) Activate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE audio_recordings SET is_active = TRUE WHERE id = $1`, id)
	return err
}

// UpdateSegment overwrites the latest-segment metadata on the row.
func (r *PostgresRepository) UpdateSegment(ctx context.Context, id, fileURL, fileName string, fileSize int64, duration int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE audio_recordings
		SET file_url = $2, file_name = $3, file_size = $4, duration = $5
		WHERE id = $1
	`, id, fileURL, fileName, fileSize, duration)
	return err
}

// Close marks the recording inactive with its final duration and date.
func (r *PostgresRepository) Close(ctx context.Context, id string, duration int, recordingDate string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE audio_recordings
		SET is_active = FALSE, duration = $2, recording_date = $3
		WHERE id = $1
	`, id, duration, recordingDate)
	return err
}

// ListAll returns every recording, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]Recording, error) {
	return r.list(ctx, `SELECT `+recordingColumns+` FROM audio_recordings ORDER BY created_at DESC`)
}

// ListActive returns recordings with an open capture session.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Recording, error) {
	return r.list(ctx, `SELECT `+recordingColumns+` FROM audio_recordings WHERE is_active = TRUE ORDER BY created_at DESC`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Recording, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// TotalStorage sums recorded file sizes across all rows.
func (r *PostgresRepository) TotalStorage(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(file_size), 0) FROM audio_recordings`).Scan(&total)
	return total, err
}

// Oldest returns the earliest-created recording or nil.
func (r *PostgresRepository) Oldest(ctx context.Context) (*Recording, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordingColumns+` FROM audio_recordings ORDER BY created_at ASC LIMIT 1
	`)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes a recording row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM audio_recordings WHERE id = $1`, id)
	return err
}

// DeleteOlderThan removes rows created before the cutoff and unlinks their
// backing files. File errors are logged and do not stop row deletion.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(file_name, '') FROM audio_recordings WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return err
	}
	type victim struct{ id, userID, fileName string }
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.userID, &v.fileName); err != nil {
			rows.Close()
			return err
		}
		victims = append(victims, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, v := range victims {
		if v.fileName != "" && r.files != nil {
			if err := r.files.Remove(v.userID, v.fileName); err != nil {
				log.Warn().Err(err).Str("recording_id", v.id).Msg("file delete error")
			}
		}
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM audio_recordings WHERE created_at < $1`, cutoff)
	return err
}
