package recording

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a recording row does not exist.
var ErrNotFound = errors.New("recording not found")

// Recording is the per-user-per-day audio catalog row. File fields always
// describe the most recently uploaded segment; earlier segment files remain
// on disk but are no longer referenced from the catalog.
type Recording struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	AttendanceID  string    `json:"attendanceId,omitempty"`
	FileURL       string    `json:"fileUrl,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	FileSize      int64     `json:"fileSize"`
	Duration      int       `json:"duration"`
	RecordingDate string    `json:"recordingDate"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Repository is the persistence boundary for audio recordings. Two
// implementations exist: Postgres-backed and in-memory, selected once at
// process start via configuration.
type Repository interface {
	Insert(ctx context.Context, rec Recording) (Recording, error)
	ByID(ctx context.Context, id string) (*Recording, error)
	// ByUserAndDate returns the newest recording for the user on the given
	// calendar day, or nil when none exists.
	ByUserAndDate(ctx context.Context, userID, date string) (*Recording, error)
	// ActiveByAttendance returns the active recording bound to an
	// attendance session, or nil.
	ActiveByAttendance(ctx context.Context, attendanceID string) (*Recording, error)
	// Activate flips is_active on without touching anything else.
	Activate(ctx context.Context, id string) error
	// UpdateSegment overwrites the latest-segment file metadata.
	UpdateSegment(ctx context.Context, id, fileURL, fileName string, fileSize int64, duration int) error
	// Close marks the recording inactive with a final duration and date.
	Close(ctx context.Context, id string, duration int, recordingDate string) error
	ListAll(ctx context.Context) ([]Recording, error)
	ListActive(ctx context.Context) ([]Recording, error)
	// TotalStorage sums the recorded file sizes across all rows.
	TotalStorage(ctx context.Context) (int64, error)
	// Oldest returns the row with the earliest creation time, or nil.
	Oldest(ctx context.Context) (*Recording, error)
	Delete(ctx context.Context, id string) error
	// DeleteOlderThan removes rows created before the cutoff. The
	// Postgres implementation also unlinks the backing files; the
	// in-memory one does not.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}
