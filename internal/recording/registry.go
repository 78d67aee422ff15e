package recording

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"shopattendance/internal/broadcast"
)

// Registry owns the canonical "is this user recording right now" state and
// the catalog rows surfaced to the admin panel.
type Registry struct {
	repo Repository
	bus  broadcast.Bus
	now  func() time.Time
}

// NewRegistry creates a registry publishing transitions on bus.
func NewRegistry(repo Repository, bus broadcast.Bus) *Registry {
	return &Registry{repo: repo, bus: bus, now: time.Now}
}

// DateKey formats a moment as the calendar-day key used throughout the
// catalog.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// OnCheckIn ensures a single recording row exists for the user's day and
// marks it active. Called from the check-in handler before any audio
// arrives.
func (g *Registry) OnCheckIn(ctx context.Context, userID, date, attendanceID string) (Recording, error) {
	existing, err := g.repo.ByUserAndDate(ctx, userID, date)
	if err != nil {
		return Recording{}, err
	}
	var rec Recording
	if existing != nil {
		if err := g.repo.Activate(ctx, existing.ID); err != nil {
			return Recording{}, err
		}
		existing.IsActive = true
		rec = *existing
	} else {
		rec, err = g.repo.Insert(ctx, Recording{
			UserID:        userID,
			AttendanceID:  attendanceID,
			RecordingDate: date,
			IsActive:      true,
		})
		if err != nil {
			return Recording{}, err
		}
	}

	g.publish(ctx, broadcast.Event{Type: broadcast.AudioStart, Recording: rec})
	return rec, nil
}

// OnSegmentUpload records the latest segment's file metadata on the day's
// row, creating the row if the upload raced ahead of check-in bookkeeping.
// The active flag is left untouched. The find-or-create below is not
// transactionally guarded; two uploads for one user in the same instant
// can each create a row.
func (g *Registry) OnSegmentUpload(ctx context.Context, userID, date, fileURL, fileName string, fileSize int64, duration int) (Recording, error) {
	existing, err := g.repo.ByUserAndDate(ctx, userID, date)
	if err != nil {
		return Recording{}, err
	}
	if existing == nil {
		created, err := g.repo.Insert(ctx, Recording{
			UserID:        userID,
			FileURL:       fileURL,
			FileName:      fileName,
			FileSize:      fileSize,
			Duration:      duration,
			RecordingDate: date,
		})
		if err != nil {
			return Recording{}, err
		}
		segmentUploads.Inc()
		return created, nil
	}
	if err := g.repo.UpdateSegment(ctx, existing.ID, fileURL, fileName, fileSize, duration); err != nil {
		return Recording{}, err
	}
	existing.FileURL = fileURL
	existing.FileName = fileName
	existing.FileSize = fileSize
	existing.Duration = duration
	segmentUploads.Inc()
	return *existing, nil
}

// OnCheckOut closes the recording bound to an attendance session. Duration
// is the check-in to check-out wall clock, not the sum of uploaded segment
// durations, and the recording date is stamped to the close day.
func (g *Registry) OnCheckOut(ctx context.Context, attendanceID string, checkInTime, checkOutTime time.Time) error {
	active, err := g.repo.ActiveByAttendance(ctx, attendanceID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}

	duration := int(checkOutTime.Sub(checkInTime).Seconds())
	today := DateKey(g.now())
	if err := g.repo.Close(ctx, active.ID, duration, today); err != nil {
		return err
	}

	g.publish(ctx, broadcast.Event{Type: broadcast.AudioStop, RecordingID: active.ID})
	return nil
}

// OnAdminStop force-closes a recording. Duration here is the wall clock
// elapsed since the row was created, which differs from the checkout
// semantic above.
func (g *Registry) OnAdminStop(ctx context.Context, recordingID string) (*Recording, error) {
	current, err := g.repo.ByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	duration := 0
	if !current.CreatedAt.IsZero() {
		duration = int(g.now().Sub(current.CreatedAt).Seconds())
	}
	date := current.RecordingDate
	if date == "" {
		date = DateKey(g.now())
	}
	if err := g.repo.Close(ctx, current.ID, duration, date); err != nil {
		return nil, err
	}
	current.IsActive = false
	current.Duration = duration
	current.RecordingDate = date

	g.publish(ctx, broadcast.Event{Type: broadcast.AudioStop, RecordingID: current.ID})
	return current, nil
}

func (g *Registry) publish(ctx context.Context, evt broadcast.Event) {
	if g.bus == nil {
		return
	}
	if err := g.bus.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("broadcast publish failed")
	}
}
