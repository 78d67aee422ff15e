package recording

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the no-database fallback. The mutex only protects the
// slice itself; find-then-create sequences in the Registry remain unguarded,
// so concurrent same-second uploads for one user can still produce duplicate
// rows, matching the Postgres path.
type MemoryRepository struct {
	mu   sync.Mutex
	rows []Recording
	now  func() time.Time
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Insert(_ context.Context, rec Recording) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	r.rows = append(r.rows, rec)
	return rec, nil
}

func (r *MemoryRepository) ByID(_ context.Context, id string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			rec := r.rows[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ByUserAndDate(_ context.Context, userID, date string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *Recording
	for i := range r.rows {
		rec := r.rows[i]
		if rec.UserID != userID || rec.RecordingDate != date {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			c := rec
			newest = &c
		}
	}
	return newest, nil
}

func (r *MemoryRepository) ActiveByAttendance(_ context.Context, attendanceID string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].AttendanceID == attendanceID && r.rows[i].IsActive {
			rec := r.rows[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].IsActive = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) UpdateSegment(_ context.Context, id, fileURL, fileName string, fileSize int64, duration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].FileURL = fileURL
			r.rows[i].FileName = fileName
			r.rows[i].FileSize = fileSize
			r.rows[i].Duration = duration
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) Close(_ context.Context, id string, duration int, recordingDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].IsActive = false
			r.rows[i].Duration = duration
			r.rows[i].RecordingDate = recordingDate
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recording, len(r.rows))
	copy(out, r.rows)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) ListActive(_ context.Context) ([]Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recording
	for _, rec := range r.rows {
		if rec.IsActive {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepository) TotalStorage(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.rows {
		total += rec.FileSize
	}
	return total, nil
}

func (r *MemoryRepository) Oldest(_ context.Context) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *Recording
	for i := range r.rows {
		rec := r.rows[i]
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			c := rec
			oldest = &c
		}
	}
	return oldest, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// DeleteOlderThan drops expired rows. Unlike the Postgres repository this
// does not unlink backing files; expired segments stay on disk until the
// byte-budget pass or an admin delete removes them.
func (r *MemoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, rec := range r.rows {
		if !rec.CreatedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	r.rows = kept
	return nil
}
