package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the no-database fallback for attendance sessions.
type MemoryRepository struct {
	mu   sync.Mutex
	rows []Session
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, s)
	return s, nil
}

func (r *MemoryRepository) ByUserAndDate(_ context.Context, userID, date string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *Session
	for i := range r.rows {
		s := r.rows[i]
		if s.UserID != userID || s.Date != date {
			continue
		}
		if newest == nil || s.CheckInTime.After(newest.CheckInTime) {
			c := s
			newest = &c
		}
	}
	return newest, nil
}

func (r *MemoryRepository) CheckOut(_ context.Context, id string, checkOutTime time.Time, hoursWorked string, isEarlyLeave bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			t := checkOutTime
			r.rows[i].CheckOutTime = &t
			r.rows[i].HoursWorked = hoursWorked
			r.rows[i].IsEarlyLeave = isEarlyLeave
			return nil
		}
	}
	return ErrNoActiveCheckIn
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, nil
}

func (r *MemoryRepository) ListByDate(_ context.Context, date string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.rows {
		if s.Date == date {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, nil
}
