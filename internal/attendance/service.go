package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session represents one check-in to check-out span for an employee.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	CheckInTime  time.Time  `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
	HoursWorked  string     `json:"hoursWorked,omitempty"`
	IsLate       bool       `json:"isLate"`
	IsEarlyLeave bool       `json:"isEarlyLeave"`
	Date         string     `json:"date"`
	CreatedAt    time.Time  `json:"createdAt"`
}

var (
	// ErrAlreadyCheckedIn means attendance was already recorded for the day.
	ErrAlreadyCheckedIn = errors.New("attendance already recorded for today")
	// ErrNoActiveCheckIn means there is no open session to check out of.
	ErrNoActiveCheckIn = errors.New("no active check-in found")
)

// Repository persists attendance sessions. Postgres and in-memory
// implementations are selected at startup.
type Repository interface {
	Insert(ctx context.Context, s Session) (Session, error)
	// ByUserAndDate returns the newest session for the user on the day, or nil.
	ByUserAndDate(ctx context.Context, userID, date string) (*Session, error)
	// CheckOut stamps the close fields on a session.
	CheckOut(ctx context.Context, id string, checkOutTime time.Time, hoursWorked string, isEarlyLeave bool) error
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	ListByDate(ctx context.Context, date string) ([]Session, error)
}

// Service coordinates check-in and check-out, enforcing one session per
// user per calendar day.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// DateKey formats a moment as the calendar-day key.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckIn opens today's session. A second check-in on the same day is
// rejected whether or not the first was closed.
func (s *Service) CheckIn(ctx context.Context, userID string) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("user required")
	}
	now := s.now()
	date := DateKey(now)

	existing, err := s.repo.ByUserAndDate(ctx, userID, date)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, ErrAlreadyCheckedIn
	}

	// Late after 09:15.
	isLate := now.Hour() > 9 || (now.Hour() == 9 && now.Minute() > 15)

	return s.repo.Insert(ctx, Session{
		UserID:      userID,
		CheckInTime: now,
		Date:        date,
		IsLate:      isLate,
	})
}

// CheckOut closes today's open session, computing hours worked from the
// check-in wall clock.
func (s *Service) CheckOut(ctx context.Context, userID string) (Session, error) {
	now := s.now()
	date := DateKey(now)

	existing, err := s.repo.ByUserAndDate(ctx, userID, date)
	if err != nil {
		return Session{}, err
	}
	if existing == nil || existing.CheckOutTime != nil {
		return Session{}, ErrNoActiveCheckIn
	}

	hours := now.Sub(existing.CheckInTime).Hours()
	hoursWorked := fmt.Sprintf("%.2f", hours)
	// Leaving before 21:00 counts as an early leave.
	isEarlyLeave := now.Hour() < 21

	if err := s.repo.CheckOut(ctx, existing.ID, now, hoursWorked, isEarlyLeave); err != nil {
		return Session{}, err
	}
	existing.CheckOutTime = &now
	existing.HoursWorked = hoursWorked
	existing.IsEarlyLeave = isEarlyLeave
	return *existing, nil
}

// Today returns the user's session for the current day, or nil.
func (s *Service) Today(ctx context.Context, userID string) (*Session, error) {
	return s.repo.ByUserAndDate(ctx, userID, DateKey(s.now()))
}

// History returns the user's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Session, error) {
	return s.repo.ListByUser(ctx, userID)
}

// AllToday returns every session for the current day, for the admin view.
func (s *Service) AllToday(ctx context.Context) ([]Session, error) {
	return s.repo.ListByDate(ctx, DateKey(s.now()))
}
