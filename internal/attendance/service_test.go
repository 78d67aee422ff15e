package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *time.Time) {
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepository())
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("on time before 09:15", func(t *testing.T) {
		svc, _ := newTestService()
		s, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)
		assert.False(t, s.IsLate)
		assert.Equal(t, "2026-03-02", s.Date)
		assert.NotEmpty(t, s.ID)
	})

	t.Run("late after 09:15", func(t *testing.T) {
		svc, clock := newTestService()
		*clock = clock.Add(20 * time.Minute)
		s, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)
		assert.True(t, s.IsLate)
	})

	t.Run("second check-in same day rejected", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)
		_, err = svc.CheckIn(ctx, "emp-1")
		require.ErrorIs(t, err, ErrAlreadyCheckedIn)
	})

	t.Run("rejected even after checkout", func(t *testing.T) {
		svc, clock := newTestService()
		_, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)
		*clock = clock.Add(4 * time.Hour)
		_, err = svc.CheckOut(ctx, "emp-1")
		require.NoError(t, err)
		_, err = svc.CheckIn(ctx, "emp-1")
		require.ErrorIs(t, err, ErrAlreadyCheckedIn)
	})

	t.Run("missing user", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CheckIn(ctx, "")
		require.Error(t, err)
	})
}

func TestCheckOut(t *testing.T) {
	ctx := context.Background()

	t.Run("computes hours and early leave", func(t *testing.T) {
		svc, clock := newTestService()
		_, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)

		*clock = clock.Add(8*time.Hour + 30*time.Minute) // 17:30

		s, err := svc.CheckOut(ctx, "emp-1")
		require.NoError(t, err)
		require.NotNil(t, s.CheckOutTime)
		assert.Equal(t, "8.50", s.HoursWorked)
		assert.True(t, s.IsEarlyLeave, "leaving before 21:00 is early")
	})

	t.Run("full shift is not an early leave", func(t *testing.T) {
		svc, clock := newTestService()
		_, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)

		*clock = clock.Add(12*time.Hour + 15*time.Minute) // 21:15

		s, err := svc.CheckOut(ctx, "emp-1")
		require.NoError(t, err)
		assert.False(t, s.IsEarlyLeave)
	})

	t.Run("no open session", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CheckOut(ctx, "emp-1")
		require.ErrorIs(t, err, ErrNoActiveCheckIn)
	})

	t.Run("double checkout rejected", func(t *testing.T) {
		svc, clock := newTestService()
		_, err := svc.CheckIn(ctx, "emp-1")
		require.NoError(t, err)
		*clock = clock.Add(time.Hour)
		_, err = svc.CheckOut(ctx, "emp-1")
		require.NoError(t, err)
		_, err = svc.CheckOut(ctx, "emp-1")
		require.ErrorIs(t, err, ErrNoActiveCheckIn)
	})
}

func TestTodayAndHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	today, err := svc.Today(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, today)

	_, err = svc.CheckIn(ctx, "emp-1")
	require.NoError(t, err)

	today, err = svc.Today(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.Equal(t, "emp-1", today.UserID)

	history, err := svc.History(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	all, err := svc.AllToday(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
