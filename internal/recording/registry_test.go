package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopattendance/internal/broadcast"
)

type captureBus struct {
	events []broadcast.Event
	err    error
}

func (b *captureBus) Publish(_ context.Context, evt broadcast.Event) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, evt)
	return nil
}

func newTestRegistry(bus broadcast.Bus) (*Registry, *MemoryRepository, *time.Time) {
	repo := NewMemoryRepository()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	reg := NewRegistry(repo, bus)
	reg.now = func() time.Time { return clock }
	return reg, repo, &clock
}

func TestOnCheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("creates active row and broadcasts start", func(t *testing.T) {
		bus := &captureBus{}
		reg, _, _ := newTestRegistry(bus)

		rec, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
		require.NoError(t, err)
		assert.True(t, rec.IsActive)
		assert.Equal(t, "emp-1", rec.UserID)
		assert.Equal(t, "att-1", rec.AttendanceID)
		assert.NotEmpty(t, rec.ID)

		require.Len(t, bus.events, 1)
		assert.Equal(t, broadcast.AudioStart, bus.events[0].Type)
	})

	t.Run("reactivates existing row for the day", func(t *testing.T) {
		bus := &captureBus{}
		reg, repo, _ := newTestRegistry(bus)

		first, err := repo.Insert(ctx, Recording{UserID: "emp-1", RecordingDate: "2026-03-02"})
		require.NoError(t, err)

		rec, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, rec.ID)
		assert.True(t, rec.IsActive)

		rows, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("bus failure does not fail the check-in", func(t *testing.T) {
		bus := &captureBus{err: errors.New("redis down")}
		reg, _, _ := newTestRegistry(bus)

		_, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
		require.NoError(t, err)
	})
}

func TestOnSegmentUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites latest segment metadata", func(t *testing.T) {
		reg, repo, _ := newTestRegistry(nil)
		_, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
		require.NoError(t, err)

		_, err = reg.OnSegmentUpload(ctx, "emp-1", "2026-03-02", "/uploads/audio/emp-1/a.webm", "a.webm", 1000, 300)
		require.NoError(t, err)
		rec, err := reg.OnSegmentUpload(ctx, "emp-1", "2026-03-02", "/uploads/audio/emp-1/b.webm", "b.webm", 2000, 300)
		require.NoError(t, err)

		assert.Equal(t, "b.webm", rec.FileName)
		assert.Equal(t, int64(2000), rec.FileSize)
		assert.True(t, rec.IsActive, "upload must not clear the active flag")

		rows, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("counts segments on both paths", func(t *testing.T) {
		reg, _, _ := newTestRegistry(nil)

		before := testutil.ToFloat64(segmentUploads)
		// First upload takes the defensive-insert path, second the update path.
		_, err := reg.OnSegmentUpload(ctx, "emp-3", "2026-03-02", "/u/a.webm", "a.webm", 500, 60)
		require.NoError(t, err)
		_, err = reg.OnSegmentUpload(ctx, "emp-3", "2026-03-02", "/u/b.webm", "b.webm", 500, 60)
		require.NoError(t, err)

		assert.Equal(t, before+2, testutil.ToFloat64(segmentUploads))
	})

	t.Run("creates row when upload precedes check-in", func(t *testing.T) {
		reg, repo, _ := newTestRegistry(nil)

		rec, err := reg.OnSegmentUpload(ctx, "emp-2", "2026-03-02", "/uploads/audio/emp-2/a.webm", "a.webm", 500, 60)
		require.NoError(t, err)
		assert.False(t, rec.IsActive)
		assert.Equal(t, "a.webm", rec.FileName)

		rows, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestSameDayDuplicateRows(t *testing.T) {
	// Nothing guards the find-or-create sequence, so two uploads landing in
	// the same instant for one user can each insert a row for the day. This
	// is current behavior: both rows survive and later lookups resolve to
	// the newest one, leaving the older row to the retention passes.
	ctx := context.Background()
	reg, repo, clock := newTestRegistry(nil)

	older, err := repo.Insert(ctx, Recording{
		UserID: "emp-1", RecordingDate: "2026-03-02",
		FileName: "a.webm", FileSize: 100,
	})
	require.NoError(t, err)

	*clock = clock.Add(time.Second)
	newer, err := repo.Insert(ctx, Recording{
		UserID: "emp-1", RecordingDate: "2026-03-02",
		FileName: "b.webm", FileSize: 200,
	})
	require.NoError(t, err)

	rows, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "no uniqueness constraint on (user, date)")

	got, err := repo.ByUserAndDate(ctx, "emp-1", "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	// Subsequent uploads update only the newest row; the older stays stale.
	_, err = reg.OnSegmentUpload(ctx, "emp-1", "2026-03-02", "/u/c.webm", "c.webm", 300, 60)
	require.NoError(t, err)

	stale, err := repo.ByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.webm", stale.FileName)
}

func TestOnCheckOut(t *testing.T) {
	ctx := context.Background()
	bus := &captureBus{}
	reg, repo, clock := newTestRegistry(bus)

	checkIn := *clock
	rec, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
	require.NoError(t, err)

	// Two five-minute segments uploaded, then checkout 200s after the last
	// one. Duration comes from the attendance wall clock, not segment sums.
	_, err = reg.OnSegmentUpload(ctx, "emp-1", "2026-03-02", "/u/a.webm", "a.webm", 100, 300)
	require.NoError(t, err)

	*clock = clock.Add(26 * time.Hour) // checkout the next day
	checkOut := checkIn.Add(8 * time.Hour)

	require.NoError(t, reg.OnCheckOut(ctx, "att-1", checkIn, checkOut))

	got, err := repo.ByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
	assert.Equal(t, int(8*time.Hour/time.Second), got.Duration)
	// The recording date is restamped to the day the close ran.
	assert.Equal(t, "2026-03-03", got.RecordingDate)

	require.Len(t, bus.events, 2)
	assert.Equal(t, broadcast.AudioStop, bus.events[1].Type)
	assert.Equal(t, rec.ID, bus.events[1].RecordingID)

	t.Run("no active recording is a no-op", func(t *testing.T) {
		require.NoError(t, reg.OnCheckOut(ctx, "att-unknown", checkIn, checkOut))
	})
}

func TestOnAdminStop(t *testing.T) {
	ctx := context.Background()

	t.Run("duration counts from row creation", func(t *testing.T) {
		reg, repo, clock := newTestRegistry(nil)

		rec, err := reg.OnCheckIn(ctx, "emp-1", "2026-03-02", "att-1")
		require.NoError(t, err)

		*clock = clock.Add(45 * time.Second)

		stopped, err := reg.OnAdminStop(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, stopped.IsActive)
		assert.Equal(t, 45, stopped.Duration)
		assert.Equal(t, "2026-03-02", stopped.RecordingDate)

		got, err := repo.ByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("unknown recording", func(t *testing.T) {
		reg, _, _ := newTestRegistry(nil)
		_, err := reg.OnAdminStop(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDateKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 02:00 on March 3rd in UTC+9 is still March 2nd in UTC.
	assert.Equal(t, "2026-03-02", DateKey(time.Date(2026, 3, 3, 2, 0, 0, 0, loc)))
}
