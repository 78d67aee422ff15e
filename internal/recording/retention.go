package recording

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"shopattendance/internal/audiofile"
)

// Enforcer keeps total stored audio under a byte budget and ages out old
// recordings. Both passes run inline after every upload and again
// periodically from the worker; with nothing over budget they are no-ops.
type Enforcer struct {
	repo  Repository
	files *audiofile.Store
	now   func() time.Time
}

// NewEnforcer creates a retention enforcer over the given repo and file
// store.
func NewEnforcer(repo Repository, files *audiofile.Store) *Enforcer {
	return &Enforcer{repo: repo, files: files, now: time.Now}
}

// EnforceQuota evicts oldest-first until total stored bytes fit the
// budget or no rows remain. The row is deleted even when the file unlink
// fails, trading disk hygiene for quota accuracy.
func (e *Enforcer) EnforceQuota(ctx context.Context, maxBytes int64) error {
	total, err := e.repo.TotalStorage(ctx)
	if err != nil {
		return err
	}
	for total > maxBytes {
		oldest, err := e.repo.Oldest(ctx)
		if err != nil {
			return err
		}
		if oldest == nil {
			break
		}
		if oldest.FileName != "" && e.files != nil {
			if err := e.files.Remove(oldest.UserID, oldest.FileName); err != nil {
				log.Warn().Err(err).Str("recording_id", oldest.ID).Msg("file delete error")
			}
		}
		if err := e.repo.Delete(ctx, oldest.ID); err != nil {
			return err
		}
		evictedRecordings.Inc()
		evictedBytes.Add(float64(oldest.FileSize))
		total -= oldest.FileSize
	}
	return nil
}

// EnforceAge drops recordings older than maxDays. Whether backing files
// are unlinked depends on the repository variant.
func (e *Enforcer) EnforceAge(ctx context.Context, maxDays int) error {
	cutoff := e.now().AddDate(0, 0, -maxDays)
	return e.repo.DeleteOlderThan(ctx, cutoff)
}
