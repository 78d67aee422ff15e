package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shopattendance/internal/audiofile"
	"shopattendance/internal/broadcast"
	"shopattendance/internal/config"
	"shopattendance/internal/recording"
	"shopattendance/internal/store"
)

// Worker runs the periodic retention passes and tails the audio event
// feed so recording transitions show up in the operational logs even when
// no admin dashboard is connected.
func main() {
	cfg := config.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	files := audiofile.NewStore(cfg.UploadDir)

	var repo recording.Repository
	var db *store.DB
	if cfg.StorageBackend == "memory" {
		repo = recording.NewMemoryRepository()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		defer db.Close()
		repo = recording.NewPostgresRepository(db.Client, files)
	}

	enforcer := recording.NewEnforcer(repo, files)

	redisClient := store.NewRedis(cfg.RedisAddr)
	feed := broadcast.NewRedisFeed(redisClient.Client, "attendance:audio-events")

	events, err := feed.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("event feed init failed")
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	log.Info().Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			runRetention(ctx, enforcer, cfg)
		case evt, ok := <-events:
			if !ok {
				log.Info().Msg("worker stopped")
				return
			}
			log.Info().Str("type", evt.Type).Str("recording_id", evt.RecordingID).Msg("audio event")
			if evt.Type == broadcast.AudioStop {
				runRetention(ctx, enforcer, cfg)
			}
		}
	}
}

func runRetention(ctx context.Context, enforcer *recording.Enforcer, cfg config.App) {
	if err := enforcer.EnforceQuota(ctx, cfg.MaxStorageBytes); err != nil {
		log.Warn().Err(err).Msg("storage quota pass failed")
	}
	if err := enforcer.EnforceAge(ctx, cfg.RetentionDays); err != nil {
		log.Warn().Err(err).Msg("retention age pass failed")
	}
}
