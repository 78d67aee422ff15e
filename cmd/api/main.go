package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shopattendance/internal/attendance"
	"shopattendance/internal/audiofile"
	"shopattendance/internal/auth"
	"shopattendance/internal/broadcast"
	"shopattendance/internal/config"
	"shopattendance/internal/devicelock"
	"shopattendance/internal/httpmiddleware"
	"shopattendance/internal/recording"
	"shopattendance/internal/store"
)

var uploadFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "audio_upload_failures_total",
	Help: "Segment uploads rejected or failed server-side.",
})

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	files := audiofile.NewStore(cfg.UploadDir)

	var attRepo attendance.Repository
	var recRepo recording.Repository

	// backend is the storage actually in effect, which can differ from the
	// configured one when the database is unreachable at startup.
	backend := cfg.StorageBackend

	var db *store.DB
	if cfg.StorageBackend == "memory" {
		attRepo = attendance.NewMemoryRepository()
		recRepo = recording.NewMemoryRepository()
		log.Info().Msg("using in-memory storage")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("db not reachable, falling back to in-memory storage")
			backend = "memory"
			attRepo = attendance.NewMemoryRepository()
			recRepo = recording.NewMemoryRepository()
		} else {
			if err := db.EnsureSchema(context.Background()); err != nil {
				return err
			}
			attRepo = attendance.NewPostgresRepository(db.Client)
			recRepo = recording.NewPostgresRepository(db.Client, files)
		}
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	hub := broadcast.NewHub()
	var feed broadcast.Feed
	if backend == "memory" {
		feed = broadcast.NewInMemoryFeed(64)
	} else {
		feed = broadcast.NewRedisFeed(redisClient.Client, "attendance:audio-events")
	}
	bus := broadcast.Fanout{hub, feed}

	att := attendance.NewService(attRepo)
	registry := recording.NewRegistry(recRepo, bus)
	enforcer := recording.NewEnforcer(recRepo, files)
	devices := devicelock.NewStore("device-lock.json")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", healthzHandler(backend, db, redisClient))

	// Device registration binds the employee account to one physical
	// device and hands back the bearer token the background uploader uses.
	r.POST("/api/devices/register", func(c *gin.Context) {
		var req struct {
			UserID   string `json:"user_id" binding:"required"`
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		if !devices.Bind(req.UserID, req.DeviceID) {
			c.JSON(http.StatusConflict, gin.H{"message": "account is bound to another device"})
			return
		}

		tokens, err := auth.Issue(req.UserID, auth.RoleEmployee, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	r.POST("/api/admin/login", func(c *gin.Context) {
		var req struct {
			Key string `json:"key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Key != cfg.AdminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Admin access required"})
			return
		}
		tokens, err := auth.Issue("admin", auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": tokens.AccessToken, "expires_at": tokens.AccessExp.Unix()})
	})

	employee := r.Group("/api", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleEmployee))

	employee.POST("/attendance/checkin", func(c *gin.Context) {
		userID := auth.UserID(c)
		session, err := att.CheckIn(c.Request.Context(), userID)
		if err != nil {
			if err == attendance.ErrAlreadyCheckedIn {
				c.JSON(http.StatusBadRequest, gin.H{"message": "Attendance already recorded for today"})
				return
			}
			log.Error().Err(err).Msg("check-in failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to check in"})
			return
		}

		if _, err := registry.OnCheckIn(c.Request.Context(), userID, session.Date, session.ID); err != nil {
			log.Error().Err(err).Msg("registry check-in failed")
		}

		c.JSON(http.StatusCreated, session)
	})

	employee.POST("/attendance/checkout", func(c *gin.Context) {
		userID := auth.UserID(c)
		session, err := att.CheckOut(c.Request.Context(), userID)
		if err != nil {
			if err == attendance.ErrNoActiveCheckIn {
				c.JSON(http.StatusBadRequest, gin.H{"message": "No active check-in found"})
				return
			}
			log.Error().Err(err).Msg("check-out failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to check out"})
			return
		}

		if err := registry.OnCheckOut(c.Request.Context(), session.ID, session.CheckInTime, *session.CheckOutTime); err != nil {
			log.Warn().Err(err).Msg("failed to finalize active audio session on checkout")
		}

		c.JSON(http.StatusOK, session)
	})

	employee.GET("/attendance/today", func(c *gin.Context) {
		session, err := att.Today(c.Request.Context(), auth.UserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch today's attendance"})
			return
		}
		c.JSON(http.StatusOK, session)
	})

	employee.GET("/attendance/history", func(c *gin.Context) {
		sessions, err := att.History(c.Request.Context(), auth.UserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch attendance history"})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	employee.POST("/audio/upload", func(c *gin.Context) {
		userID := auth.UserID(c)
		file, header, err := c.Request.FormFile("audio")
		if err != nil {
			uploadFailures.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"message": "No audio file provided"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			uploadFailures.Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload audio"})
			return
		}

		now := time.Now()
		today := recording.DateKey(now)

		session, err := att.Today(c.Request.Context(), userID)
		if err != nil {
			uploadFailures.Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload audio"})
			return
		}
		if session == nil {
			uploadFailures.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"message": "No attendance record found"})
			return
		}

		ext := filepath.Ext(header.Filename)
		if ext == "" {
			ext = audiofile.ExtForMime(header.Header.Get("Content-Type"))
		}
		name := audiofile.SegmentName(now, ext)
		fileName, fileURL, err := files.SaveSegment(userID, name, data)
		if err != nil {
			uploadFailures.Inc()
			log.Error().Err(err).Msg("segment write failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload audio"})
			return
		}

		duration, _ := strconv.Atoi(c.PostForm("duration"))
		log.Info().Str("file", fileName).Int("bytes", len(data)).Msg("audio segment received")

		rec, err := registry.OnSegmentUpload(c.Request.Context(), userID, today, fileURL, fileName, int64(len(data)), duration)
		if err != nil {
			uploadFailures.Inc()
			log.Error().Err(err).Msg("segment catalog update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to upload audio"})
			return
		}

		// Retention runs inline on every upload.
		if err := enforcer.EnforceQuota(c.Request.Context(), cfg.MaxStorageBytes); err != nil {
			log.Warn().Err(err).Msg("storage quota pass failed")
		}
		if err := enforcer.EnforceAge(c.Request.Context(), cfg.RetentionDays); err != nil {
			log.Warn().Err(err).Msg("retention age pass failed")
		}

		c.JSON(http.StatusOK, gin.H{"message": "Audio uploaded successfully", "recording": rec})
	})

	admin := r.Group("/api/admin", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	admin.GET("/attendance/today", func(c *gin.Context) {
		sessions, err := att.AllToday(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch attendance data"})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	admin.GET("/audio/recordings", func(c *gin.Context) {
		// Age out stale rows before returning the list.
		if err := enforcer.EnforceAge(c.Request.Context(), cfg.RetentionDays); err != nil {
			log.Warn().Err(err).Msg("retention age pass failed")
		}
		recs, err := recRepo.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch audio recordings"})
			return
		}
		c.JSON(http.StatusOK, recs)
	})

	admin.GET("/audio/active", func(c *gin.Context) {
		recs, err := recRepo.ListActive(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch active recordings"})
			return
		}
		c.JSON(http.StatusOK, recs)
	})

	admin.POST("/audio/stop/:id", func(c *gin.Context) {
		rec, err := registry.OnAdminStop(c.Request.Context(), c.Param("id"))
		if err != nil {
			if err == recording.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"message": "Recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to stop recording"})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	admin.DELETE("/audio/cleanup", func(c *gin.Context) {
		if err := enforcer.EnforceAge(c.Request.Context(), cfg.RetentionDays); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to clean up old recordings"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Old recordings cleaned up"})
	})

	admin.DELETE("/audio/:id", func(c *gin.Context) {
		rec, err := recRepo.ByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete recording"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Recording not found"})
			return
		}
		if rec.FileName != "" {
			if err := files.Remove(rec.UserID, rec.FileName); err != nil {
				log.Warn().Err(err).Str("recording_id", rec.ID).Msg("file delete error")
			}
		}
		if err := recRepo.Delete(c.Request.Context(), rec.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete recording"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Recording deleted"})
	})

	r.GET("/uploads/audio/:userId/:filename",
		auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin),
		func(c *gin.Context) {
			files.ServeFile(c, c.Param("userId"), c.Param("filename"))
		})

	r.GET("/ws", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin), hub.ServeWS)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

// healthzHandler reports against the storage actually in effect. A server
// that fell back to memory storage is degraded but serving, so it stays 200
// with the backend named in the payload instead of flapping 503.
func healthzHandler(backend string, db *store.DB, redisClient *store.Redis) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisHealthy := backend == "memory" || redisClient.Healthy(c.Request.Context())
		dbHealthy := backend == "memory" || db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "storage": backend, "redis": redisHealthy, "db": dbHealthy})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, Range")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
