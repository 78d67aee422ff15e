package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shopattendance/internal/config"
	"shopattendance/internal/recorder"
	"shopattendance/internal/uploader"
)

// Agent is the on-device companion: it registers the device, checks the
// employee in, captures audio for the whole shift and flushes a segment to
// the server on a fixed interval. A termination signal ends the shift:
// final segment upload, then check-out.
func main() {
	cfg := config.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if cfg.AgentUserID == "" || cfg.AgentDeviceID == "" {
		log.Fatal().Msg("AGENT_USER_ID and AGENT_DEVICE_ID are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token, err := registerDevice(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("device registration failed")
	}

	up := uploader.New(cfg.ServerBaseURL, token)

	if err := apiPost(ctx, up.HTTP, cfg.ServerBaseURL+"/api/attendance/checkin", token); err != nil {
		// Already checked in is fine, the shift just resumes.
		log.Warn().Err(err).Msg("check-in skipped")
	}

	device := recorder.NewCommandDevice(cfg.CaptureCommand, cfg.CaptureMimeTypes)
	session := recorder.NewSession(device, recorder.CaptureOptions{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})
	if err := session.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("audio capture failed to start")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SegmentInterval)
	defer ticker.Stop()

	log.Info().Str("user", cfg.AgentUserID).Dur("interval", cfg.SegmentInterval).Msg("agent started")

	for {
		select {
		case <-ticker.C:
			if seg := session.UploadCurrentSegment(); seg != nil {
				up.Upload(ctx, seg.Data, seg.Duration, seg.Ext)
			}
		case <-sigCh:
			log.Info().Msg("shift ending")
			seg, err := session.Stop()
			if err != nil {
				log.Warn().Err(err).Msg("capture stop failed")
			}
			if seg != nil && len(seg.Data) > 0 {
				up.Upload(ctx, seg.Data, seg.Duration, seg.Ext)
			}
			if err := apiPost(ctx, up.HTTP, cfg.ServerBaseURL+"/api/attendance/checkout", token); err != nil {
				log.Warn().Err(err).Msg("check-out failed")
			}
			log.Info().Msg("agent stopped")
			return
		}
	}
}

// registerDevice exchanges the user and device identifiers for a bearer
// token. A conflict means the account is bound to another device and the
// agent must not run here.
func registerDevice(ctx context.Context, cfg config.App) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   cfg.AgentUserID,
		"device_id": cfg.AgentDeviceID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.ServerBaseURL+"/api/devices/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("register returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func apiPost(ctx context.Context, client *http.Client, url, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}
