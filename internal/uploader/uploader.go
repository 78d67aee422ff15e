package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Client delivers segment blobs to the server. Recording must survive bad
// connectivity, so every failure here is logged and swallowed: the capture
// loop never sees an upload error and no retry queue exists. A dropped
// segment just means the next periodic flush carries the newer audio.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	now func() time.Time
}

// New creates an upload client. The cookie jar keeps an ambient session
// usable as auth when no bearer token was persisted from login.
func New(baseURL, token string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second, Jar: jar},
		now:     time.Now,
	}
}

// Upload posts one segment blob with its duration. ext includes the
// leading dot. Never returns an error to the caller.
func (c *Client) Upload(ctx context.Context, data []byte, durationSeconds int, ext string) {
	if len(data) == 0 {
		return
	}
	filename := fmt.Sprintf("recording-%d%s", c.now().UnixMilli(), ext)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("duration", strconv.Itoa(durationSeconds))
	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		log.Error().Err(err).Msg("audio upload failed")
		return
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		log.Error().Err(err).Msg("audio upload failed")
		return
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/audio/upload", &buf)
	if err != nil {
		log.Error().Err(err).Msg("audio upload failed")
		return
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("audio upload failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("file", filename).Msg("audio upload rejected")
		return
	}
	log.Info().Str("file", filename).Int("bytes", len(data)).Msg("audio segment uploaded")
}
