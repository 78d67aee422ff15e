package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	type received struct {
		auth     string
		duration string
		filename string
		body     []byte
	}

	var got received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/audio/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		got.auth = r.Header.Get("Authorization")
		got.duration = r.FormValue("duration")

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		got.filename = header.Filename
		got.body, err = io.ReadAll(file)
		require.NoError(t, err)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123")
	c.now = func() time.Time { return time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC) }

	c.Upload(context.Background(), []byte("opus-blob"), 300, ".webm")

	assert.Equal(t, "Bearer tok-123", got.auth)
	assert.Equal(t, "300", got.duration)
	assert.Equal(t, "recording-1772461800000.webm", got.filename)
	assert.Equal(t, []byte("opus-blob"), got.body)
}

func TestUploadFailuresAreSwallowed(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := New(srv.URL, "")
		// Must not panic or surface anything to the capture loop.
		c.Upload(context.Background(), []byte("blob"), 60, ".webm")
	})

	t.Run("unreachable server", func(t *testing.T) {
		c := New("http://127.0.0.1:1", "")
		c.HTTP.Timeout = time.Second
		c.Upload(context.Background(), []byte("blob"), 60, ".webm")
	})

	t.Run("empty blob skips the request entirely", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
		defer srv.Close()

		c := New(srv.URL, "")
		c.Upload(context.Background(), nil, 60, ".webm")
		assert.Zero(t, calls)
	})
}

func TestUploadWithoutToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	c.Upload(context.Background(), []byte("blob"), 60, ".webm")
	assert.Empty(t, auth, "no bearer header without a token; the cookie jar carries auth")
}
