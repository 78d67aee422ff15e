package audiofile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentName(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	name := SegmentName(at, ".webm")
	assert.Equal(t, "2026-03-02-1772461800000.webm", name)
}

func TestSaveSegmentAndPath(t *testing.T) {
	store := NewStore(t.TempDir())

	fileName, fileURL, err := store.SaveSegment("emp-1", "2026-03-02-1.webm", []byte("blob"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02-1.webm", fileName)
	assert.Equal(t, "/uploads/audio/emp-1/2026-03-02-1.webm", fileURL)

	data, err := os.ReadFile(store.Path("emp-1", fileName))
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), data)

	t.Run("path traversal is squashed", func(t *testing.T) {
		p := store.Path("../emp-1", "../../etc/passwd")
		assert.Equal(t, filepath.Join(store.Root(), "emp-1", "passwd"), p)
	})

	t.Run("remove unlinks", func(t *testing.T) {
		require.NoError(t, store.Remove("emp-1", fileName))
		_, err := os.Stat(store.Path("emp-1", fileName))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.webm":    "audio/webm",
		"a.m4a":     "audio/mp4",
		"a.mp4":     "audio/mp4",
		"a.OGG":     "audio/ogg",
		"a.unknown": "audio/*",
		"noext":     "audio/*",
	}
	for file, want := range cases {
		assert.Equal(t, want, ContentType(file), file)
	}
}

func TestExtForMime(t *testing.T) {
	assert.Equal(t, ".mp4", ExtForMime("audio/mp4"))
	assert.Equal(t, ".ogg", ExtForMime("audio/ogg;codecs=opus"))
	assert.Equal(t, ".webm", ExtForMime("audio/webm;codecs=opus"))
	assert.Equal(t, ".webm", ExtForMime("application/octet-stream"))
}
