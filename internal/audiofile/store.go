package audiofile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store lays segment files out on disk as {root}/{userID}/{date}-{millis}{ext}.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the base directory for uploaded audio.
func (s *Store) Root() string { return s.root }

// SegmentName builds the server-side segment filename for the given moment.
// ext must include the leading dot.
func SegmentName(now time.Time, ext string) string {
	date := now.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s-%d%s", date, now.UnixMilli(), ext)
}

// SaveSegment writes a segment blob under the user's directory and returns
// the stored filename and its public URL path.
func (s *Store) SaveSegment(userID string, name string, data []byte) (fileName, fileURL string, err error) {
	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", "", fmt.Errorf("write segment: %w", err)
	}
	return name, "/uploads/audio/" + userID + "/" + name, nil
}

// Path resolves the on-disk path for a user's file. The filename is
// sanitized to its base so path segments cannot escape the user directory.
func (s *Store) Path(userID, filename string) string {
	return filepath.Join(s.root, filepath.Base(userID), filepath.Base(filename))
}

// Remove unlinks a stored segment file.
func (s *Store) Remove(userID, filename string) error {
	return os.Remove(s.Path(userID, filename))
}

// ContentType maps a file extension to the mime type served to players.
// Unknown extensions fall back to the audio wildcard.
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webm":
		return "audio/webm"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/*"
	}
}

// ExtForMime picks the storage extension for a negotiated mime type,
// mirroring ContentType in the other direction.
func ExtForMime(mime string) string {
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "audio/mp4"):
		return ".mp4"
	case strings.Contains(m, "audio/m4a"):
		return ".m4a"
	case strings.Contains(m, "audio/ogg"):
		return ".ogg"
	default:
		return ".webm"
	}
}
