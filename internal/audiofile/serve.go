package audiofile

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound means the requested file does not exist on disk.
	ErrNotFound = errors.New("audio file not found")
	// ErrRangeNotSatisfiable means the Range header asked for bytes outside the file.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// ServeFile streams a stored audio file with single-range support so the
// admin player can seek. Multi-range requests are not supported.
func (s *Store) ServeFile(c *gin.Context, userID, filename string) {
	path := s.Path(userID, filename)

	f, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Audio file not found"})
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read audio file"})
		return
	}
	size := stat.Size()

	c.Header("Cache-Control", "no-cache")
	c.Header("Accept-Ranges", "bytes")
	contentType := ContentType(filename)

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read audio file"})
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("Content-Length", strconv.FormatInt(end-start+1, 10))
	c.Status(http.StatusPartialContent)
	_, _ = io.CopyN(c.Writer, f, end-start+1)
}

// parseRange parses a single "bytes=start-end" header. A missing end
// defaults to size-1. start must be <= end and end must be < size.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec := strings.TrimPrefix(header, "bytes=")
	if spec == header {
		return 0, 0, ErrRangeNotSatisfiable
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, ErrRangeNotSatisfiable
	}

	start, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, ErrRangeNotSatisfiable
	}
	if strings.TrimSpace(parts[1]) == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return 0, 0, ErrRangeNotSatisfiable
		}
	}
	if start > end || end >= size {
		return 0, 0, ErrRangeNotSatisfiable
	}
	return start, end, nil
}
