package recorder

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is the capture session lifecycle. There is no paused state.
type State int

const (
	Idle State = iota
	Capturing
	Stopped
)

// Segment is a flushed blob ready for upload.
type Segment struct {
	Data     []byte
	Duration int // seconds
	Ext      string
}

// Session owns one capture handle and accumulates encoded chunks between
// flushes. One session per process; device exclusivity is assumed.
type Session struct {
	device Device
	opts   CaptureOptions

	// startMu serializes whole start attempts so two concurrent Starts
	// cannot both open the device and leak a handle.
	startMu sync.Mutex

	mu           sync.Mutex
	state        State
	handle       Handle
	format       Format
	chunks       [][]byte
	sessionStart time.Time
	lastFlush    time.Time
	collectDone  chan struct{}

	now func() time.Time
}

// NewSession creates an idle session on the given device.
func NewSession(device Device, opts CaptureOptions) *Session {
	return &Session{device: device, opts: opts, now: time.Now}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ext returns the negotiated file extension, valid after Start.
func (s *Session) Ext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format.Ext
}

// Start negotiates a format and acquires the capture handle. Calling
// Start while already capturing is a no-op, including from concurrent
// goroutines: a racing Start waits for the first one and then backs off.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.state == Capturing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	format := Negotiate(s.device, DefaultFormats)
	handle, err := s.device.Open(ctx, s.opts, format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	s.state = Capturing
	s.handle = handle
	s.format = format
	s.chunks = nil
	s.sessionStart = now
	s.lastFlush = now
	s.collectDone = make(chan struct{})
	done := s.collectDone
	s.mu.Unlock()

	log.Info().Str("mime", format.MimeType).Msg("audio capture started")

	go func() {
		defer close(done)
		for chunk := range handle.Chunks() {
			if len(chunk) == 0 {
				continue
			}
			s.mu.Lock()
			s.chunks = append(s.chunks, chunk)
			s.mu.Unlock()
		}
	}()
	return nil
}

// UploadCurrentSegment flushes the chunks accumulated since the last flush
// without stopping capture. The accumulator is swapped under the lock so a
// concurrent 1s flush can neither be lost nor duplicated. Returns nil when
// idle or when nothing accumulated.
func (s *Session) UploadCurrentSegment() *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Capturing {
		return nil
	}
	now := s.now()
	chunks := s.chunks
	s.chunks = nil
	duration := int(now.Sub(s.lastFlush).Seconds())
	s.lastFlush = now
	if len(chunks) == 0 {
		return nil
	}
	return &Segment{Data: bytes.Join(chunks, nil), Duration: duration, Ext: s.format.Ext}
}

// Stop releases the capture handle and returns the final blob with the
// total session duration computed from session start to stop, not from the
// sum of flushed segments. Stop while idle returns nil, nil.
func (s *Session) Stop() (*Segment, error) {
	s.mu.Lock()
	if s.state != Capturing {
		s.mu.Unlock()
		return nil, nil
	}
	handle := s.handle
	done := s.collectDone
	s.mu.Unlock()

	// Closing the handle ends the chunk stream; wait for the collector so
	// the last flush is in the accumulator.
	err := handle.Close()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.state = Stopped
	s.handle = nil
	chunks := s.chunks
	s.chunks = nil
	duration := int(now.Sub(s.sessionStart).Seconds())

	if err != nil {
		log.Warn().Err(err).Msg("capture handle close failed")
	}
	log.Info().Int("duration_s", duration).Msg("audio capture stopped")

	return &Segment{Data: bytes.Join(chunks, nil), Duration: duration, Ext: s.format.Ext}, nil
}
