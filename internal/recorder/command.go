package recorder

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandDevice captures audio by running an external encoder (ffmpeg,
// arecord) that writes the encoded stream to stdout. %MIME% in the
// argument list is replaced with the negotiated mime type.
type CommandDevice struct {
	Binary    string
	Args      []string
	Supported []string
}

// NewCommandDevice parses a shell-style command line into a device. An
// empty command means no capture input is available on this host.
func NewCommandDevice(command string, supported []string) *CommandDevice {
	fields := strings.Fields(command)
	dev := &CommandDevice{Supported: supported}
	if len(fields) > 0 {
		dev.Binary = fields[0]
		dev.Args = fields[1:]
	}
	return dev
}

// Supports reports whether the configured encoder lists the mime type.
func (d *CommandDevice) Supports(mimeType string) bool {
	for _, m := range d.Supported {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}

// Open starts the encoder process and streams its stdout in one-second
// flushes.
func (d *CommandDevice) Open(ctx context.Context, _ CaptureOptions, format Format) (Handle, error) {
	if d.Binary == "" {
		return nil, ErrCaptureUnavailable
	}

	args := make([]string, len(d.Args))
	for i, a := range d.Args {
		args[i] = strings.ReplaceAll(a, "%MIME%", format.MimeType)
	}
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrCaptureUnavailable
		}
		if strings.Contains(strings.ToLower(err.Error()), "permission denied") {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}

	h := &commandHandle{cmd: cmd, out: make(chan []byte, 8)}
	go h.pump(stdout)
	return h, nil
}

type commandHandle struct {
	cmd  *exec.Cmd
	out  chan []byte
	once sync.Once
}

func (h *commandHandle) Chunks() <-chan []byte { return h.out }

// pump flushes whatever the encoder produced roughly once per second.
func (h *commandHandle) pump(r io.Reader) {
	defer close(h.out)
	buf := make([]byte, 32*1024)
	var pending []byte
	flush := time.NewTicker(time.Second)
	defer flush.Stop()

	read := make(chan []byte)
	go func() {
		defer close(read)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				read <- chunk
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case chunk, ok := <-read:
			if !ok {
				if len(pending) > 0 {
					h.out <- pending
				}
				return
			}
			pending = append(pending, chunk...)
		case <-flush.C:
			if len(pending) > 0 {
				h.out <- pending
				pending = nil
			}
		}
	}
}

func (h *commandHandle) Close() error {
	var err error
	h.once.Do(func() {
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
		err = h.cmd.Wait()
	})
	return err
}
