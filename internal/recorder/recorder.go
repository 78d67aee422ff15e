package recorder

import (
	"context"
	"errors"
)

var (
	// ErrCaptureUnavailable means no audio input device exists.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	// ErrPermissionDenied means the OS denied microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Format is a container/codec candidate for the capture encoder.
type Format struct {
	MimeType string
	Ext      string
}

// DefaultFormats is the negotiation priority list: opus in webm, then the
// mp4 container, then ogg opus. When none are supported the recorder falls
// back to RawFallback with the runtime's default encoder.
var DefaultFormats = []Format{
	{MimeType: "audio/webm;codecs=opus", Ext: ".webm"},
	{MimeType: "audio/mp4", Ext: ".m4a"},
	{MimeType: "audio/ogg;codecs=opus", Ext: ".ogg"},
}

// RawFallback names the container without an explicit codec.
var RawFallback = Format{MimeType: "audio/webm", Ext: ".webm"}

// CaptureOptions are the processing flags requested from the input device.
type CaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Device abstracts the audio input hardware and its encoder.
type Device interface {
	// Supports reports whether the device can encode the given mime type.
	Supports(mimeType string) bool
	// Open acquires an exclusive capture handle. Open fails with
	// ErrCaptureUnavailable or ErrPermissionDenied; any other error is
	// treated as unavailable by callers.
	Open(ctx context.Context, opts CaptureOptions, format Format) (Handle, error)
}

// Handle is an open capture session on the device. Chunks delivers
// encoded audio in roughly one-second flushes; the channel closes after
// Close. Close must be called on every exit path so the device does not
// stay marked in use.
type Handle interface {
	Chunks() <-chan []byte
	Close() error
}

// Negotiate picks the first format the device supports, falling back to
// the raw container with the runtime default encoder.
func Negotiate(dev Device, candidates []Format) Format {
	for _, f := range candidates {
		if dev.Supports(f.MimeType) {
			return f
		}
	}
	return RawFallback
}
