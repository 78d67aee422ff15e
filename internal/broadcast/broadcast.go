package broadcast

import "context"

// Event is the admin notification emitted on every recording state
// transition. Recording carries the full row on audio_start; audio_stop
// only carries the id.
type Event struct {
	Type        string `json:"type"`
	Recording   any    `json:"recording,omitempty"`
	RecordingID string `json:"recordingId,omitempty"`
}

// Event types published by the registry.
const (
	AudioStart = "audio_start"
	AudioStop  = "audio_stop"
)

// Bus delivers events to admin observers. The registry only depends on
// this contract, not on the transport behind it.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout publishes to several buses, returning the first error after all
// have been attempted.
type Fanout []Bus

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var firstErr error
	for _, b := range f {
		if err := b.Publish(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
