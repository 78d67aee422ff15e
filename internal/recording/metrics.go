package recording

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	segmentUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_segment_uploads_total",
		Help: "Segments accepted and recorded in the catalog.",
	})
	evictedRecordings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_evicted_recordings_total",
		Help: "Recordings removed by the storage quota pass.",
	})
	evictedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_evicted_bytes_total",
		Help: "Bytes reclaimed by the storage quota pass.",
	})
)
