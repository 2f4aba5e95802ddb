package readback

import (
	"time"

	"github.com/soocke/framepace/domain/latency"
)

// RecordSource provides the latest batch of readback records. ok is false
// until the first record has been read back.
type RecordSource interface {
	LatestRecords() (set latency.FrameTimeRecordSet, ok bool)
}

// Snapshot carries the latest record batch and metadata.
type Snapshot struct {
	Records    latency.FrameTimeRecordSet
	CapturedAt time.Time
	Sequence   uint64
}

// Stats summarises readback loop behaviour for instrumentation.
type Stats struct {
	Polls         uint64
	Records       uint64
	Skipped       uint64 // capture failures
	Undecoded     uint64 // patch caught between two colors
	AvgGrab       time.Duration
	AvgGrabMicros float64
	LastRecord    time.Time
	LatestAge     time.Duration
	Sequence      uint64
}
