package frametime

import (
	"sync/atomic"

	"github.com/soocke/framepace/domain/hmd"
	"github.com/soocke/framepace/domain/latency"
)

// frameSnapshot is what readers on other goroutines see. A new one is built
// for every publish and never modified afterwards.
type frameSnapshot struct {
	timing  Timing
	shutter hmd.ShutterType
	latency latency.LatencyTimings
}

// timingSlot is a single-writer, wait-free publish slot.
type timingSlot struct {
	latest atomic.Pointer[frameSnapshot]
}

func (s *timingSlot) publish(timing Timing, shutter hmd.ShutterType, lt latency.LatencyTimings) {
	s.latest.Store(&frameSnapshot{timing: timing, shutter: shutter, latency: lt})
}

func (s *timingSlot) load() (frameSnapshot, bool) {
	snap := s.latest.Load()
	if snap == nil {
		return frameSnapshot{}, false
	}
	return *snap, true
}
